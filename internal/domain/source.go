package domain

import "time"

type Source struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	DisplayName *string   `db:"display_name"`
	Subscribers *int64    `db:"subscribers"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// SourceMeta carries optional metadata. Nil fields leave stored values untouched.
type SourceMeta struct {
	DisplayName *string
	Subscribers *int64
	Description *string
}

func (m SourceMeta) IsEmpty() bool {
	return m.DisplayName == nil && m.Subscribers == nil && m.Description == nil
}
