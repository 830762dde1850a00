package domain

import "time"

// Item is a top-level post within a Source.
type Item struct {
	ID           int64     `db:"id" json:"-"`
	SourceID     int64     `db:"source_id" json:"-"`
	ExternalID   string    `db:"external_id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Body         string    `db:"body" json:"body"`
	Author       string    `db:"author" json:"author"`
	Score        int64     `db:"score" json:"score"`
	UpvoteRatio  *float64  `db:"upvote_ratio" json:"upvote_ratio,omitempty"`
	CommentCount int64     `db:"comment_count" json:"comment_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	URL          string    `db:"url" json:"url"`
	Permalink    string    `db:"permalink" json:"permalink"`
	SortMethod   string    `db:"sort_method" json:"sort_method"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	HarvestedAt  time.Time `db:"harvested_at" json:"harvested_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubItem is a comment. ParentID is the external id of either the owning
// item or another comment.
type SubItem struct {
	ID          int64     `db:"id" json:"-"`
	ItemID      int64     `db:"item_id" json:"-"`
	ExternalID  string    `db:"external_id" json:"id"`
	ParentID    string    `db:"parent_id" json:"parent_id"`
	Author      string    `db:"author" json:"author"`
	Body        string    `db:"body" json:"body"`
	Score       int64     `db:"score" json:"score"`
	Depth       int       `db:"depth" json:"depth"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	IsDeleted   bool      `db:"is_deleted" json:"is_deleted"`
	HarvestedAt time.Time `db:"harvested_at" json:"harvested_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HarvestedItem is an item together with the comment tree collected for it.
type HarvestedItem struct {
	Item     `json:"item"`
	SubItems []SubItem `json:"sub_items"`
}

// ItemFilter narrows the read path used by downstream consumers.
type ItemFilter struct {
	Source   string
	Since    time.Time
	MinScore *int64
	Limit    int
}

// SortMode is a listing order offered by the content source.
type SortMode string

const (
	SortHot     SortMode = "hot"
	SortNew     SortMode = "new"
	SortTopYear SortMode = "top_year"
	SortTopAll  SortMode = "top_all"
)

// SortMethodDelta is recorded on items discovered by a delta walk.
const SortMethodDelta = "new_delta"

// DeletedMarkers are the bodies the content source substitutes for removed content.
var DeletedMarkers = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}
