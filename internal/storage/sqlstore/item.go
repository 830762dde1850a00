package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/domain"
)

type ItemStore struct {
	db   *sqlx.DB
	opts options
}

func NewItemStore(db *sqlx.DB, opts ...Option) *ItemStore {
	return &ItemStore{db: db, opts: newOptions(opts)}
}

// Upsert inserts the item or, when its external id is already stored,
// refreshes score, comment count and updated time. Title, body and author
// keep their first captured values. created reports whether a row was
// inserted.
func (s *ItemStore) Upsert(ctx context.Context, item *domain.Item, sourceID int64) (id int64, created bool, err error) {
	exec := GetExecutor(ctx, s.db)
	now := s.opts.timestamp()

	insert := `
		INSERT INTO items (
			external_id, source_id, title, body, author, score, upvote_ratio,
			comment_count, created_at, url, permalink, sort_method, is_deleted,
			harvested_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id`

	err = exec.QueryRowxContext(ctx, exec.Rebind(insert),
		item.ExternalID,
		sourceID,
		item.Title,
		item.Body,
		item.Author,
		item.Score,
		item.UpvoteRatio,
		item.CommentCount,
		item.CreatedAt.UTC(),
		item.URL,
		item.Permalink,
		item.SortMethod,
		item.IsDeleted,
		now,
		now,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("insert item %s: %w", item.ExternalID, err)
	}

	update := `
		UPDATE items
		SET score = ?, comment_count = ?, updated_at = ?
		WHERE external_id = ?
		RETURNING id`

	err = exec.QueryRowxContext(ctx, exec.Rebind(update),
		item.Score,
		item.CommentCount,
		now,
		item.ExternalID,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("update item %s: %w", item.ExternalID, err)
	}

	return id, false, nil
}

const itemColumns = `id, source_id, external_id, title, body, author, score, upvote_ratio,
	comment_count, created_at, url, permalink, sort_method, is_deleted, harvested_at, updated_at`

// GetByExternalID returns the stored item, or nil if it was never harvested.
func (s *ItemStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Item, error) {
	exec := GetExecutor(ctx, s.db)

	var item domain.Item
	err := sqlx.GetContext(ctx, exec, &item,
		exec.Rebind(`SELECT `+itemColumns+` FROM items WHERE external_id = ?`), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select item %s: %w", externalID, err)
	}
	return &item, nil
}
