package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/domain"
)

type SubItemStore struct {
	db   *sqlx.DB
	opts options
}

func NewSubItemStore(db *sqlx.DB, opts ...Option) *SubItemStore {
	return &SubItemStore{db: db, opts: newOptions(opts)}
}

// Upsert inserts the comment under itemID or refreshes the score of an
// already stored one. The row id is returned on both paths.
func (s *SubItemStore) Upsert(ctx context.Context, sub *domain.SubItem, itemID int64) (id int64, created bool, err error) {
	exec := GetExecutor(ctx, s.db)
	now := s.opts.timestamp()

	insert := `
		INSERT INTO sub_items (
			external_id, item_id, parent_id, author, body, score, depth,
			created_at, is_deleted, harvested_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id`

	err = exec.QueryRowxContext(ctx, exec.Rebind(insert),
		sub.ExternalID,
		itemID,
		sub.ParentID,
		sub.Author,
		sub.Body,
		sub.Score,
		sub.Depth,
		sub.CreatedAt.UTC(),
		sub.IsDeleted,
		now,
		now,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("insert sub-item %s: %w", sub.ExternalID, err)
	}

	update := `
		UPDATE sub_items
		SET score = ?, updated_at = ?
		WHERE external_id = ?
		RETURNING id`

	err = exec.QueryRowxContext(ctx, exec.Rebind(update), sub.Score, now, sub.ExternalID).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("update sub-item %s: %w", sub.ExternalID, err)
	}

	return id, false, nil
}
