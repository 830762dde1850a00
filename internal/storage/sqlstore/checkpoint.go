package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/domain"
)

type CheckpointStore struct {
	db   *sqlx.DB
	opts options
}

func NewCheckpointStore(db *sqlx.DB, opts ...Option) *CheckpointStore {
	return &CheckpointStore{db: db, opts: newOptions(opts)}
}

const checkpointColumns = `id, source_id, last_item_id, last_sub_item_id, last_harvest_at,
	items_harvested, sub_items_harvested, harvest_mode`

// Get returns the checkpoint of a source, or nil if it was never harvested.
func (s *CheckpointStore) Get(ctx context.Context, sourceID int64) (*domain.Checkpoint, error) {
	exec := GetExecutor(ctx, s.db)

	var cp domain.Checkpoint
	err := sqlx.GetContext(ctx, exec, &cp,
		exec.Rebind(`SELECT `+checkpointColumns+` FROM harvest_checkpoints WHERE source_id = ?`), sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint for source %d: %w", sourceID, err)
	}
	return &cp, nil
}

// Update creates the checkpoint or merges into it: absent ids keep their
// previous values, counters accumulate, the harvest time moves to now.
func (s *CheckpointStore) Update(ctx context.Context, u domain.CheckpointUpdate) error {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO harvest_checkpoints (
			source_id, last_item_id, last_sub_item_id, last_harvest_at,
			items_harvested, sub_items_harvested, harvest_mode
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			last_item_id = COALESCE(excluded.last_item_id, harvest_checkpoints.last_item_id),
			last_sub_item_id = COALESCE(excluded.last_sub_item_id, harvest_checkpoints.last_sub_item_id),
			last_harvest_at = excluded.last_harvest_at,
			items_harvested = harvest_checkpoints.items_harvested + excluded.items_harvested,
			sub_items_harvested = harvest_checkpoints.sub_items_harvested + excluded.sub_items_harvested,
			harvest_mode = excluded.harvest_mode`

	_, err := exec.ExecContext(ctx, exec.Rebind(query),
		u.SourceID,
		u.LastItemID,
		u.LastSubItemID,
		s.opts.timestamp(),
		u.ItemsAdded,
		u.SubItemsAdded,
		string(u.Mode),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint for source %d: %w", u.SourceID, err)
	}
	return nil
}

// All returns every checkpoint keyed by source id.
func (s *CheckpointStore) All(ctx context.Context) (map[int64]domain.Checkpoint, error) {
	exec := GetExecutor(ctx, s.db)

	var cps []domain.Checkpoint
	if err := sqlx.SelectContext(ctx, exec, &cps, `SELECT `+checkpointColumns+` FROM harvest_checkpoints`); err != nil {
		return nil, fmt.Errorf("select checkpoints: %w", err)
	}

	out := make(map[int64]domain.Checkpoint, len(cps))
	for _, cp := range cps {
		out[cp.SourceID] = cp
	}
	return out, nil
}

// GetBySourceName looks the checkpoint up without creating the source.
func (s *CheckpointStore) GetBySourceName(ctx context.Context, name string) (*domain.Checkpoint, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		SELECT c.id, c.source_id, c.last_item_id, c.last_sub_item_id, c.last_harvest_at,
			c.items_harvested, c.sub_items_harvested, c.harvest_mode
		FROM harvest_checkpoints c
		JOIN sources s ON s.id = c.source_id
		WHERE s.name = ?`

	var cp domain.Checkpoint
	err := sqlx.GetContext(ctx, exec, &cp, exec.Rebind(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint for %s: %w", name, err)
	}
	return &cp, nil
}
