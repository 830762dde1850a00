package sqlstore

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/domain"
)

// CorpusStore is the read side used for diagnostics and by the downstream
// analysis pipeline.
type CorpusStore struct {
	db          *sqlx.DB
	sb          sq.StatementBuilderType
	checkpoints *CheckpointStore
}

func NewCorpusStore(db *sqlx.DB) *CorpusStore {
	return &CorpusStore{
		db:          db,
		sb:          statementBuilder(db.DriverName()),
		checkpoints: NewCheckpointStore(db),
	}
}

func (s *CorpusStore) Stats(ctx context.Context) (*domain.Stats, error) {
	exec := GetExecutor(ctx, s.db)

	stats := &domain.Stats{}
	totals := []struct {
		table string
		dest  *int
	}{
		{"sources", &stats.Sources},
		{"items", &stats.Items},
		{"sub_items", &stats.SubItems},
	}
	for _, t := range totals {
		if err := sqlx.GetContext(ctx, exec, t.dest, `SELECT COUNT(*) FROM `+t.table); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
	}

	query := `
		SELECT s.id, s.name,
			(SELECT COUNT(*) FROM items i WHERE i.source_id = s.id) AS items,
			(SELECT COUNT(*) FROM sub_items c JOIN items i ON i.id = c.item_id WHERE i.source_id = s.id) AS sub_items
		FROM sources s
		ORDER BY s.name`

	var rows []struct {
		ID       int64  `db:"id"`
		Name     string `db:"name"`
		Items    int    `db:"items"`
		SubItems int    `db:"sub_items"`
	}
	if err := sqlx.SelectContext(ctx, exec, &rows, query); err != nil {
		return nil, fmt.Errorf("select per-source counts: %w", err)
	}

	cps, err := s.checkpoints.All(ctx)
	if err != nil {
		return nil, err
	}

	stats.PerSource = make([]domain.SourceStats, 0, len(rows))
	for _, r := range rows {
		ss := domain.SourceStats{Name: r.Name, Items: r.Items, SubItems: r.SubItems}
		if cp, ok := cps[r.ID]; ok {
			at := cp.LastHarvestAt
			ss.LastHarvestAt = &at
			ss.Mode = cp.Mode
			ss.ItemsHarvested = cp.ItemsHarvested
			ss.SubItemsHarvested = cp.SubItemsHarvested
		}
		stats.PerSource = append(stats.PerSource, ss)
	}

	return stats, nil
}

// ListItems returns stored items, newest first.
func (s *CorpusStore) ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error) {
	exec := GetExecutor(ctx, s.db)

	q := s.sb.Select(
		"i.id", "i.source_id", "i.external_id", "i.title", "i.body", "i.author", "i.score",
		"i.upvote_ratio", "i.comment_count", "i.created_at", "i.url", "i.permalink",
		"i.sort_method", "i.is_deleted", "i.harvested_at", "i.updated_at",
	).From("items i").Join("sources s ON s.id = i.source_id")

	if f.Source != "" {
		q = q.Where(sq.Eq{"s.name": f.Source})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"i.created_at": f.Since.UTC()})
	}
	if f.MinScore != nil {
		q = q.Where(sq.GtOrEq{"i.score": *f.MinScore})
	}
	q = q.OrderBy("i.created_at DESC", "i.id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	var items []domain.Item
	if err := sqlx.SelectContext(ctx, exec, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

// ListSubItems returns the comments of an item ordered by depth, then age.
func (s *CorpusStore) ListSubItems(ctx context.Context, itemID int64) ([]domain.SubItem, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		SELECT id, item_id, external_id, parent_id, author, body, score, depth,
			created_at, is_deleted, harvested_at, updated_at
		FROM sub_items
		WHERE item_id = ?
		ORDER BY depth, created_at, id`

	var subs []domain.SubItem
	if err := sqlx.SelectContext(ctx, exec, &subs, exec.Rebind(query), itemID); err != nil {
		return nil, fmt.Errorf("select sub-items of item %d: %w", itemID, err)
	}
	return subs, nil
}
