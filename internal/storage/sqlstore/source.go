package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/domain"
)

const sourceCacheSize = 1024

type SourceStore struct {
	db   *sqlx.DB
	sb   sq.StatementBuilderType
	ids  *lru.Cache[string, int64]
	opts options
}

func NewSourceStore(db *sqlx.DB, opts ...Option) *SourceStore {
	cache, _ := lru.New[string, int64](sourceCacheSize)
	return &SourceStore{
		db:   db,
		sb:   statementBuilder(db.DriverName()),
		ids:  cache,
		opts: newOptions(opts),
	}
}

// GetOrCreate returns the id of the named source, creating it on first
// reference. Supplied metadata fields overwrite stored ones; nil fields are
// left untouched.
func (s *SourceStore) GetOrCreate(ctx context.Context, name string, meta domain.SourceMeta) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	id, ok := s.ids.Get(name)
	if !ok {
		err := sqlx.GetContext(ctx, exec, &id, exec.Rebind(`SELECT id FROM sources WHERE name = ?`), name)
		if errors.Is(err, sql.ErrNoRows) {
			return s.create(ctx, exec, name, meta)
		}
		if err != nil {
			return 0, fmt.Errorf("select source %s: %w", name, err)
		}
		s.remember(ctx, name, id)
	}

	if meta.IsEmpty() {
		return id, nil
	}

	q := s.sb.Update("sources").Set("updated_at", s.opts.timestamp())
	if meta.DisplayName != nil {
		q = q.Set("display_name", *meta.DisplayName)
	}
	if meta.Subscribers != nil {
		q = q.Set("subscribers", *meta.Subscribers)
	}
	if meta.Description != nil {
		q = q.Set("description", *meta.Description)
	}
	q = q.Where(sq.Eq{"id": id})

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build source update: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("update source %s: %w", name, err)
	}

	return id, nil
}

func (s *SourceStore) create(ctx context.Context, exec sqlx.ExtContext, name string, meta domain.SourceMeta) (int64, error) {
	displayName := name
	if meta.DisplayName != nil {
		displayName = *meta.DisplayName
	}
	now := s.opts.timestamp()

	query := `
		INSERT INTO sources (name, display_name, subscribers, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := exec.QueryRowxContext(ctx, exec.Rebind(query),
		name, displayName, meta.Subscribers, meta.Description, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert source %s: %w", name, err)
	}

	s.remember(ctx, name, id)
	return id, nil
}

// remember caches ids only outside transactions, a rolled back insert must
// not leave a dangling id behind.
func (s *SourceStore) remember(ctx context.Context, name string, id int64) {
	if GetTxFromContext(ctx) == nil {
		s.ids.Add(name, id)
	}
}

func (s *SourceStore) Get(ctx context.Context, name string) (*domain.Source, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		SELECT id, name, display_name, subscribers, description, created_at, updated_at
		FROM sources
		WHERE name = ?`

	var src domain.Source
	err := sqlx.GetContext(ctx, exec, &src, exec.Rebind(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrSourceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select source %s: %w", name, err)
	}
	return &src, nil
}
