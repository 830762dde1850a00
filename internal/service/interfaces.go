package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"iter"

	"forum_harvester/internal/domain"
)

type SourceStore interface {
	GetOrCreate(ctx context.Context, name string, meta domain.SourceMeta) (int64, error)
}

type ItemStore interface {
	Upsert(ctx context.Context, item *domain.Item, sourceID int64) (int64, bool, error)
}

type SubItemStore interface {
	Upsert(ctx context.Context, sub *domain.SubItem, itemID int64) (int64, bool, error)
}

type CheckpointStore interface {
	Get(ctx context.Context, sourceID int64) (*domain.Checkpoint, error)
	Update(ctx context.Context, update domain.CheckpointUpdate) error
}

// ContentSource is the upstream forum. Listing and Comments are lazy; the
// consumer may stop early and no further pages are requested.
type ContentSource interface {
	About(ctx context.Context, name string) (domain.SourceMeta, error)
	Listing(ctx context.Context, name string, sort domain.SortMode, limit int) iter.Seq2[domain.Item, error]
	Comments(ctx context.Context, itemExternalID string) iter.Seq2[domain.SubItem, error]
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, source string, item *domain.HarvestedItem, isNew bool) error
	Close() error
}
