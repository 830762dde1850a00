package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"forum_harvester/internal/domain"
)

// Harvester harvests one source and reports the outcome as data. An empty
// mode defers to the harvester's mode selection.
type Harvester interface {
	HarvestSource(ctx context.Context, name string, mode domain.HarvestMode, maxItems int) domain.SourceResult
}

type CheckpointReader interface {
	GetBySourceName(ctx context.Context, name string) (*domain.Checkpoint, error)
}

type Recorder interface {
	ObserveSource(res domain.SourceResult)
	ObserveRun(due int, totals domain.Totals, finished time.Time)
}
