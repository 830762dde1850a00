package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"forum_harvester/internal/config"
	"forum_harvester/internal/domain"
)

const maxDescriptionLength = 500

// Stores groups the persistence dependencies. A zero Stores disables
// persistence; only full harvests are possible then.
type Stores struct {
	Sources     SourceStore
	Items       ItemStore
	SubItems    SubItemStore
	Checkpoints CheckpointStore
	TxManager   TransactionManager
}

func (s Stores) enabled() bool {
	return s.Sources != nil && s.Items != nil && s.SubItems != nil && s.Checkpoints != nil
}

type Harvester struct {
	source    ContentSource
	stores    Stores
	publisher Publisher
	selector  *ModeSelector
	logger    *slog.Logger
	config    config.HarvestConfig
}

func NewHarvester(
	source ContentSource,
	stores Stores,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.HarvestConfig,
) *Harvester {
	if !stores.enabled() {
		cfg.DisablePersistence = true
	}
	if cfg.DisablePersistence {
		stores = Stores{}
	}
	return &Harvester{
		source:    source,
		stores:    stores,
		publisher: publisher,
		selector:  NewModeSelector(cfg),
		logger:    logger,
		config:    cfg,
	}
}

func (h *Harvester) Selector() *ModeSelector {
	return h.selector
}

func (h *Harvester) persistent() bool {
	return !h.config.DisablePersistence
}

// HarvestSource harvests one source and reports the outcome as data. An empty
// mode lets the ModeSelector decide.
func (h *Harvester) HarvestSource(ctx context.Context, name string, mode domain.HarvestMode, maxItems int) domain.SourceResult {
	if mode == "" {
		mode = h.selector.Mode(name)
	}

	start := time.Now()
	result := domain.SourceResult{Source: name, Mode: mode}

	var err error
	switch mode {
	case domain.ModeDelta:
		var r *domain.DeltaResult
		r, err = h.HarvestDelta(ctx, name, maxItems)
		if r != nil {
			result.NewItems, result.NewSubItems = r.NewItems, r.NewSubItems
		}
	case domain.ModeFull:
		var r *domain.FullResult
		r, err = h.HarvestFull(ctx, name, maxItems)
		if r != nil {
			result.NewItems, result.NewSubItems = r.NewItems, r.NewSubItems
		}
	default:
		err = fmt.Errorf("unknown harvest mode %q", mode)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		h.logger.Error("harvest failed", "source", name, "mode", mode, "error", err)
		return result
	}
	result.Success = true
	return result
}

func (h *Harvester) resolveSource(ctx context.Context, name string) (int64, error) {
	meta, err := h.source.About(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("fetch source metadata: %w", err)
	}
	if meta.Description != nil {
		d := truncate(*meta.Description, maxDescriptionLength)
		meta.Description = &d
	}

	id, err := h.stores.Sources.GetOrCreate(ctx, name, meta)
	if err != nil {
		return 0, fmt.Errorf("get or create source: %w", err)
	}
	return id, nil
}

// collectSubItems drains the comment tree of one item.
func (h *Harvester) collectSubItems(ctx context.Context, itemExternalID string) ([]domain.SubItem, error) {
	var subs []domain.SubItem
	for sub, err := range h.source.Comments(ctx, itemExternalID) {
		if err != nil {
			return subs, fmt.Errorf("fetch comments for %s: %w", itemExternalID, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// storeSubItems upserts a whole comment tree as one batch and returns how many
// rows were newly inserted.
func (h *Harvester) storeSubItems(ctx context.Context, subs []domain.SubItem, itemID int64) (int, error) {
	var created int
	err := h.withTransaction(ctx, func(txCtx context.Context) error {
		created = 0
		for i := range subs {
			_, isNew, err := h.stores.SubItems.Upsert(txCtx, &subs[i], itemID)
			if err != nil {
				return fmt.Errorf("upsert sub-item %s: %w", subs[i].ExternalID, err)
			}
			if isNew {
				created++
			}
		}
		return nil
	})
	return created, err
}

func (h *Harvester) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.stores.TxManager == nil {
		return fn(ctx)
	}
	return h.stores.TxManager.WithTransaction(ctx, fn)
}

// publish reports whether the message was delivered; failures are logged and
// never abort a harvest.
func (h *Harvester) publish(ctx context.Context, source string, item *domain.HarvestedItem, isNew bool) bool {
	if h.publisher == nil {
		return true
	}
	if err := h.publisher.Publish(ctx, source, item, isNew); err != nil {
		h.logger.Warn("publish failed", "source", source, "item", item.ExternalID, "error", err)
		return false
	}
	return true
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
