package service

import (
	"context"
	"fmt"

	"forum_harvester/internal/domain"
)

// HarvestDelta walks the newest listing down to the stored frontier and
// persists only what lies above it. Items beyond maxItems are not backfilled.
func (h *Harvester) HarvestDelta(ctx context.Context, name string, maxItems int) (*domain.DeltaResult, error) {
	if !h.persistent() {
		return nil, domain.ErrPersistenceDisabled
	}
	if maxItems <= 0 {
		maxItems = h.config.DeltaMaxItems
	}

	logger := h.logger.With("source", name, "mode", domain.ModeDelta)

	sourceID, err := h.resolveSource(ctx, name)
	if err != nil {
		return nil, err
	}

	checkpoint, err := h.stores.Checkpoints.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	result := &domain.DeltaResult{
		Source:          name,
		WasFirstHarvest: checkpoint == nil || checkpoint.LastHarvestAt.IsZero(),
	}
	frontier := checkpoint.Frontier()

	logger.Info("starting delta harvest",
		"max_items", maxItems,
		"frontier", frontier,
		"first_harvest", result.WasFirstHarvest,
	)

	var newest *string
	for item, err := range h.source.Listing(ctx, name, domain.SortNew, maxItems) {
		if err != nil {
			return result, fmt.Errorf("list %s: %w", name, err)
		}
		if frontier != "" && item.ExternalID == frontier {
			logger.Debug("reached frontier", "item", frontier)
			break
		}
		if result.ItemsProcessed >= maxItems {
			break
		}
		if newest == nil {
			id := item.ExternalID
			newest = &id
		}

		item.SortMethod = domain.SortMethodDelta
		itemID, created, err := h.stores.Items.Upsert(ctx, &item, sourceID)
		if err != nil {
			return result, fmt.Errorf("upsert item %s: %w", item.ExternalID, err)
		}
		result.ItemsProcessed++

		if !created {
			continue
		}
		result.NewItems++

		subs, err := h.collectSubItems(ctx, item.ExternalID)
		if err != nil {
			return result, err
		}
		added, err := h.storeSubItems(ctx, subs, itemID)
		if err != nil {
			return result, err
		}
		result.NewSubItems += added

		if !h.publish(ctx, name, &domain.HarvestedItem{Item: item, SubItems: subs}, true) {
			result.PublishErrors++
		}
	}

	if newest == nil {
		logger.Info("no new items")
		return result, nil
	}

	err = h.stores.Checkpoints.Update(ctx, domain.CheckpointUpdate{
		SourceID:      sourceID,
		LastItemID:    newest,
		ItemsAdded:    result.NewItems,
		SubItemsAdded: result.NewSubItems,
		Mode:          domain.ModeDelta,
	})
	if err != nil {
		return result, fmt.Errorf("update checkpoint: %w", err)
	}
	result.FrontierAdvanced = true

	logger.Info("delta harvest completed",
		"processed", result.ItemsProcessed,
		"new_items", result.NewItems,
		"new_sub_items", result.NewSubItems,
		"frontier", *newest,
	)

	return result, nil
}
