package service

import (
	"context"
	"errors"
	"fmt"

	"forum_harvester/internal/domain"
)

// fullSortModes is the order in which a full harvest consults listings.
var fullSortModes = []domain.SortMode{
	domain.SortHot,
	domain.SortNew,
	domain.SortTopYear,
	domain.SortTopAll,
}

// HarvestFull collects items from several listings and re-walks the comment
// tree of every one of them. Content source failures in one listing are
// logged and the next listing is tried; storage failures abort.
func (h *Harvester) HarvestFull(ctx context.Context, name string, maxItems int) (*domain.FullResult, error) {
	if maxItems <= 0 {
		maxItems = h.config.FullMaxItems
	}
	perMode := max(maxItems/len(fullSortModes), 1)

	logger := h.logger.With("source", name, "mode", domain.ModeFull)
	logger.Info("starting full harvest", "max_items", maxItems, "per_sort", perMode, "persist", h.persistent())

	var sourceID int64
	if h.persistent() {
		id, err := h.resolveSource(ctx, name)
		if err != nil {
			return nil, err
		}
		sourceID = id
	}

	result := &domain.FullResult{Source: name}
	seen := make(map[string]bool)
	var newest *string
	var listErrs []error

	for _, sort := range fullSortModes {
		count := 0
		for item, err := range h.source.Listing(ctx, name, sort, perMode) {
			if err != nil {
				logger.Warn("listing failed, trying next sort", "sort", sort, "error", err)
				listErrs = append(listErrs, fmt.Errorf("list %s/%s: %w", name, sort, err))
				break
			}
			if count >= perMode {
				break
			}
			count++

			if sort == domain.SortNew && newest == nil {
				id := item.ExternalID
				newest = &id
			}
			if seen[item.ExternalID] {
				continue
			}
			seen[item.ExternalID] = true
			item.SortMethod = string(sort)

			subs, err := h.collectSubItems(ctx, item.ExternalID)
			if err != nil {
				logger.Warn("comment walk failed, trying next sort", "sort", sort, "item", item.ExternalID, "error", err)
				listErrs = append(listErrs, err)
				break
			}

			harvested := domain.HarvestedItem{Item: item, SubItems: subs}
			created, err := h.storeHarvested(ctx, &harvested, sourceID, result)
			if err != nil {
				return result, err
			}
			result.Items = append(result.Items, harvested)

			if !h.publish(ctx, name, &harvested, created) {
				result.PublishErrors++
			}
		}
	}

	if len(result.Items) == 0 && len(listErrs) == len(fullSortModes) {
		return result, errors.Join(listErrs...)
	}

	if h.persistent() && newest != nil {
		err := h.stores.Checkpoints.Update(ctx, domain.CheckpointUpdate{
			SourceID:      sourceID,
			LastItemID:    newest,
			ItemsAdded:    result.NewItems,
			SubItemsAdded: result.NewSubItems,
			Mode:          domain.ModeFull,
		})
		if err != nil {
			return result, fmt.Errorf("update checkpoint: %w", err)
		}
		result.FrontierAdvanced = true
	}

	logger.Info("full harvest completed",
		"items", len(result.Items),
		"new_items", result.NewItems,
		"new_sub_items", result.NewSubItems,
		"failed_sorts", len(listErrs),
	)

	return result, nil
}

// storeHarvested upserts an item with its comment tree in one transaction.
func (h *Harvester) storeHarvested(ctx context.Context, harvested *domain.HarvestedItem, sourceID int64, result *domain.FullResult) (bool, error) {
	if !h.persistent() {
		return false, nil
	}

	var created bool
	var added int
	err := h.withTransaction(ctx, func(txCtx context.Context) error {
		itemID, isNew, err := h.stores.Items.Upsert(txCtx, &harvested.Item, sourceID)
		if err != nil {
			return fmt.Errorf("upsert item %s: %w", harvested.ExternalID, err)
		}
		created = isNew

		added, err = h.storeSubItems(txCtx, harvested.SubItems, itemID)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		result.NewItems++
	}
	result.NewSubItems += added
	return created, nil
}
