package domain

import "time"

type HarvestMode string

const (
	ModeDelta HarvestMode = "delta"
	ModeFull  HarvestMode = "full"
)

// Checkpoint is the single harvest progress record of a Source.
type Checkpoint struct {
	ID                int64       `db:"id"`
	SourceID          int64       `db:"source_id"`
	LastItemID        *string     `db:"last_item_id"`
	LastSubItemID     *string     `db:"last_sub_item_id"`
	LastHarvestAt     time.Time   `db:"last_harvest_at"`
	ItemsHarvested    int64       `db:"items_harvested"`
	SubItemsHarvested int64       `db:"sub_items_harvested"`
	Mode              HarvestMode `db:"harvest_mode"`
}

// Frontier returns the newest item id seen by the last walk, or "" if none.
func (c *Checkpoint) Frontier() string {
	if c == nil || c.LastItemID == nil {
		return ""
	}
	return *c.LastItemID
}

// CheckpointUpdate is merged into the stored checkpoint: ids coalesce,
// counters add.
type CheckpointUpdate struct {
	SourceID      int64
	LastItemID    *string
	LastSubItemID *string
	ItemsAdded    int
	SubItemsAdded int
	Mode          HarvestMode
}
