package domain

import "time"

// DeltaResult summarises a single delta walk.
type DeltaResult struct {
	Source           string `json:"source"`
	NewItems         int    `json:"new_items"`
	NewSubItems      int    `json:"new_sub_items"`
	ItemsProcessed   int    `json:"items_processed"`
	FrontierAdvanced bool   `json:"frontier_advanced"`
	WasFirstHarvest  bool   `json:"was_first_harvest"`
	PublishErrors    int    `json:"publish_errors,omitempty"`
}

// FullResult summarises a multi-sort full harvest.
type FullResult struct {
	Source           string          `json:"source"`
	Items            []HarvestedItem `json:"items,omitempty"`
	NewItems         int             `json:"new_items"`
	NewSubItems      int             `json:"new_sub_items"`
	FrontierAdvanced bool            `json:"frontier_advanced"`
	PublishErrors    int             `json:"publish_errors,omitempty"`
}

// SourceResult is the outcome of harvesting one source inside a batch.
type SourceResult struct {
	Source      string        `json:"source"`
	Tier        string        `json:"tier,omitempty"`
	Mode        HarvestMode   `json:"mode"`
	Success     bool          `json:"success"`
	NewItems    int           `json:"new_items"`
	NewSubItems int           `json:"new_sub_items"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Totals aggregates SourceResults.
type Totals struct {
	NewItems    int `json:"new_items"`
	NewSubItems int `json:"new_sub_items"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
}

func (t Totals) Add(r SourceResult) Totals {
	if !r.Success {
		t.Failed++
		return t
	}
	t.Succeeded++
	t.NewItems += r.NewItems
	t.NewSubItems += r.NewSubItems
	return t
}

// SkippedSource records a configuration reference that was not harvested.
type SkippedSource struct {
	Source string `json:"source"`
	Tier   string `json:"tier,omitempty"`
	Reason string `json:"reason"`
}

// Stats is the diagnostic view of the store.
type Stats struct {
	Sources   int           `json:"sources"`
	Items     int           `json:"items"`
	SubItems  int           `json:"sub_items"`
	PerSource []SourceStats `json:"per_source"`
}

type SourceStats struct {
	Name              string      `json:"name"`
	Items             int         `json:"items"`
	SubItems          int         `json:"sub_items"`
	LastHarvestAt     *time.Time  `json:"last_harvest_at,omitempty"`
	Mode              HarvestMode `json:"mode,omitempty"`
	ItemsHarvested    int64       `json:"items_harvested"`
	SubItemsHarvested int64       `json:"sub_items_harvested"`
}
