package service

import (
	"context"
	"fmt"
	"strings"

	"forum_harvester/internal/domain"
)

const groupPrefix = "group:"

type BatchOptions struct {
	// Mode forces a harvest mode; empty selects per source.
	Mode     domain.HarvestMode
	MaxItems int
}

type BatchReport struct {
	Results []domain.SourceResult  `json:"results"`
	Skipped []domain.SkippedSource `json:"skipped,omitempty"`
	Totals  domain.Totals          `json:"totals"`
}

// ExpandSources resolves group references and drops duplicates, keeping the
// first occurrence.
func (h *Harvester) ExpandSources(inputs []string) ([]string, []domain.SkippedSource) {
	var names []string
	var skipped []domain.SkippedSource
	seen := make(map[string]bool)

	add := func(name string) {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			skipped = append(skipped, domain.SkippedSource{Reason: "empty source name"})
		case seen[name]:
			skipped = append(skipped, domain.SkippedSource{Source: name, Reason: "duplicate"})
		default:
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, input := range inputs {
		group, ok := strings.CutPrefix(input, groupPrefix)
		if !ok {
			add(input)
			continue
		}
		members, ok := h.config.Groups[group]
		if !ok {
			skipped = append(skipped, domain.SkippedSource{
				Source: input,
				Reason: fmt.Errorf("%w: %q", domain.ErrUnknownGroup, group).Error(),
			})
			continue
		}
		for _, m := range members {
			add(m)
		}
	}

	return names, skipped
}

// HarvestMany harvests sources one after another. A failing source is
// recorded and the batch carries on.
func (h *Harvester) HarvestMany(ctx context.Context, inputs []string, opts BatchOptions) (*BatchReport, error) {
	names, skipped := h.ExpandSources(inputs)
	report := &BatchReport{Skipped: skipped}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := h.HarvestSource(ctx, name, opts.Mode, opts.MaxItems)
		report.Results = append(report.Results, result)
		report.Totals = report.Totals.Add(result)
	}

	h.logger.Info("batch harvest completed",
		"sources", len(names),
		"skipped", len(skipped),
		"succeeded", report.Totals.Succeeded,
		"failed", report.Totals.Failed,
		"new_items", report.Totals.NewItems,
		"new_sub_items", report.Totals.NewSubItems,
	)

	return report, nil
}
