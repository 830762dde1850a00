package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"forum_harvester/internal/config"
	"forum_harvester/internal/domain"
)

// DueTier lists the sources of one tier that are due, in configured order.
type DueTier struct {
	Tier    config.TierConfig `json:"tier"`
	Sources []string          `json:"sources"`
}

type RunReport struct {
	RunID      string                 `json:"run_id"`
	DryRun     bool                   `json:"dry_run"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Due        []DueTier              `json:"due"`
	Skipped    []domain.SkippedSource `json:"skipped,omitempty"`
	Results    []domain.SourceResult  `json:"results,omitempty"`
	Totals     domain.Totals          `json:"totals"`
}

// SourceStatus is the schedule position of one configured source.
type SourceStatus struct {
	Source            string             `json:"source"`
	Tier              string             `json:"tier"`
	Interval          time.Duration      `json:"interval"`
	LastHarvestAt     *time.Time         `json:"last_harvest_at,omitempty"`
	Elapsed           time.Duration      `json:"elapsed,omitempty"`
	NextDueAt         *time.Time         `json:"next_due_at,omitempty"`
	Due               bool               `json:"due"`
	Mode              domain.HarvestMode `json:"mode,omitempty"`
	ItemsHarvested    int64              `json:"items_harvested"`
	SubItemsHarvested int64              `json:"sub_items_harvested"`
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

type Scheduler struct {
	harvester   Harvester
	checkpoints CheckpointReader
	recorder    Recorder
	cfg         config.ScheduleConfig
	now         func() time.Time
	logger      *slog.Logger
}

func NewScheduler(
	harvester Harvester,
	checkpoints CheckpointReader,
	recorder Recorder,
	cfg config.ScheduleConfig,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		harvester:   harvester,
		checkpoints: checkpoints,
		recorder:    recorder,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.cfg.TickInterval, "tiers", len(s.cfg.Tiers))

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.RunScheduled(ctx, false); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

// tierSources returns every tier with its sources, dropping empty names and
// sources already claimed by an earlier tier.
func (s *Scheduler) tierSources() ([]DueTier, []domain.SkippedSource) {
	var tiers []DueTier
	var skipped []domain.SkippedSource
	owner := make(map[string]string)

	for _, tier := range s.cfg.Tiers {
		dt := DueTier{Tier: tier}
		for _, name := range tier.Sources {
			if name == "" {
				skipped = append(skipped, domain.SkippedSource{Tier: tier.Name, Reason: "empty source name"})
				continue
			}
			if first, ok := owner[name]; ok {
				skipped = append(skipped, domain.SkippedSource{
					Source: name,
					Tier:   tier.Name,
					Reason: fmt.Sprintf("already scheduled in tier %q", first),
				})
				continue
			}
			owner[name] = tier.Name
			dt.Sources = append(dt.Sources, name)
		}
		tiers = append(tiers, dt)
	}

	for _, sk := range skipped {
		s.logger.Warn("skipping source", "source", sk.Source, "tier", sk.Tier, "reason", sk.Reason)
	}
	return tiers, skipped
}

func isDue(cp *domain.Checkpoint, interval time.Duration, now time.Time) bool {
	if cp == nil || cp.LastHarvestAt.IsZero() {
		return true
	}
	return now.Sub(cp.LastHarvestAt) >= interval
}

// DueSources returns, tier by tier, the sources whose interval has elapsed
// since their last harvest. Sources never harvested are always due.
func (s *Scheduler) DueSources(ctx context.Context) ([]DueTier, []domain.SkippedSource, error) {
	return s.dueSources(ctx, "")
}

// dueSources restricts the due set to one tier when only is set.
func (s *Scheduler) dueSources(ctx context.Context, only string) ([]DueTier, []domain.SkippedSource, error) {
	tiers, skipped := s.tierSources()
	now := s.now()

	var due []DueTier
	for _, t := range tiers {
		if only != "" && t.Tier.Name != only {
			continue
		}
		dt := DueTier{Tier: t.Tier}
		for _, name := range t.Sources {
			cp, err := s.checkpoints.GetBySourceName(ctx, name)
			if err != nil {
				return nil, skipped, fmt.Errorf("checkpoint for %s: %w", name, err)
			}
			if isDue(cp, t.Tier.Interval, now) {
				dt.Sources = append(dt.Sources, name)
			}
		}
		if len(dt.Sources) > 0 {
			due = append(due, dt)
		}
	}
	return due, skipped, nil
}

// RunScheduled harvests every due source once, tier by tier. A failing source
// is recorded and the run continues. With dryRun only the due set is
// computed.
func (s *Scheduler) RunScheduled(ctx context.Context, dryRun bool) (*RunReport, error) {
	return s.run(ctx, "", dryRun)
}

// RunTier is RunScheduled restricted to the due sources of a single tier.
func (s *Scheduler) RunTier(ctx context.Context, tier string, dryRun bool) (*RunReport, error) {
	if _, err := s.TierByName(tier); err != nil {
		return nil, err
	}
	return s.run(ctx, tier, dryRun)
}

func (s *Scheduler) run(ctx context.Context, only string, dryRun bool) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: s.now(),
	}
	logger := s.logger.With("run_id", report.RunID)

	due, skipped, err := s.dueSources(ctx, only)
	report.Skipped = skipped
	if err != nil {
		return report, err
	}
	report.Due = due

	count := 0
	for _, dt := range due {
		count += len(dt.Sources)
	}
	logger.Info("scheduled run", "due", count, "tiers", len(due), "dry_run", dryRun)

	if dryRun {
		report.FinishedAt = s.now()
		return report, nil
	}

	for _, dt := range due {
		for _, name := range dt.Sources {
			if err := ctx.Err(); err != nil {
				report.FinishedAt = s.now()
				return report, err
			}

			res := s.harvester.HarvestSource(ctx, name, "", dt.Tier.MaxItems)
			res.Tier = dt.Tier.Name
			report.Results = append(report.Results, res)
			report.Totals = report.Totals.Add(res)

			if s.recorder != nil {
				s.recorder.ObserveSource(res)
			}

			logger.Info("source harvested",
				"source", name,
				"tier", dt.Tier.Name,
				"mode", res.Mode,
				"success", res.Success,
				"new_items", res.NewItems,
				"new_sub_items", res.NewSubItems,
				"duration", res.Duration,
			)
		}
	}

	report.FinishedAt = s.now()
	if s.recorder != nil {
		s.recorder.ObserveRun(count, report.Totals, report.FinishedAt)
	}

	logger.Info("scheduled run completed",
		"succeeded", report.Totals.Succeeded,
		"failed", report.Totals.Failed,
		"new_items", report.Totals.NewItems,
		"new_sub_items", report.Totals.NewSubItems,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	return report, nil
}

// Status reports where every configured source stands in its schedule.
func (s *Scheduler) Status(ctx context.Context) ([]SourceStatus, error) {
	tiers, _ := s.tierSources()
	now := s.now()

	var statuses []SourceStatus
	for _, t := range tiers {
		for _, name := range t.Sources {
			cp, err := s.checkpoints.GetBySourceName(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("checkpoint for %s: %w", name, err)
			}

			st := SourceStatus{
				Source:   name,
				Tier:     t.Tier.Name,
				Interval: t.Tier.Interval,
				Due:      isDue(cp, t.Tier.Interval, now),
			}
			if cp != nil && !cp.LastHarvestAt.IsZero() {
				last := cp.LastHarvestAt
				next := last.Add(t.Tier.Interval)
				st.LastHarvestAt = &last
				st.NextDueAt = &next
				st.Elapsed = now.Sub(last)
				st.Mode = cp.Mode
				st.ItemsHarvested = cp.ItemsHarvested
				st.SubItemsHarvested = cp.SubItemsHarvested
			}
			statuses = append(statuses, st)
		}
	}
	return statuses, nil
}

// TierByName finds a configured tier.
func (s *Scheduler) TierByName(name string) (config.TierConfig, error) {
	for _, t := range s.cfg.Tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return config.TierConfig{}, fmt.Errorf("%w: %q", domain.ErrUnknownTier, name)
}
