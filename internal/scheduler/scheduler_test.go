package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"forum_harvester/internal/config"
	"forum_harvester/internal/domain"
	"forum_harvester/internal/scheduler/mocks"
)

type SchedulerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	ctx  context.Context
	now  time.Time

	harvester   *mocks.MockHarvester
	checkpoints *mocks.MockCheckpointReader
	recorder    *mocks.MockRecorder

	scheduler *Scheduler
}

func (s *SchedulerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s.harvester = mocks.NewMockHarvester(s.ctrl)
	s.checkpoints = mocks.NewMockCheckpointReader(s.ctrl)
	s.recorder = mocks.NewMockRecorder(s.ctrl)

	cfg := config.ScheduleConfig{
		TickInterval: time.Hour,
		Tiers: []config.TierConfig{
			{Name: "high", Interval: 2 * time.Hour, MaxItems: 25, Sources: []string{"A", "B", "C"}},
			{Name: "low", Interval: 24 * time.Hour, MaxItems: 50, Sources: []string{"D", "A", ""}},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.scheduler = NewScheduler(s.harvester, s.checkpoints, s.recorder, cfg, logger,
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) harvestedAgo(name string, ago time.Duration) {
	s.checkpoints.EXPECT().GetBySourceName(s.ctx, name).Return(&domain.Checkpoint{
		LastItemID:        ptr("x"),
		LastHarvestAt:     s.now.Add(-ago),
		ItemsHarvested:    10,
		SubItemsHarvested: 40,
		Mode:              domain.ModeDelta,
	}, nil).AnyTimes()
}

func (s *SchedulerTestSuite) neverHarvested(name string) {
	s.checkpoints.EXPECT().GetBySourceName(s.ctx, name).Return(nil, nil).AnyTimes()
}

func ptr[T any](v T) *T { return &v }

func (s *SchedulerTestSuite) TestDueSources() {
	s.harvestedAgo("A", 3*time.Hour)
	s.harvestedAgo("B", time.Hour)
	s.neverHarvested("C")
	s.harvestedAgo("D", 24*time.Hour)

	due, skipped, err := s.scheduler.DueSources(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal("high", due[0].Tier.Name)
	s.Equal([]string{"A", "C"}, due[0].Sources)
	s.Equal("low", due[1].Tier.Name)
	s.Equal([]string{"D"}, due[1].Sources, "interval boundary counts as due")

	s.Require().Len(skipped, 2)
	s.Equal("A", skipped[0].Source)
	s.Equal("low", skipped[0].Tier)
	s.Contains(skipped[0].Reason, `"high"`)
	s.Equal("empty source name", skipped[1].Reason)
}

func (s *SchedulerTestSuite) TestDueSources_ZeroHarvestTimeIsDue() {
	s.checkpoints.EXPECT().GetBySourceName(s.ctx, gomock.Any()).Return(&domain.Checkpoint{}, nil).Times(4)

	due, _, err := s.scheduler.DueSources(s.ctx)

	s.Require().NoError(err)
	s.Len(due, 2)
}

func (s *SchedulerTestSuite) TestDueSources_StoreError() {
	s.checkpoints.EXPECT().GetBySourceName(s.ctx, "A").Return(nil, errors.New("db locked"))

	_, _, err := s.scheduler.DueSources(s.ctx)

	s.ErrorContains(err, "db locked")
}

func (s *SchedulerTestSuite) TestRunScheduled_PartialFailure() {
	for _, name := range []string{"A", "B", "C"} {
		s.neverHarvested(name)
	}
	s.harvestedAgo("D", time.Hour)

	s.harvester.EXPECT().HarvestSource(s.ctx, "A", domain.HarvestMode(""), 25).Return(domain.SourceResult{
		Source: "A", Mode: domain.ModeDelta, Success: true, NewItems: 3, NewSubItems: 9,
	})
	s.harvester.EXPECT().HarvestSource(s.ctx, "B", domain.HarvestMode(""), 25).Return(domain.SourceResult{
		Source: "B", Mode: domain.ModeDelta, Error: "content source transport failure",
	})
	s.harvester.EXPECT().HarvestSource(s.ctx, "C", domain.HarvestMode(""), 25).Return(domain.SourceResult{
		Source: "C", Mode: domain.ModeFull, Success: true, NewItems: 1,
	})

	s.recorder.EXPECT().ObserveSource(gomock.Any()).Do(func(res domain.SourceResult) {
		s.Equal("high", res.Tier)
	}).Times(3)
	s.recorder.EXPECT().ObserveRun(3, domain.Totals{NewItems: 4, NewSubItems: 9, Succeeded: 2, Failed: 1}, s.now)

	report, err := s.scheduler.RunScheduled(s.ctx, false)

	s.Require().NoError(err)
	s.NotEmpty(report.RunID)
	s.Require().Len(report.Results, 3)
	s.True(report.Results[0].Success)
	s.False(report.Results[1].Success)
	s.Equal("content source transport failure", report.Results[1].Error)
	s.True(report.Results[2].Success)
	s.Equal(domain.Totals{NewItems: 4, NewSubItems: 9, Succeeded: 2, Failed: 1}, report.Totals)
}

func (s *SchedulerTestSuite) TestRunScheduled_DryRun() {
	s.neverHarvested("A")
	s.harvestedAgo("B", time.Hour)
	s.harvestedAgo("C", time.Hour)
	s.harvestedAgo("D", time.Hour)

	report, err := s.scheduler.RunScheduled(s.ctx, true)

	s.Require().NoError(err)
	s.True(report.DryRun)
	s.Require().Len(report.Due, 1)
	s.Equal([]string{"A"}, report.Due[0].Sources)
	s.Empty(report.Results)
}

func (s *SchedulerTestSuite) TestRunScheduled_RunIDsDiffer() {
	s.checkpoints.EXPECT().GetBySourceName(s.ctx, gomock.Any()).Return(&domain.Checkpoint{LastHarvestAt: s.now}, nil).AnyTimes()
	s.recorder.EXPECT().ObserveRun(0, domain.Totals{}, s.now).Times(2)

	first, err := s.scheduler.RunScheduled(s.ctx, false)
	s.Require().NoError(err)
	second, err := s.scheduler.RunScheduled(s.ctx, false)
	s.Require().NoError(err)

	s.NotEqual(first.RunID, second.RunID)
	s.Empty(first.Due)
}

func (s *SchedulerTestSuite) TestRunScheduled_StopsWhenCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.checkpoints.EXPECT().GetBySourceName(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	report, err := s.scheduler.RunScheduled(ctx, false)

	s.ErrorIs(err, context.Canceled)
	s.Empty(report.Results)
}

func (s *SchedulerTestSuite) TestRunTier() {
	s.neverHarvested("D")
	s.harvester.EXPECT().HarvestSource(s.ctx, "D", domain.HarvestMode(""), 50).Return(domain.SourceResult{
		Source: "D", Mode: domain.ModeDelta, Success: true,
	})
	s.recorder.EXPECT().ObserveSource(gomock.Any())
	s.recorder.EXPECT().ObserveRun(1, gomock.Any(), s.now)

	report, err := s.scheduler.RunTier(s.ctx, "low", false)

	s.Require().NoError(err)
	s.Require().Len(report.Results, 1)
	s.Equal("low", report.Results[0].Tier)

	_, err = s.scheduler.RunTier(s.ctx, "medium", false)
	s.ErrorIs(err, domain.ErrUnknownTier)
}

func (s *SchedulerTestSuite) TestStatus() {
	s.harvestedAgo("A", 3*time.Hour)
	s.harvestedAgo("B", time.Hour)
	s.neverHarvested("C")
	s.neverHarvested("D")

	statuses, err := s.scheduler.Status(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(statuses, 4)

	a := statuses[0]
	s.Equal("A", a.Source)
	s.True(a.Due)
	s.Equal(3*time.Hour, a.Elapsed)
	s.Equal(int64(10), a.ItemsHarvested)

	b := statuses[1]
	s.False(b.Due)
	s.Require().NotNil(b.NextDueAt)
	s.Equal(s.now.Add(time.Hour), *b.NextDueAt)

	c := statuses[2]
	s.True(c.Due)
	s.Nil(c.LastHarvestAt)

	s.Equal("low", statuses[3].Tier)
}

func (s *SchedulerTestSuite) TestStart_RunsUntilCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.checkpoints.EXPECT().GetBySourceName(ctx, gomock.Any()).Return(&domain.Checkpoint{LastHarvestAt: s.now}, nil).AnyTimes()
	s.recorder.EXPECT().ObserveRun(0, domain.Totals{}, s.now).Do(func(int, domain.Totals, time.Time) {
		cancel()
	})

	err := s.scheduler.Start(ctx)

	s.ErrorIs(err, context.Canceled)
}
