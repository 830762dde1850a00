package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"forum_harvester/internal/domain"
	"forum_harvester/internal/scheduler"
	"forum_harvester/internal/service"
)

// withApp builds the app for one command invocation and closes it afterwards.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd(configPath *string) *cobra.Command {
	var dryRun bool
	var tier string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest every source whose tier interval has elapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.requireStore(); err != nil {
					return err
				}

				var report *scheduler.RunReport
				var err error
				if tier != "" {
					report, err = a.scheduler.RunTier(ctx, tier, dryRun)
				} else {
					report, err = a.scheduler.RunScheduled(ctx, dryRun)
				}
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if report.Totals.Failed > 0 {
					return fmt.Errorf("%d of %d sources failed", report.Totals.Failed, len(report.Results))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the sources that are due")
	cmd.Flags().StringVar(&tier, "tier", "", "restrict the run to one tier")
	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schedule status of every configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.requireStore(); err != nil {
					return err
				}
				statuses, err := a.scheduler.Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), statuses)
			})
		},
	}
}

func parseMode(s string) (domain.HarvestMode, error) {
	switch s {
	case "", "auto":
		return "", nil
	case string(domain.ModeDelta):
		return domain.ModeDelta, nil
	case string(domain.ModeFull):
		return domain.ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, delta or full)", s)
	}
}

func harvestCmd(configPath *string) *cobra.Command {
	var mode string
	var maxItems int

	cmd := &cobra.Command{
		Use:   "harvest <source|group:name>...",
		Short: "Harvest the named sources now, regardless of schedule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				report, err := a.harvester.HarvestMany(ctx, args, service.BatchOptions{
					Mode:     m,
					MaxItems: maxItems,
				})
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if report.Totals.Failed > 0 {
					return fmt.Errorf("%d of %d sources failed", report.Totals.Failed, len(report.Results))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "auto", "harvest mode: auto, delta or full")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "items per source (0 uses the configured default)")
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.requireStore(); err != nil {
					return err
				}
				stats, err := a.corpus.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		source   string
		since    time.Duration
		minScore int64
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored items with their sub-items as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.ItemFilter{Source: source, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			if cmd.Flags().Changed("min-score") {
				filter.MinScore = &minScore
			}

			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.requireStore(); err != nil {
					return err
				}
				return exportItems(ctx, a.corpus, filter, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only items of this source")
	cmd.Flags().DurationVar(&since, "since", 0, "only items created within this duration")
	cmd.Flags().Int64Var(&minScore, "min-score", 0, "only items with at least this score")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items (0 for all)")
	return cmd
}

type corpusReader interface {
	ListItems(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error)
	ListSubItems(ctx context.Context, itemID int64) ([]domain.SubItem, error)
}

func exportItems(ctx context.Context, corpus corpusReader, filter domain.ItemFilter, w io.Writer) error {
	items, err := corpus.ListItems(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, item := range items {
		subs, err := corpus.ListSubItems(ctx, item.ID)
		if err != nil {
			return err
		}
		if err := enc.Encode(domain.HarvestedItem{Item: item, SubItems: subs}); err != nil {
			return fmt.Errorf("write item %s: %w", item.ExternalID, err)
		}
	}
	return nil
}

func daemonCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the tier scheduler continuously and serve /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.requireStore(); err != nil {
					return err
				}
				return runDaemon(ctx, a)
			})
		},
	}
}

func runDaemon(ctx context.Context, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.scheduler.Start(gctx)
	})

	a.logger.Info("starting harvester daemon",
		"tiers", len(a.cfg.Schedule.Tiers),
		"tick_interval", a.cfg.Schedule.TickInterval,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
