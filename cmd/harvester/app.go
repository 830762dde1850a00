package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"forum_harvester/internal/config"
	"forum_harvester/internal/domain"
	"forum_harvester/internal/metrics"
	"forum_harvester/internal/publisher"
	"forum_harvester/internal/scheduler"
	"forum_harvester/internal/service"
	"forum_harvester/internal/source/reddit"
	"forum_harvester/internal/storage/sqlstore"
)

// app wires configuration, storage, the Reddit client and the scheduler.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	publisher *publisher.RabbitMQ
	metrics   *metrics.Recorder
	harvester *service.Harvester
	scheduler *scheduler.Scheduler
	corpus    *sqlstore.CorpusStore
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	logger := setupLogger("info", os.Stderr)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.LogLevel, os.Stderr)

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	var stores service.Stores
	var checkpoints *sqlstore.CheckpointStore
	if !cfg.Harvest.DisablePersistence {
		if cfg.Database.Driver == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}

		db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		a.db = db
		logger.Info("connected to database", "driver", cfg.Database.Driver)

		checkpoints = sqlstore.NewCheckpointStore(db)
		stores = service.Stores{
			Sources:     sqlstore.NewSourceStore(db),
			Items:       sqlstore.NewItemStore(db),
			SubItems:    sqlstore.NewSubItemStore(db),
			Checkpoints: checkpoints,
			TxManager:   sqlstore.NewTransactionManager(db),
		}
		a.corpus = sqlstore.NewCorpusStore(db)
	}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.publisher = rabbitMQ
		pub = rabbitMQ
	}

	source := reddit.New(reddit.Config{
		BaseURL:           cfg.API.BaseURL,
		OAuthBaseURL:      cfg.API.OAuthBaseURL,
		TokenURL:          cfg.API.TokenURL,
		PageSize:          cfg.API.PageSize,
		Timeout:           cfg.API.Timeout,
		RequestsPerMinute: cfg.API.RequestsPerMinute,
		MaxAttempts:       cfg.API.Retry.MaxAttempts,
		InitialBackoff:    cfg.API.Retry.InitialBackoff,
		MaxBackoff:        cfg.API.Retry.MaxBackoff,
		ClientID:          cfg.API.Credentials.ClientID,
		ClientSecret:      cfg.API.Credentials.ClientSecret,
		UserAgent:         cfg.API.Credentials.UserAgent,
	}, logger)

	a.harvester = service.NewHarvester(source, stores, pub, logger, cfg.Harvest)

	if checkpoints != nil {
		a.scheduler = scheduler.NewScheduler(a.harvester, checkpoints, a.metrics, cfg.Schedule, logger)
	}

	return a, nil
}

// requireStore fails commands that only make sense with persistence.
func (a *app) requireStore() error {
	if a.db == nil {
		return fmt.Errorf("%w: database is disabled in config", domain.ErrPersistenceDisabled)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
