package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"payment-reconciler/core/config"
	"payment-reconciler/core/database"
	"payment-reconciler/core/lock"
	"payment-reconciler/core/logger"
	"payment-reconciler/core/storage"
	"payment-reconciler/core/store"

	"payment-reconciler/feature/divergence"
	"payment-reconciler/feature/reconciliation"
	"payment-reconciler/feature/records"
	"payment-reconciler/feature/statistics"

	"go.uber.org/zap"
)

// application is the wired service shared by the server and the CLI commands.
type application struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	locker lock.Locker

	records        *records.Feature
	reconciliation *reconciliation.Feature
	divergence     *divergence.Feature
	statistics     *statistics.Feature
}

// newApplication loads the configuration and connects every dependency.
// Object storage is only contacted when the run archive is enabled.
func newApplication(ctx context.Context) (*application, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaults, err := cfg.Reconcile.MatchConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile configuration: %w", err)
	}
	review, err := cfg.Review.Strict()
	if err != nil {
		return nil, fmt.Errorf("invalid review configuration: %w", err)
	}

	// 3. Connect to Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 4. Scope locks
	locker, err := lock.New(cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scope locks: %w", err)
	}

	// 5. Run archive (optional)
	var client storage.Client
	if cfg.Storage.ArchiveEnabled {
		client, err = storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, fmt.Errorf("failed to prepare archive bucket: %w", err)
		}
	}

	return &application{
		cfg:    cfg,
		logger: l,
		store:  st,
		locker: locker,

		records: records.NewFeature(st, l),
		reconciliation: reconciliation.NewFeature(st, locker, client, cfg.Storage, l, reconciliation.Options{
			Defaults: defaults,
			Review:   review,
		}),
		divergence: divergence.NewFeature(st, l),
		statistics: statistics.NewFeature(st, l, time.Duration(cfg.Statistics.CacheTTLSeconds)*time.Second),
	}, nil
}

// Close releases the lock backend and flushes the logger.
func (a *application) Close() {
	if closer, ok := a.locker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("Failed to close lock backend", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
