package main

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdziat/scheduled-publisher/pkg/config"
	"github.com/jdziat/scheduled-publisher/pkg/core"
	"github.com/jdziat/scheduled-publisher/pkg/logging"
	"github.com/jdziat/scheduled-publisher/pkg/metrics"
	"github.com/jdziat/scheduled-publisher/pkg/platform"
	"github.com/jdziat/scheduled-publisher/pkg/retry"
	"github.com/jdziat/scheduled-publisher/pkg/scheduler"
	"github.com/jdziat/scheduled-publisher/pkg/storage"
)

// app holds what every subcommand needs after PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "publisherd",
		Short: "Schedule posts and publish them to social platforms",
		Long: `publisherd keeps scheduled posts in a database and publishes them to
TWITTER, LINKEDIN and INSTAGRAM at their scheduled time.

Configuration is read from --config (YAML, TOML or JSON) and PUBLISHER_*
environment variables, e.g. PUBLISHER_DATABASE_DSN.

Examples:
  publisherd migrate
  publisherd account add --owner u1 --platform TWITTER --token abc
  publisherd schedule --owner u1 --platform TWITTER --content "hi" --in 1h
  publisherd serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a config file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newScheduleCmd(a),
		newCancelCmd(a),
		newStatusCmd(a),
		newAccountCmd(a),
	)
	return root
}

// openStore opens the configured database and brings the schema up to date.
func (a *app) openStore(ctx context.Context) (*storage.GormStorage, func(), error) {
	db, err := storage.Open(a.cfg.Database.Driver, a.cfg.Database.DSN,
		storage.MaxOpenConns(a.cfg.Database.MaxOpenConns),
		storage.MaxIdleConns(a.cfg.Database.MaxIdleConns),
	)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	store := storage.NewGormStorage(db)
	if err := store.Migrate(ctx); err != nil {
		closeFn()
		return nil, nil, errors.Wrap(err, "migrate schema")
	}
	return store, closeFn, nil
}

// platforms builds the HTTP publisher registry from config.
func (a *app) platforms() *platform.Registry {
	configs := make(map[core.Platform]platform.HTTPConfig, len(a.cfg.Platforms))
	for name, pc := range a.cfg.Platforms {
		configs[core.Platform(strings.ToUpper(name))] = platform.HTTPConfig{
			BaseURL:       pc.BaseURL,
			RatePerMinute: pc.RatePerMinute,
		}
	}
	return platform.NewDefaultRegistry(configs)
}

// service builds a scheduler over store using the configured policy.
func (a *app) service(store *storage.GormStorage, m *metrics.Metrics) *scheduler.Service {
	sc := a.cfg.Scheduler
	opts := []scheduler.Option{
		scheduler.WithLogger(a.logger),
		scheduler.WithSweepInterval(sc.SweepInterval),
		scheduler.WithRetryPolicy(retry.Policy{
			Delay:       sc.RetryDelay,
			Exponential: sc.ExponentialBackoff,
			MaxDelay:    sc.MaxRetryDelay,
		}),
		scheduler.WithDefaultMaxRetries(sc.MaxRetries),
		scheduler.WithPlatformConcurrency(sc.PlatformConcurrency),
		scheduler.WithPublishTimeout(sc.PublishTimeout),
		scheduler.WithMetrics(m),
	}
	if sc.SweepSchedule != "" {
		opts = append(opts, scheduler.WithSweepSchedule(sc.SweepSchedule))
	}
	if sc.StaleProcessingAfter > 0 {
		opts = append(opts, scheduler.WithStaleProcessingRecovery(sc.StaleProcessingAfter))
	}
	return scheduler.New(store, store, a.platforms(), store, opts...)
}
