// sync-once runs a single batch directly, without redis or asynq. Useful
// for local testing and for one-off manual runs after config changes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadsync_backend/internal/events"
	"leadsync_backend/internal/leadsync"
	"leadsync_backend/migrations"
	"leadsync_backend/platform/config"
	"leadsync_backend/platform/db"
	"leadsync_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		log.Error("failed to run database migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	leadsyncModule, err := leadsync.NewModule(pool, eventBus, cfg, log)
	if err != nil {
		log.Error("failed to initialize leadsync module", "error", err)
		os.Exit(1)
	}

	report, err := leadsyncModule.Batch().Run(ctx)
	if err != nil {
		log.Error("batch run failed", "error", err)
		os.Exit(1)
	}
	log.Info("batch complete",
		"customers", report.Customers,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"fast_path", report.FastPath,
		"duration", report.Duration.String(),
	)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
