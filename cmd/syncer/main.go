// The syncer runs the scheduled lead sync: an asynq worker consuming batch
// tasks plus a periodic enqueuer ticking at the configured interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadsync_backend/internal/events"
	"leadsync_backend/internal/leadsync"
	"leadsync_backend/internal/scheduler"
	"leadsync_backend/migrations"
	"leadsync_backend/platform/config"
	"leadsync_backend/platform/db"
	"leadsync_backend/platform/lock"
	"leadsync_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting syncer", "env", cfg.Env, "interval", cfg.GetSyncInterval().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	leadsyncModule, err := leadsync.NewModule(pool, eventBus, cfg, log)
	if err != nil {
		log.Error("failed to initialize leadsync module", "error", err)
		panic("failed to initialize leadsync module: " + err.Error())
	}

	if archive := leadsyncModule.Archive(); archive != nil {
		if err := withRetry(ctx, log, "ensure snapshot bucket", 5, 2*time.Second, func() error {
			return archive.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure snapshot bucket exists", "error", err)
			panic("failed to ensure snapshot bucket exists: " + err.Error())
		}
		log.Info("snapshot archive initialized", "bucket", cfg.GetMinioBucketSheetSnapshots())
	}

	locker, err := lock.New(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer locker.Close()

	worker, err := scheduler.NewWorker(cfg, leadsyncModule.Batch(), locker, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer client.Close()

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(runCtx)
		return nil
	})
	g.Go(func() error {
		client.RunPeriodic(runCtx, cfg.GetSyncInterval(), log)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("syncer stopped", "error", err)
	}
	log.Info("syncer shut down")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
