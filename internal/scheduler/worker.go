package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadsync_backend/internal/leadsync"
	"leadsync_backend/platform/config"
	"leadsync_backend/platform/lock"
	"leadsync_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// batchLeaseName guards batch runs across every worker process.
const batchLeaseName = "leadsync.batch"

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	batch   *leadsync.BatchRunner
	locker  *lock.Locker
	lockTTL time.Duration
	log     *logger.Logger
}

type WorkerConfig interface {
	config.SchedulerConfig
	config.SyncConfig
}

func NewWorker(cfg WorkerConfig, batch *leadsync.BatchRunner, locker *lock.Locker, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		batch:   batch,
		locker:  locker,
		lockTTL: cfg.GetSyncLockTTL(),
		log:     log,
	}

	mux.HandleFunc(TaskLeadSyncBatch, w.handleLeadSyncBatch)

	return w, nil
}

// handleLeadSyncBatch runs one batch under a distributed lease. When
// another process already holds the lease, the task is dropped rather than
// retried, because the next tick enqueues a fresh one anyway.
func (w *Worker) handleLeadSyncBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadSyncBatchPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	lease, acquired, err := w.locker.Acquire(ctx, batchLeaseName, w.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire batch lease: %w", err)
	}
	if !acquired {
		w.log.Info("sync batch already running elsewhere, skipping", "requested_at", payload.RequestedAt)
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			w.log.Warn("failed to release batch lease", "error", err)
		}
	}()

	stopExtend := w.keepLeaseAlive(ctx, lease)
	defer stopExtend()

	if delay := time.Since(payload.RequestedAt); delay > time.Minute {
		w.log.Warn("sync batch delivered late", "delay", delay.String())
	}

	_, err = w.batch.Run(ctx)
	return err
}

// keepLeaseAlive extends the lease on a fraction of its TTL so a batch
// slower than the TTL is not stolen by a concurrent worker.
func (w *Worker) keepLeaseAlive(ctx context.Context, lease *lock.Lease) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				extended, err := lease.Extend(ctx)
				if err != nil {
					w.log.Warn("failed to extend batch lease", "error", err)
				} else if !extended {
					w.log.Warn("batch lease expired mid-run")
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
