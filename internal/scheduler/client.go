package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadsync_backend/platform/config"
	"leadsync_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSyncBatch submits one batch run. Tasks carry a uniqueness window
// slightly shorter than the tick so a slow worker does not pile up
// duplicate batches.
func (c *Client) EnqueueSyncBatch(ctx context.Context, unique time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewLeadSyncBatchTask(LeadSyncBatchPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(unique))
	return err
}

// RunPeriodic enqueues a batch immediately and then on every interval tick
// until the context is cancelled.
func (c *Client) RunPeriodic(ctx context.Context, interval time.Duration, log *logger.Logger) {
	enqueue := func() {
		if err := c.EnqueueSyncBatch(ctx, interval*9/10); err != nil {
			log.Error("failed to enqueue sync batch", "error", err)
		}
	}

	enqueue()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
