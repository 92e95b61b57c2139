package leadsync

import (
	"context"
	"fmt"
	"time"

	"leadsync_backend/internal/events"
	"leadsync_backend/internal/leadsync/repository"
	"leadsync_backend/platform/logger"
)

// CustomerLister enumerates the customers a batch run covers.
type CustomerLister interface {
	ListCustomersWithSourceURL(ctx context.Context) ([]repository.Customer, error)
}

// BatchReport summarizes one full batch run.
type BatchReport struct {
	Customers int
	Succeeded int
	Failed    int
	FastPath  int
	Duration  time.Duration
}

// BatchRunner drives a full sync pass over every configured customer.
// Customers are processed sequentially so one shared rate limiter and one
// database connection budget cover the whole run, and a failure for one
// customer never blocks the rest.
type BatchRunner struct {
	customers    CustomerLister
	orchestrator *Orchestrator
	eventBus     events.Bus
	log          *logger.Logger
	now          func() time.Time
}

func NewBatchRunner(customers CustomerLister, orchestrator *Orchestrator, eventBus events.Bus, log *logger.Logger) *BatchRunner {
	return &BatchRunner{
		customers:    customers,
		orchestrator: orchestrator,
		eventBus:     eventBus,
		log:          log,
		now:          time.Now,
	}
}

// Run executes one batch. It stops early only when the context is
// cancelled; individual customer failures are counted and logged.
func (b *BatchRunner) Run(ctx context.Context) (*BatchReport, error) {
	start := b.now()

	customers, err := b.customers.ListCustomersWithSourceURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	report := &BatchReport{Customers: len(customers)}
	for _, customer := range customers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		outcome, err := b.syncOne(ctx, customer)
		if err != nil {
			report.Failed++
			continue
		}
		report.Succeeded++
		if outcome.FastPath {
			report.FastPath++
		}
	}

	report.Duration = b.now().Sub(start)
	b.log.SyncBatch(report.Customers, report.Succeeded, report.Failed, float64(report.Duration.Milliseconds()))
	b.eventBus.Publish(ctx, events.SyncBatchCompleted{
		BaseEvent: events.NewBaseEvent(),
		Customers: report.Customers,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Duration:  report.Duration,
	})
	return report, nil
}

// syncOne isolates a single customer cycle, converting panics into
// ordinary failures so a malformed sheet can never take down the batch.
func (b *BatchRunner) syncOne(ctx context.Context, customer repository.Customer) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panicked: %v", r)
			b.log.Error("customer sync panicked", "customer_id", customer.ID.String(), "panic", fmt.Sprint(r))
		}
	}()
	return b.orchestrator.SyncCustomer(ctx, customer)
}
