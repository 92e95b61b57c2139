// Package leadsync is the lead synchronization bounded context: fetching
// customer spreadsheets, normalizing rows into leads, and reconciling them
// into storage.
package leadsync

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadsync_backend/internal/events"
	apphttp "leadsync_backend/internal/http"
	"leadsync_backend/internal/leadsync/aggregate"
	"leadsync_backend/internal/leadsync/handler"
	"leadsync_backend/internal/leadsync/identity"
	"leadsync_backend/internal/leadsync/normalize"
	"leadsync_backend/internal/leadsync/repository"
	"leadsync_backend/internal/leadsync/service"
	"leadsync_backend/internal/leadsync/source"
	"leadsync_backend/platform/config"
	"leadsync_backend/platform/logger"
	"leadsync_backend/platform/validator"
)

// Module wires the sync engine and its status API.
type Module struct {
	batch   *BatchRunner
	archive *source.Archive
	handler *handler.Handler
}

// NewModule creates and initializes the leadsync module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cfg *config.Config, log *logger.Logger) (*Module, error) {
	rules := normalize.DefaultRules()
	if path := cfg.GetFieldRulesPath(); path != "" {
		loaded, err := normalize.LoadRules(path)
		if err != nil {
			return nil, fmt.Errorf("load field rules: %w", err)
		}
		rules = loaded
	}

	aggregator, err := aggregate.New(rules)
	if err != nil {
		return nil, err
	}

	archive, err := source.NewArchive(cfg, log)
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	fetcher := source.New(cfg.GetFetchTimeout(), cfg.GetFetchRateLimitRPS(), log)
	orchestrator := NewOrchestrator(repo, fetcher, archive, normalize.New(rules), identity.New(rules), aggregator, eventBus, log)

	return &Module{
		batch:   NewBatchRunner(repo, orchestrator, eventBus, log),
		archive: archive,
		handler: handler.New(service.New(repo, aggregator), validator.New()),
	}, nil
}

// Batch exposes the batch runner for the scheduler worker.
func (m *Module) Batch() *BatchRunner {
	return m.batch
}

// Archive exposes the optional snapshot archive so the composition root
// can verify its bucket at startup. Nil when MinIO is not configured.
func (m *Module) Archive() *source.Archive {
	return m.archive
}

// Name implements http.Module.
func (m *Module) Name() string {
	return "leadsync"
}

// RegisterRoutes implements http.Module.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/sync")
	group.GET("/states", m.handler.ListSyncStates)
	group.GET("/states/:customerId", m.handler.GetSyncState)
	group.GET("/customers/:customerId/aggregates", m.handler.GetCustomerAggregates)
}
