// Package service exposes read-side sync status and aggregate queries for
// the HTTP API.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadsync_backend/internal/leadsync/aggregate"
	"leadsync_backend/internal/leadsync/normalize"
	"leadsync_backend/internal/leadsync/repository"
	"leadsync_backend/platform/apperr"
)

// SyncStateView is the API shape of one customer's sync cursor.
type SyncStateView struct {
	CustomerID    uuid.UUID  `json:"customerId"`
	CustomerName  string     `json:"customerName,omitempty"`
	LastSyncAt    *time.Time `json:"lastSyncAt"`
	LastSuccessAt *time.Time `json:"lastSuccessAt"`
	RowCount      int        `json:"rowCount"`
	LeadCount     *int       `json:"leadCount,omitempty"`
	LastChecksum  string     `json:"lastChecksum"`
	LastError     *string    `json:"lastError"`
	Healthy       bool       `json:"healthy"`
}

// CustomerAggregates pairs a customer with totals computed from its
// stored leads.
type CustomerAggregates struct {
	CustomerID   uuid.UUID        `json:"customerId"`
	CustomerName string           `json:"customerName"`
	ComputedAt   time.Time        `json:"computedAt"`
	Totals       aggregate.Result `json:"totals"`
}

type Service struct {
	repo       *repository.Repository
	aggregator *aggregate.Engine
}

func New(repo *repository.Repository, aggregator *aggregate.Engine) *Service {
	return &Service{repo: repo, aggregator: aggregator}
}

// ListFilter narrows the sync state listing.
type ListFilter struct {
	OnlyFailing bool `form:"onlyFailing"`
	Limit       int  `form:"limit" validate:"gte=0,lte=1000"`
}

// ListSyncStates returns customer sync cursors matching the filter.
func (s *Service) ListSyncStates(ctx context.Context, filter ListFilter) ([]SyncStateView, error) {
	states, err := s.repo.ListSyncStates(ctx)
	if err != nil {
		return nil, apperr.Persistence("list sync states", err).WithOp("service.ListSyncStates")
	}

	views := make([]SyncStateView, 0, len(states))
	for _, state := range states {
		view := toView(state.SyncState)
		view.CustomerName = state.CustomerName
		if filter.OnlyFailing && view.Healthy {
			continue
		}
		views = append(views, view)
		if filter.Limit > 0 && len(views) == filter.Limit {
			break
		}
	}
	return views, nil
}

// GetSyncState returns one customer's sync cursor along with the stored
// lead count.
func (s *Service) GetSyncState(ctx context.Context, customerID uuid.UUID) (*SyncStateView, error) {
	state, err := s.repo.GetSyncState(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("customer has never been synced").WithOp("service.GetSyncState")
	}
	if err != nil {
		return nil, apperr.Persistence("get sync state", err).WithOp("service.GetSyncState")
	}

	count, err := s.repo.CountLeadRecords(ctx, customerID)
	if err != nil {
		return nil, apperr.Persistence("count lead records", err).WithOp("service.GetSyncState")
	}

	view := toView(*state)
	view.LeadCount = &count
	if customer, err := s.repo.GetCustomer(ctx, customerID); err == nil {
		view.CustomerName = customer.Name
	}
	return &view, nil
}

// GetCustomerAggregates recomputes totals from the customer's stored
// leads. Totals are relative to the current week and month.
func (s *Service) GetCustomerAggregates(ctx context.Context, customerID uuid.UUID) (*CustomerAggregates, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("customer not found").WithOp("service.GetCustomerAggregates")
	}
	if err != nil {
		return nil, apperr.Persistence("get customer", err).WithOp("service.GetCustomerAggregates")
	}

	records, err := s.repo.ListLeadRecords(ctx, customerID)
	if err != nil {
		return nil, apperr.Persistence("list lead records", err).WithOp("service.GetCustomerAggregates")
	}

	leads := make([]normalize.Lead, 0, len(records))
	for _, rec := range records {
		leads = append(leads, normalize.FromMap(rec.Data))
	}

	now := time.Now()
	return &CustomerAggregates{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		ComputedAt:   now,
		Totals:       s.aggregator.Compute(leads, now),
	}, nil
}

func toView(state repository.SyncState) SyncStateView {
	return SyncStateView{
		CustomerID:    state.CustomerID,
		LastSyncAt:    state.LastSyncAt,
		LastSuccessAt: state.LastSuccessAt,
		RowCount:      state.RowCount,
		LastChecksum:  state.LastChecksum,
		LastError:     state.LastError,
		Healthy:       state.LastError == nil && state.LastSuccessAt != nil,
	}
}
