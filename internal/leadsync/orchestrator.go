package leadsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadsync_backend/internal/events"
	"leadsync_backend/internal/leadsync/aggregate"
	"leadsync_backend/internal/leadsync/identity"
	"leadsync_backend/internal/leadsync/normalize"
	"leadsync_backend/internal/leadsync/repository"
	"leadsync_backend/internal/leadsync/source"
	"leadsync_backend/internal/sheetcsv"
	"leadsync_backend/platform/apperr"
	"leadsync_backend/platform/logger"
)

// minDataRows is the smallest dataset treated as trustworthy. Anything
// smaller is assumed to be a truncated or mis-exported sheet, and the
// previously stored leads are kept.
const minDataRows = 2

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetSyncState(ctx context.Context, customerID uuid.UUID) (*repository.SyncState, error)
	RecordSyncSuccess(ctx context.Context, customerID uuid.UUID, rowCount int, checksum string, weeklyActual, monthlyActual int, at time.Time) error
	RecordSyncFailure(ctx context.Context, customerID uuid.UUID, message string, at time.Time) error
	ReconcileLeads(ctx context.Context, customerID uuid.UUID, fresh []repository.LeadRecord, checksum string, weeklyActual, monthlyActual int, at time.Time) (*repository.ReconcileResult, error)
}

// SheetFetcher downloads raw CSV text for one customer's sheet.
type SheetFetcher interface {
	Fetch(ctx context.Context, customerID, sheetURL string) (*source.Result, error)
}

// Outcome summarizes one customer's completed sync cycle.
type Outcome struct {
	CustomerID uuid.UUID
	FastPath   bool
	RowCount   int
	Checksum   string
	Created    int
	Updated    int
	Deleted    int
	Rejected   int
}

// Orchestrator runs the sync cycle for a single customer: fetch, parse,
// normalize, fingerprint, then either the fast path or a full
// reconciliation. Failures are recorded on the customer's sync state and
// never touch stored leads.
type Orchestrator struct {
	store      Store
	fetcher    SheetFetcher
	archive    *source.Archive
	normalizer *normalize.Normalizer
	identity   *identity.Engine
	aggregator *aggregate.Engine
	eventBus   events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func NewOrchestrator(store Store, fetcher SheetFetcher, archive *source.Archive, normalizer *normalize.Normalizer, identityEngine *identity.Engine, aggregator *aggregate.Engine, eventBus events.Bus, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		fetcher:    fetcher,
		archive:    archive,
		normalizer: normalizer,
		identity:   identityEngine,
		aggregator: aggregator,
		eventBus:   eventBus,
		log:        log,
		now:        time.Now,
	}
}

// SyncCustomer runs one full cycle for one customer. The returned error is
// also recorded on the customer's sync state, so callers only need it for
// batch accounting.
func (o *Orchestrator) SyncCustomer(ctx context.Context, customer repository.Customer) (*Outcome, error) {
	start := o.now()
	log := o.log.WithCustomerID(customer.ID.String())

	fetched, err := o.fetcher.Fetch(ctx, customer.ID.String(), customer.SheetURL)
	if err != nil {
		return nil, o.fail(ctx, customer.ID, start, err)
	}
	o.archive.Store(ctx, customer.ID.String(), fetched.VariantUsed, fetched.Text, start)

	rows := sheetcsv.Parse(fetched.Text)
	normalized := o.normalizer.Normalize(rows, customer.Name)

	if normalized.DataRows < minDataRows {
		err := apperr.InsufficientData("sheet has too few data rows to trust").WithOp("leadsync.SyncCustomer")
		return nil, o.fail(ctx, customer.ID, start, err)
	}

	checksum := o.identity.DatasetFingerprint(customer.ID, normalized.Leads)
	fresh := o.buildRecords(customer, normalized.Leads, fetched.VariantUsed)
	rowCount := len(fresh)
	totals := o.aggregator.Compute(normalized.Leads, start)

	outcome := &Outcome{
		CustomerID: customer.ID,
		RowCount:   rowCount,
		Checksum:   checksum,
		Rejected:   normalized.RejectedTotal(),
	}

	if o.unchanged(ctx, customer.ID, checksum, rowCount) {
		if err := o.store.RecordSyncSuccess(ctx, customer.ID, rowCount, checksum, totals.WeeklyActual, totals.MonthlyActual, start); err != nil {
			return nil, o.fail(ctx, customer.ID, start, apperr.Persistence("record fast-path success", err))
		}
		outcome.FastPath = true
	} else {
		result, err := o.store.ReconcileLeads(ctx, customer.ID, fresh, checksum, totals.WeeklyActual, totals.MonthlyActual, start)
		if err != nil {
			return nil, o.fail(ctx, customer.ID, start, apperr.Persistence("reconcile leads", err))
		}
		outcome.Created = result.Created
		outcome.Updated = result.Updated
		outcome.Deleted = result.Deleted
	}

	log.SyncCycle(customer.ID.String(), outcomeLabel(outcome), outcome.RowCount, float64(o.now().Sub(start).Milliseconds()))
	o.eventBus.Publish(ctx, events.CustomerSynced{
		BaseEvent:  events.NewBaseEvent(),
		CustomerID: customer.ID,
		RowCount:   outcome.RowCount,
		Checksum:   checksum,
		FastPath:   outcome.FastPath,
		Created:    outcome.Created,
		Updated:    outcome.Updated,
		Deleted:    outcome.Deleted,
	})
	return outcome, nil
}

// unchanged reports whether the fresh dataset matches the last successful
// sync. A missing or errored sync state always forces a full reconcile.
func (o *Orchestrator) unchanged(ctx context.Context, customerID uuid.UUID, checksum string, rowCount int) bool {
	state, err := o.store.GetSyncState(ctx, customerID)
	if err != nil || state == nil {
		return false
	}
	return state.LastChecksum == checksum && state.RowCount == rowCount && state.LastChecksum != ""
}

// buildRecords converts normalized leads into storable records. When two
// rows collapse to the same stable identity, the first occurrence wins.
func (o *Orchestrator) buildRecords(customer repository.Customer, leads []normalize.Lead, variant string) []repository.LeadRecord {
	seen := make(map[string]struct{}, len(leads))
	records := make([]repository.LeadRecord, 0, len(leads))
	for _, lead := range leads {
		id := o.identity.StableLeadID(customer.ID, lead)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, repository.LeadRecord{
			ID:           id,
			CustomerID:   customer.ID,
			AccountName:  lead.AccountName(),
			Data:         lead.DataMap(),
			SourceURL:    customer.SheetURL,
			SheetVariant: variant,
		})
	}
	return records
}

func (o *Orchestrator) fail(ctx context.Context, customerID uuid.UUID, at time.Time, err error) error {
	log := o.log.WithCustomerID(customerID.String())
	log.SyncCycle(customerID.String(), "failed", 0, float64(o.now().Sub(at).Milliseconds()))

	if recErr := o.store.RecordSyncFailure(ctx, customerID, err.Error(), at); recErr != nil {
		log.DatabaseError("record sync failure", recErr)
	}
	o.eventBus.Publish(ctx, events.CustomerSyncFailed{
		BaseEvent:  events.NewBaseEvent(),
		CustomerID: customerID,
		Reason:     err.Error(),
	})
	return err
}

func outcomeLabel(outcome *Outcome) string {
	if outcome.FastPath {
		return "fast_path"
	}
	return "reconciled"
}
