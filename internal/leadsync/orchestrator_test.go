package leadsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadsync_backend/internal/events"
	"leadsync_backend/internal/leadsync/aggregate"
	"leadsync_backend/internal/leadsync/identity"
	"leadsync_backend/internal/leadsync/normalize"
	"leadsync_backend/internal/leadsync/repository"
	"leadsync_backend/internal/leadsync/source"
	"leadsync_backend/platform/apperr"
	"leadsync_backend/platform/logger"
)

// memStore mirrors the repository's reconcile semantics in memory.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]map[string]repository.LeadRecord
	states  map[uuid.UUID]*repository.SyncState

	reconcileCalls int
	successCalls   int
	failureCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[uuid.UUID]map[string]repository.LeadRecord),
		states:  make(map[uuid.UUID]*repository.SyncState),
	}
}

func (s *memStore) GetSyncState(ctx context.Context, customerID uuid.UUID) (*repository.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (s *memStore) RecordSyncSuccess(ctx context.Context, customerID uuid.UUID, rowCount int, checksum string, weeklyActual, monthlyActual int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successCalls++
	s.states[customerID] = &repository.SyncState{
		CustomerID:    customerID,
		LastSyncAt:    &at,
		LastSuccessAt: &at,
		RowCount:      rowCount,
		LastChecksum:  checksum,
	}
	return nil
}

func (s *memStore) RecordSyncFailure(ctx context.Context, customerID uuid.UUID, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCalls++
	state, ok := s.states[customerID]
	if !ok {
		state = &repository.SyncState{CustomerID: customerID}
		s.states[customerID] = state
	}
	state.LastSyncAt = &at
	state.LastError = &message
	return nil
}

func (s *memStore) ReconcileLeads(ctx context.Context, customerID uuid.UUID, fresh []repository.LeadRecord, checksum string, weeklyActual, monthlyActual int, at time.Time) (*repository.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileCalls++

	existing := s.records[customerID]
	if existing == nil {
		existing = make(map[string]repository.LeadRecord)
	}

	result := &repository.ReconcileResult{}
	next := make(map[string]repository.LeadRecord, len(fresh))
	for _, rec := range fresh {
		if _, ok := existing[rec.ID]; ok {
			result.Updated++
		} else {
			result.Created++
		}
		next[rec.ID] = rec
	}
	for id := range existing {
		if _, ok := next[id]; !ok {
			result.Deleted++
		}
	}
	s.records[customerID] = next

	s.states[customerID] = &repository.SyncState{
		CustomerID:    customerID,
		LastSyncAt:    &at,
		LastSuccessAt: &at,
		RowCount:      len(fresh),
		LastChecksum:  checksum,
	}
	return result, nil
}

type stubFetcher struct {
	text string
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, customerID, sheetURL string) (*source.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &source.Result{Text: f.text, VariantUsed: source.DefaultVariant}, nil
}

type panicFetcher struct{}

func (panicFetcher) Fetch(ctx context.Context, customerID, sheetURL string) (*source.Result, error) {
	panic("scanner blew up")
}

func newTestOrchestrator(t *testing.T, store Store, fetcher SheetFetcher) *Orchestrator {
	t.Helper()
	rules := normalize.DefaultRules()
	aggregator, err := aggregate.New(rules)
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}
	log := logger.New("development")
	return NewOrchestrator(store, fetcher, nil, normalize.New(rules), identity.New(rules), aggregator, events.NewInMemoryBus(log), log)
}

func testCustomer(name string) repository.Customer {
	return repository.Customer{
		ID:       uuid.New(),
		Name:     name,
		SheetURL: "https://docs.google.com/spreadsheets/d/test/edit",
	}
}

const sheetThreeLeads = "Name,Email,Date\n" +
	"Ann,ann@example.com,01.02.24\n" +
	"Bob,bob@example.com,02.02.24\n" +
	"Cat,cat@example.com,03.02.24\n"

func TestSyncCustomerFirstRunReconciles(t *testing.T) {
	store := newMemStore()
	orch := newTestOrchestrator(t, store, &stubFetcher{text: sheetThreeLeads})
	customer := testCustomer("Acme")

	outcome, err := orch.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("SyncCustomer returned error: %v", err)
	}
	if outcome.FastPath {
		t.Error("first run must not take the fast path")
	}
	if outcome.Created != 3 || outcome.Updated != 0 || outcome.Deleted != 0 {
		t.Errorf("unexpected counts: %+v", outcome)
	}
	if len(store.records[customer.ID]) != 3 {
		t.Errorf("expected 3 stored records, got %d", len(store.records[customer.ID]))
	}
	state := store.states[customer.ID]
	if state == nil || state.LastChecksum != outcome.Checksum || state.RowCount != 3 {
		t.Errorf("sync state not recorded: %+v", state)
	}
}

func TestSyncCustomerUnchangedDatasetTakesFastPath(t *testing.T) {
	store := newMemStore()
	orch := newTestOrchestrator(t, store, &stubFetcher{text: sheetThreeLeads})
	customer := testCustomer("Acme")

	if _, err := orch.SyncCustomer(context.Background(), customer); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	outcome, err := orch.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if !outcome.FastPath {
		t.Error("unchanged dataset must take the fast path")
	}
	if store.reconcileCalls != 1 {
		t.Errorf("expected 1 reconcile call, got %d", store.reconcileCalls)
	}
	if store.successCalls != 1 {
		t.Errorf("expected 1 fast-path success call, got %d", store.successCalls)
	}
}

func TestSyncCustomerReconcilesDiff(t *testing.T) {
	store := newMemStore()
	fetcher := &stubFetcher{text: sheetThreeLeads}
	orch := newTestOrchestrator(t, store, fetcher)
	customer := testCustomer("Acme")

	if _, err := orch.SyncCustomer(context.Background(), customer); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Ann disappears, Dan arrives, Bob and Cat survive unchanged.
	fetcher.text = "Name,Email,Date\n" +
		"Bob,bob@example.com,02.02.24\n" +
		"Cat,cat@example.com,03.02.24\n" +
		"Dan,dan@example.com,04.02.24\n"

	outcome, err := orch.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if outcome.FastPath {
		t.Fatal("changed dataset must not take the fast path")
	}
	if outcome.Created != 1 || outcome.Updated != 2 || outcome.Deleted != 1 {
		t.Errorf("diff counts = created %d updated %d deleted %d", outcome.Created, outcome.Updated, outcome.Deleted)
	}
	if len(store.records[customer.ID]) != 3 {
		t.Errorf("expected 3 records after diff, got %d", len(store.records[customer.ID]))
	}
}

func TestSyncCustomerIdempotentIdentity(t *testing.T) {
	storeA := newMemStore()
	storeB := newMemStore()
	customer := testCustomer("Acme")

	orchA := newTestOrchestrator(t, storeA, &stubFetcher{text: sheetThreeLeads})
	orchB := newTestOrchestrator(t, storeB, &stubFetcher{text: sheetThreeLeads})

	outA, err := orchA.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("sync A: %v", err)
	}
	outB, err := orchB.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("sync B: %v", err)
	}

	if outA.Checksum != outB.Checksum {
		t.Error("identical datasets must fingerprint identically")
	}
	for id := range storeA.records[customer.ID] {
		if _, ok := storeB.records[customer.ID][id]; !ok {
			t.Errorf("lead id %s not reproduced on the second engine", id)
		}
	}
}

func TestSyncCustomerFetchFailureRecordsError(t *testing.T) {
	store := newMemStore()
	fetchErr := apperr.SourceForbidden("sheet is not publicly accessible")
	orch := newTestOrchestrator(t, store, &stubFetcher{err: fetchErr})
	customer := testCustomer("Acme")

	_, err := orch.SyncCustomer(context.Background(), customer)
	if apperr.GetKind(err) != apperr.KindSourceForbidden {
		t.Fatalf("expected KindSourceForbidden, got %v", apperr.GetKind(err))
	}
	if store.failureCalls != 1 {
		t.Errorf("expected 1 failure record, got %d", store.failureCalls)
	}
	state := store.states[customer.ID]
	if state == nil || state.LastError == nil {
		t.Fatal("failure must be stamped on sync state")
	}
	if state.LastSuccessAt != nil {
		t.Error("failure must not touch last success")
	}
	if len(store.records[customer.ID]) != 0 {
		t.Error("failure must not touch stored records")
	}
}

func TestSyncCustomerFailureKeepsPreviousRecords(t *testing.T) {
	store := newMemStore()
	fetcher := &stubFetcher{text: sheetThreeLeads}
	orch := newTestOrchestrator(t, store, fetcher)
	customer := testCustomer("Acme")

	if _, err := orch.SyncCustomer(context.Background(), customer); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	fetcher.text = ""
	fetcher.err = apperr.SourceUnreachable("status 502")
	if _, err := orch.SyncCustomer(context.Background(), customer); err == nil {
		t.Fatal("expected fetch failure")
	}

	if len(store.records[customer.ID]) != 3 {
		t.Errorf("previous records must survive a failed cycle, got %d", len(store.records[customer.ID]))
	}
}

func TestSyncCustomerTooFewRowsFails(t *testing.T) {
	store := newMemStore()
	orch := newTestOrchestrator(t, store, &stubFetcher{text: "Name,Email,Date\nAnn,ann@example.com,01.02.24\n"})
	customer := testCustomer("Acme")

	_, err := orch.SyncCustomer(context.Background(), customer)
	if apperr.GetKind(err) != apperr.KindInsufficientData {
		t.Fatalf("expected KindInsufficientData, got %v", apperr.GetKind(err))
	}
}

func TestSyncCustomerEndToEnd(t *testing.T) {
	csv := "Name,Company,Date\nJane Doe,Acme,01.02.24\n,,\n"
	store := newMemStore()
	orch := newTestOrchestrator(t, store, &stubFetcher{text: csv})
	customer := testCustomer("Acme Ltd")

	outcome, err := orch.SyncCustomer(context.Background(), customer)
	if err != nil {
		t.Fatalf("SyncCustomer returned error: %v", err)
	}
	if outcome.RowCount != 1 {
		t.Fatalf("expected exactly one lead, got %d", outcome.RowCount)
	}

	var rec repository.LeadRecord
	for _, r := range store.records[customer.ID] {
		rec = r
	}
	if rec.Data["Date"] != "2024-02-01" {
		t.Errorf("Date = %q, want 2024-02-01", rec.Data["Date"])
	}
	if rec.AccountName != "Acme Ltd" {
		t.Errorf("AccountName = %q, want Acme Ltd", rec.AccountName)
	}
	if rec.Data["Name"] != "Jane Doe" || rec.Data["Company"] != "Acme" {
		t.Errorf("unexpected data: %+v", rec.Data)
	}
}

// listerStore adds customer listing on top of memStore for batch tests.
type listerStore struct {
	*memStore
	customers []repository.Customer
}

func (s *listerStore) ListCustomersWithSourceURL(ctx context.Context) ([]repository.Customer, error) {
	return s.customers, nil
}

// routingFetcher serves a different outcome per customer.
type routingFetcher struct {
	byCustomer map[string]SheetFetcher
}

func (f *routingFetcher) Fetch(ctx context.Context, customerID, sheetURL string) (*source.Result, error) {
	inner, ok := f.byCustomer[customerID]
	if !ok {
		return nil, fmt.Errorf("no fixture for customer %s", customerID)
	}
	return inner.Fetch(ctx, customerID, sheetURL)
}

func TestBatchRunIsolatesFailures(t *testing.T) {
	good := testCustomer("Good")
	bad := testCustomer("Bad")
	store := &listerStore{memStore: newMemStore(), customers: []repository.Customer{good, bad}}

	fetcher := &routingFetcher{byCustomer: map[string]SheetFetcher{
		good.ID.String(): &stubFetcher{text: sheetThreeLeads},
		bad.ID.String():  &stubFetcher{err: apperr.SourceNotFound("sheet or variant not found")},
	}}

	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	orch := newTestOrchestrator(t, store, fetcher)
	report, err := NewBatchRunner(store, orch, bus, log).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Customers != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(store.records[good.ID]) != 3 {
		t.Errorf("healthy customer must still sync, got %d records", len(store.records[good.ID]))
	}
}

func TestBatchRunSurvivesPanic(t *testing.T) {
	first := testCustomer("Panics")
	second := testCustomer("Fine")
	store := &listerStore{memStore: newMemStore(), customers: []repository.Customer{first, second}}

	fetcher := &routingFetcher{byCustomer: map[string]SheetFetcher{
		first.ID.String():  panicFetcher{},
		second.ID.String(): &stubFetcher{text: sheetThreeLeads},
	}}

	log := logger.New("development")
	orch := newTestOrchestrator(t, store, fetcher)
	report, err := NewBatchRunner(store, orch, events.NewInMemoryBus(log), log).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Failed != 1 || report.Succeeded != 1 {
		t.Errorf("panic must count as a failure: %+v", report)
	}
	if len(store.records[second.ID]) != 3 {
		t.Error("customer after the panicking one must still sync")
	}
}
