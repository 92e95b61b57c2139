package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("record not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Customer is a synced account with its spreadsheet source and the
// manually confirmed actuals entered by operations.
type Customer struct {
	ID            uuid.UUID
	Name          string
	SheetURL      string
	WeeklyActual  int
	MonthlyActual int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LeadRecord is one normalized lead row keyed by its stable identity.
type LeadRecord struct {
	ID           string
	CustomerID   uuid.UUID
	AccountName  string
	Data         map[string]string
	SourceURL    string
	SheetVariant string
	UpdatedAt    time.Time
}

// SyncState is the per-customer cursor: when the last attempt ran, when it
// last succeeded, and the checksum and row count of the last good dataset.
type SyncState struct {
	CustomerID    uuid.UUID
	LastSyncAt    *time.Time
	LastSuccessAt *time.Time
	RowCount      int
	LastChecksum  string
	LastError     *string
	UpdatedAt     time.Time
}

// ReconcileResult reports what a full reconciliation changed.
type ReconcileResult struct {
	Created int
	Updated int
	Deleted int
}

// ListCustomersWithSourceURL returns customers that have a spreadsheet
// configured, in stable name order.
func (r *Repository) ListCustomersWithSourceURL(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, sheet_url, weekly_actual, monthly_actual, created_at, updated_at
		FROM customers
		WHERE sheet_url IS NOT NULL AND sheet_url <> ''
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]Customer, 0)
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.SheetURL, &c.WeeklyActual, &c.MonthlyActual, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// GetCustomer returns one customer by ID.
func (r *Repository) GetCustomer(ctx context.Context, customerID uuid.UUID) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, sheet_url, weekly_actual, monthly_actual, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, customerID).Scan(&c.ID, &c.Name, &c.SheetURL, &c.WeeklyActual, &c.MonthlyActual, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetSyncState returns the sync cursor for a customer, or ErrNotFound when
// the customer has never been synced.
func (r *Repository) GetSyncState(ctx context.Context, customerID uuid.UUID) (*SyncState, error) {
	var s SyncState
	err := r.pool.QueryRow(ctx, `
		SELECT customer_id, last_sync_at, last_success_at, row_count, last_checksum, last_error, updated_at
		FROM sync_states
		WHERE customer_id = $1
	`, customerID).Scan(&s.CustomerID, &s.LastSyncAt, &s.LastSuccessAt, &s.RowCount, &s.LastChecksum, &s.LastError, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SyncStateInfo is a sync cursor joined with its customer's name for the
// status API.
type SyncStateInfo struct {
	SyncState
	CustomerName string
}

// ListSyncStates returns every customer's sync cursor for the status API,
// joined with the customer name, ordered by name.
func (r *Repository) ListSyncStates(ctx context.Context) ([]SyncStateInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.customer_id, c.name, s.last_sync_at, s.last_success_at, s.row_count, s.last_checksum, s.last_error, s.updated_at
		FROM sync_states s
		JOIN customers c ON c.id = s.customer_id
		ORDER BY c.name ASC, s.customer_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make([]SyncStateInfo, 0)
	for rows.Next() {
		var s SyncStateInfo
		if err := rows.Scan(&s.CustomerID, &s.CustomerName, &s.LastSyncAt, &s.LastSuccessAt, &s.RowCount, &s.LastChecksum, &s.LastError, &s.UpdatedAt); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// ListLeadRecords returns all stored leads for a customer.
func (r *Repository) ListLeadRecords(ctx context.Context, customerID uuid.UUID) ([]LeadRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, account_name, data, source_url, sheet_variant, updated_at
		FROM lead_records
		WHERE customer_id = $1
		ORDER BY id ASC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]LeadRecord, 0)
	for rows.Next() {
		var rec LeadRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &rec.AccountName, &data, &rec.SourceURL, &rec.SheetVariant, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode lead data for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountLeadRecords returns how many leads are stored for a customer.
func (r *Repository) CountLeadRecords(ctx context.Context, customerID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM lead_records WHERE customer_id = $1
	`, customerID).Scan(&count)
	return count, err
}

// RecordSyncSuccess updates the cursor and actuals without touching lead
// records. Used on the fast path when the dataset is unchanged.
func (r *Repository) RecordSyncSuccess(ctx context.Context, customerID uuid.UUID, rowCount int, checksum string, weeklyActual, monthlyActual int, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateActuals(ctx, tx, customerID, weeklyActual, monthlyActual, at); err != nil {
		return err
	}
	if err := upsertSyncState(ctx, tx, customerID, rowCount, checksum, at); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordSyncFailure stamps the attempt time and error message, leaving the
// last-success fields and lead records intact.
func (r *Repository) RecordSyncFailure(ctx context.Context, customerID uuid.UUID, message string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_states (customer_id, last_sync_at, last_error, updated_at)
		VALUES ($1, $2, $3, $2)
		ON CONFLICT (customer_id) DO UPDATE SET
			last_sync_at = EXCLUDED.last_sync_at,
			last_error   = EXCLUDED.last_error,
			updated_at   = EXCLUDED.updated_at
	`, customerID, at, message)
	return err
}

// ReconcileLeads replaces a customer's stored leads with the fresh dataset
// in one transaction: upsert every fresh record, delete records no longer
// present, then update the actuals and the sync cursor. Either everything
// lands or nothing does.
func (r *Repository) ReconcileLeads(ctx context.Context, customerID uuid.UUID, fresh []LeadRecord, checksum string, weeklyActual, monthlyActual int, at time.Time) (*ReconcileResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing := make(map[string]struct{})
	rows, err := tx.Query(ctx, `SELECT id FROM lead_records WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		existing[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	freshIDs := make(map[string]struct{}, len(fresh))
	for _, rec := range fresh {
		freshIDs[rec.ID] = struct{}{}

		data, err := json.Marshal(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("encode lead data for %s: %w", rec.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO lead_records (id, customer_id, account_name, data, source_url, sheet_variant, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				account_name  = EXCLUDED.account_name,
				data          = EXCLUDED.data,
				source_url    = EXCLUDED.source_url,
				sheet_variant = EXCLUDED.sheet_variant,
				updated_at    = EXCLUDED.updated_at
		`, rec.ID, customerID, rec.AccountName, data, rec.SourceURL, rec.SheetVariant, at); err != nil {
			return nil, fmt.Errorf("failed to upsert lead %s: %w", rec.ID, err)
		}

		if _, ok := existing[rec.ID]; ok {
			result.Updated++
		} else {
			result.Created++
		}
	}

	for id := range existing {
		if _, ok := freshIDs[id]; ok {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lead_records WHERE id = $1 AND customer_id = $2`, id, customerID); err != nil {
			return nil, fmt.Errorf("failed to delete lead %s: %w", id, err)
		}
		result.Deleted++
	}

	if err := updateActuals(ctx, tx, customerID, weeklyActual, monthlyActual, at); err != nil {
		return nil, err
	}
	if err := upsertSyncState(ctx, tx, customerID, len(fresh), checksum, at); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func updateActuals(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, weeklyActual, monthlyActual int, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE customers SET weekly_actual = $2, monthly_actual = $3, updated_at = $4
		WHERE id = $1
	`, customerID, weeklyActual, monthlyActual, at)
	if err != nil {
		return fmt.Errorf("failed to update actuals: %w", err)
	}
	return nil
}

func upsertSyncState(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, rowCount int, checksum string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO sync_states (customer_id, last_sync_at, last_success_at, row_count, last_checksum, last_error, updated_at)
		VALUES ($1, $2, $2, $3, $4, NULL, $2)
		ON CONFLICT (customer_id) DO UPDATE SET
			last_sync_at    = EXCLUDED.last_sync_at,
			last_success_at = EXCLUDED.last_success_at,
			row_count       = EXCLUDED.row_count,
			last_checksum   = EXCLUDED.last_checksum,
			last_error      = NULL,
			updated_at      = EXCLUDED.updated_at
	`, customerID, at, rowCount, checksum)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}
	return nil
}
