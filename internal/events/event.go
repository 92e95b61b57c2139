// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadsync_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Sync Domain Events
// =============================================================================

// CustomerSynced is published after one customer's sync cycle succeeds.
type CustomerSynced struct {
	BaseEvent
	CustomerID uuid.UUID `json:"customerId"`
	RowCount   int       `json:"rowCount"`
	Checksum   string    `json:"checksum"`
	FastPath   bool      `json:"fastPath"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
}

func (e CustomerSynced) EventName() string { return "leadsync.customer.synced" }

// CustomerSyncFailed is published when one customer's sync cycle fails.
// The failure is already recorded in the customer's sync state; this event
// exists for observability subscribers.
type CustomerSyncFailed struct {
	BaseEvent
	CustomerID uuid.UUID `json:"customerId"`
	Reason     string    `json:"reason"`
}

func (e CustomerSyncFailed) EventName() string { return "leadsync.customer.failed" }

// SyncBatchCompleted is published at the end of every batch run.
type SyncBatchCompleted struct {
	BaseEvent
	Customers int           `json:"customers"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

func (e SyncBatchCompleted) EventName() string { return "leadsync.batch.completed" }
