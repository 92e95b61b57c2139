// Package handler exposes the sync status API over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadsync_backend/internal/leadsync/service"
	"leadsync_backend/platform/httpkit"
	"leadsync_backend/platform/validator"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidCustomerID = "invalid customer id"
)

// Handler handles HTTP requests for sync status and aggregates.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new sync status handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListSyncStates returns customer sync cursors, optionally only the
// failing ones.
// GET /api/v1/sync/states
func (h *Handler) ListSyncStates(c *gin.Context) {
	var filter service.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(filter); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	states, err := h.svc.ListSyncStates(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, states)
}

// GetSyncState returns one customer's sync cursor.
// GET /api/v1/sync/states/:customerId
func (h *Handler) GetSyncState(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customerId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCustomerID, nil)
		return
	}

	state, err := h.svc.GetSyncState(c.Request.Context(), customerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, state)
}

// GetCustomerAggregates returns weekly and monthly totals computed from a
// customer's stored leads.
// GET /api/v1/sync/customers/:customerId/aggregates
func (h *Handler) GetCustomerAggregates(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("customerId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCustomerID, nil)
		return
	}

	aggregates, err := h.svc.GetCustomerAggregates(c.Request.Context(), customerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, aggregates)
}
