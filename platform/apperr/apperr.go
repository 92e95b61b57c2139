// Package apperr provides standardized domain error types for the application.
// The sync engine returns these typed errors so the orchestrator and the
// status API can map them to sync-state records and HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindSourceUnreachable indicates the spreadsheet endpoint could not be reached.
	KindSourceUnreachable
	// KindSourceForbidden indicates the spreadsheet is not publicly accessible (403).
	KindSourceForbidden
	// KindSourceNotFound indicates the spreadsheet or variant does not exist (404).
	KindSourceNotFound
	// KindSourceMalformed indicates the endpoint returned markup or unparseable CSV.
	KindSourceMalformed
	// KindInsufficientData indicates fewer than 2 usable rows after the header.
	KindInsufficientData
	// KindPersistence indicates a transaction or store error.
	KindPersistence
	// KindNotFound indicates a resource was not found (status API).
	KindNotFound
	// KindValidation indicates invalid input data (status API).
	KindValidation
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for diagnostics (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindSourceForbidden:
		return http.StatusBadGateway
	case KindSourceNotFound, KindSourceUnreachable, KindSourceMalformed:
		return http.StatusBadGateway
	case KindInsufficientData:
		return http.StatusUnprocessableEntity
	case KindPersistence, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// SourceUnreachable creates an unreachable-source error.
func SourceUnreachable(message string) *Error {
	return New(KindSourceUnreachable, message)
}

// SourceForbidden creates a forbidden-source error.
func SourceForbidden(message string) *Error {
	return New(KindSourceForbidden, message)
}

// SourceNotFound creates a missing-source error.
func SourceNotFound(message string) *Error {
	return New(KindSourceNotFound, message)
}

// SourceMalformed creates a malformed-source error.
func SourceMalformed(message string) *Error {
	return New(KindSourceMalformed, message)
}

// InsufficientData creates an insufficient-data error.
func InsufficientData(message string) *Error {
	return New(KindInsufficientData, message)
}

// Persistence creates a store/transaction error.
func Persistence(message string, err error) *Error {
	return Wrap(KindPersistence, message, err)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is present.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
