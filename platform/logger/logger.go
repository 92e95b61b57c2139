// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// CustomerIDKey is the context key for the customer being synced
	CustomerIDKey contextKey = "customer_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and customer_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("request_id", requestID)),
		}
	}

	if customerID, ok := ctx.Value(CustomerIDKey).(string); ok && customerID != "" {
		newLogger = newLogger.WithCustomerID(customerID)
	}

	return newLogger
}

// WithCustomerID returns a logger scoped to one customer's sync cycle.
func (l *Logger) WithCustomerID(customerID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("customer_id", customerID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// SyncCycle logs the outcome of one per-customer sync cycle.
func (l *Logger) SyncCycle(customerID, outcome string, rowCount int, durationMs float64) {
	l.Info("sync_cycle",
		slog.String("customer_id", customerID),
		slog.String("outcome", outcome),
		slog.Int("row_count", rowCount),
		slog.Float64("duration_ms", durationMs),
	)
}

// SyncBatch logs the outcome of a whole batch run.
func (l *Logger) SyncBatch(total, succeeded, failed int, durationMs float64) {
	l.Info("sync_batch",
		slog.Int("customers", total),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", durationMs),
	)
}

// FetchAttempt logs one sheet-variant fetch attempt.
func (l *Logger) FetchAttempt(customerID, variant string, status int, bytes int, durationMs float64, err error) {
	attrs := []any{
		slog.String("customer_id", customerID),
		slog.String("variant", variant),
		slog.Int("status", status),
		slog.Int("bytes", bytes),
		slog.Float64("duration_ms", durationMs),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Warn("fetch_attempt", attrs...)
		return
	}
	l.Debug("fetch_attempt", attrs...)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
