// Package source fetches raw CSV text from customer spreadsheet export
// endpoints, trying sheet-variant candidates in order until one yields
// genuine CSV.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadsync_backend/platform/apperr"
	"leadsync_backend/platform/logger"

	"golang.org/x/time/rate"
)

const acceptHeader = "text/csv, text/plain, */*"

// maxBodyBytes bounds how much of a response is read; customer sheets are
// far below this.
const maxBodyBytes = 16 << 20

// CandidateDiagnostic records one fetch attempt for the aggregated error
// and the sync-state diagnostics.
type CandidateDiagnostic struct {
	Variant  string        `json:"variant"`
	URL      string        `json:"url"`
	Status   int           `json:"status,omitempty"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is a successful fetch.
type Result struct {
	Text        string
	VariantUsed string
	Diagnostics []CandidateDiagnostic
}

// Fetcher resolves spreadsheet URLs and downloads CSV exports. The rate
// limiter is shared across all candidates and customers of a batch to stay
// polite toward the sheet provider.
type Fetcher struct {
	httpc   *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// New creates a Fetcher with an explicit request timeout and request pacing.
func New(timeout time.Duration, rps float64, log *logger.Logger) *Fetcher {
	if rps <= 0 {
		rps = 2
	}
	return &Fetcher{
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

// NewWithClient creates a Fetcher over an existing HTTP client. Used by tests.
func NewWithClient(httpc *http.Client, log *logger.Logger) *Fetcher {
	return &Fetcher{httpc: httpc, limiter: rate.NewLimiter(rate.Inf, 1), log: log}
}

// Fetch downloads the first candidate that yields genuine CSV text.
//
// Per-candidate failures (403, 404, other non-2xx, HTML payloads) advance
// to the next variant. When every candidate fails, the returned error
// carries the last failure's kind plus all per-candidate diagnostics.
func (f *Fetcher) Fetch(ctx context.Context, customerID, sheetURL string) (*Result, error) {
	candidates, err := ResolveCandidates(sheetURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceMalformed, "unusable sheet url", err).WithOp("source.Fetch")
	}

	diagnostics := make([]CandidateDiagnostic, 0, len(candidates))
	var lastErr *apperr.Error

	for _, candidate := range candidates {
		diag, text, attemptErr := f.attempt(ctx, customerID, candidate)
		diagnostics = append(diagnostics, diag)

		if attemptErr == nil {
			return &Result{
				Text:        text,
				VariantUsed: candidate.Variant,
				Diagnostics: diagnostics,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindSourceUnreachable, "fetch cancelled", ctx.Err()).WithOp("source.Fetch")
		}
		lastErr = attemptErr
	}

	aggregated := apperr.Wrap(lastErr.Kind, fmt.Sprintf("all %d sheet variants failed: %s", len(candidates), lastErr.Message), lastErr)
	return nil, aggregated.WithOp("source.Fetch").WithDetails(diagnostics)
}

func (f *Fetcher) attempt(ctx context.Context, customerID string, candidate Candidate) (CandidateDiagnostic, string, *apperr.Error) {
	diag := CandidateDiagnostic{Variant: candidate.Variant, URL: candidate.URL}

	if err := f.limiter.Wait(ctx); err != nil {
		diag.Error = err.Error()
		return diag, "", apperr.Wrap(apperr.KindSourceUnreachable, "fetch cancelled", err)
	}

	start := time.Now()
	fail := func(appErr *apperr.Error) (CandidateDiagnostic, string, *apperr.Error) {
		diag.Duration = time.Since(start)
		diag.Error = appErr.Message
		f.log.FetchAttempt(customerID, candidate.Variant, diag.Status, diag.Bytes, float64(diag.Duration.Milliseconds()), appErr)
		return diag, "", appErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return fail(apperr.Wrap(apperr.KindSourceUnreachable, "build request", err))
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.httpc.Do(req)
	if err != nil {
		return fail(apperr.Wrap(apperr.KindSourceUnreachable, "request failed", err))
	}
	defer resp.Body.Close()

	diag.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(apperr.Wrap(apperr.KindSourceUnreachable, "read body", err))
	}
	diag.Bytes = len(body)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fail(apperr.SourceForbidden("sheet is not publicly accessible"))
	case resp.StatusCode == http.StatusNotFound:
		return fail(apperr.SourceNotFound("sheet or variant not found"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fail(apperr.SourceUnreachable(fmt.Sprintf("unexpected status %d", resp.StatusCode)))
	}

	text := string(body)
	if looksLikeMarkup(text) {
		return fail(apperr.SourceMalformed("endpoint returned HTML instead of CSV"))
	}

	diag.Duration = time.Since(start)
	f.log.FetchAttempt(customerID, candidate.Variant, diag.Status, diag.Bytes, float64(diag.Duration.Milliseconds()), nil)
	return diag, text, nil
}

// looksLikeMarkup detects HTML payloads served with a 2xx status, which is
// how hosted spreadsheets report sign-in walls and deleted documents.
func looksLikeMarkup(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}
