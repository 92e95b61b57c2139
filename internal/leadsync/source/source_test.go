package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"leadsync_backend/platform/apperr"
	"leadsync_backend/platform/logger"
)

func testLogger() *logger.Logger {
	return logger.New("development")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// redirectTo rewrites every request to the test server's host so export
// URLs built for the real sheet host land on the local handler.
func redirectTo(srv *httptest.Server) *http.Client {
	client := srv.Client()
	transport := client.Transport
	target, _ := url.Parse(srv.URL)
	client.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		r.URL.Scheme = target.Scheme
		r.URL.Host = target.Host
		return transport.RoundTrip(r)
	})
	return client
}

func TestResolveCandidatesExplicitVariant(t *testing.T) {
	candidates, err := ResolveCandidates("https://docs.google.com/spreadsheets/d/abc123_DEF/edit#gid=42")
	if err != nil {
		t.Fatalf("ResolveCandidates returned error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Variant != "42" {
		t.Errorf("expected extracted variant first, got %q", candidates[0].Variant)
	}
	if candidates[1].Variant != DefaultVariant {
		t.Errorf("expected default variant fallback, got %q", candidates[1].Variant)
	}
	want := "https://docs.google.com/spreadsheets/d/abc123_DEF/export?format=csv&gid=42"
	if candidates[0].URL != want {
		t.Errorf("candidate URL = %q, want %q", candidates[0].URL, want)
	}
}

func TestResolveCandidatesNoVariant(t *testing.T) {
	candidates, err := ResolveCandidates("https://docs.google.com/spreadsheets/d/abc/edit")
	if err != nil {
		t.Fatalf("ResolveCandidates returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Variant != DefaultVariant {
		t.Fatalf("expected single default-variant candidate, got %+v", candidates)
	}
}

func TestResolveCandidatesDefaultVariantNotDuplicated(t *testing.T) {
	candidates, err := ResolveCandidates("https://docs.google.com/spreadsheets/d/abc/edit#gid=0")
	if err != nil {
		t.Fatalf("ResolveCandidates returned error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("gid=0 should collapse to one candidate, got %d", len(candidates))
	}
}

func TestResolveCandidatesPlainURL(t *testing.T) {
	candidates, err := ResolveCandidates("https://example.com/export.csv")
	if err != nil {
		t.Fatalf("ResolveCandidates returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].URL != "https://example.com/export.csv" {
		t.Fatalf("non-sheet URL should be fetched as-is, got %+v", candidates)
	}
}

func TestResolveCandidatesEmptyURL(t *testing.T) {
	if _, err := ResolveCandidates("   "); err == nil {
		t.Fatal("expected error for blank URL")
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Name,Email\nJane,jane@example.com\n"))
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client(), testLogger())
	result, err := f.Fetch(context.Background(), "cust-1", srv.URL+"/export.csv")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !strings.HasPrefix(result.Text, "Name,Email") {
		t.Errorf("unexpected payload: %q", result.Text)
	}
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].Status != http.StatusOK {
		t.Errorf("unexpected diagnostics: %+v", result.Diagnostics)
	}
}

func TestFetchForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client(), testLogger())
	_, err := f.Fetch(context.Background(), "cust-1", srv.URL+"/export.csv")
	if apperr.GetKind(err) != apperr.KindSourceForbidden {
		t.Fatalf("expected KindSourceForbidden, got %v (err=%v)", apperr.GetKind(err), err)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client(), testLogger())
	_, err := f.Fetch(context.Background(), "cust-1", srv.URL+"/export.csv")
	if apperr.GetKind(err) != apperr.KindSourceNotFound {
		t.Fatalf("expected KindSourceNotFound, got %v", apperr.GetKind(err))
	}
}

func TestFetchHTMLPayloadIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<!DOCTYPE html><html><body>Sign in</body></html>"))
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client(), testLogger())
	_, err := f.Fetch(context.Background(), "cust-1", srv.URL+"/export.csv")
	if apperr.GetKind(err) != apperr.KindSourceMalformed {
		t.Fatalf("expected KindSourceMalformed for HTML body, got %v", apperr.GetKind(err))
	}
}

func TestFetchServerErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewWithClient(srv.Client(), testLogger())
	_, err := f.Fetch(context.Background(), "cust-1", srv.URL+"/export.csv")
	if apperr.GetKind(err) != apperr.KindSourceUnreachable {
		t.Fatalf("expected KindSourceUnreachable, got %v", apperr.GetKind(err))
	}
}

func TestFetchVariantFallback(t *testing.T) {
	// The first variant serves an HTML interstitial, the default variant
	// serves CSV. Fetch must fall through and use the second candidate.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("gid") == "7" {
			w.Write([]byte("<html>not this tab</html>"))
			return
		}
		w.Write([]byte("Name,Email\nJane,jane@example.com\n"))
	}))
	defer srv.Close()

	f := NewWithClient(redirectTo(srv), testLogger())
	result, err := f.Fetch(context.Background(), "cust-1", "https://docs.google.com/spreadsheets/d/abc/edit#gid=7")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if result.VariantUsed != DefaultVariant {
		t.Errorf("expected fallback to variant %q, got %q", DefaultVariant, result.VariantUsed)
	}
	if len(result.Diagnostics) != 2 {
		t.Errorf("expected 2 attempt diagnostics, got %d", len(result.Diagnostics))
	}
	if result.Diagnostics[0].Error == "" {
		t.Error("first attempt diagnostic should record the failure")
	}
}

func TestFetchAggregatedErrorCarriesDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewWithClient(redirectTo(srv), testLogger())
	_, err := f.Fetch(context.Background(), "cust-1", "https://docs.google.com/spreadsheets/d/abc/edit#gid=3")

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	diags, ok := appErr.Details.([]CandidateDiagnostic)
	if !ok {
		t.Fatalf("expected diagnostics in error details, got %T", appErr.Details)
	}
	if len(diags) != 2 {
		t.Errorf("expected both attempts recorded, got %d", len(diags))
	}
}
