package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/progress/sinks"
)

type fakeStatus struct {
	rows    []sinks.JournalStatus
	running bool
}

func (f fakeStatus) Snapshot() ([]sinks.JournalStatus, bool) { return f.rows, f.running }

func (f fakeStatus) Journal(name string) (sinks.JournalStatus, bool) {
	for _, row := range f.rows {
		if row.Journal == name {
			return row, true
		}
	}
	return sinks.JournalStatus{}, false
}

func newTestServer(opts Options) http.Handler {
	if opts.Status == nil {
		opts.Status = fakeStatus{
			running: true,
			rows: []sinks.JournalStatus{
				{Journal: "Journal A", State: sinks.StateDone, Authors: 2, UpdatedAt: time.Unix(10, 0).UTC()},
				{Journal: "Journal B", State: sinks.StateRunning},
			},
		}
	}
	return NewServer(opts).Handler()
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestHealthz verifies the liveness probe and request id header.
func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

// TestReadyz verifies the readiness hook drives the status code.
func TestReadyz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	failing := newTestServer(Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rec = serve(t, failing, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

// TestListJournals verifies the status table is served as JSON.
func TestListJournals(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), httptest.NewRequest(http.MethodGet, "/v1/journals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body journalList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Running)
	require.Len(t, body.Journals, 2)
	assert.Equal(t, "Journal A", body.Journals[0].Journal)
	assert.Equal(t, int64(2), body.Journals[0].Authors)
}

// TestGetJournal verifies lookup by escaped name and the not-found path.
func TestGetJournal(t *testing.T) {
	t.Parallel()

	h := newTestServer(Options{})
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/v1/journals/"+url.PathEscape("Journal B"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"running"`)

	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/v1/journals/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestAPIKey verifies /v1 routes require the key when configured.
func TestAPIKey(t *testing.T) {
	t.Parallel()

	h := newTestServer(Options{APIKey: "secret"})

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/v1/journals", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/journals", nil)
	req.Header.Set("X-API-Key", "secret")
	require.Equal(t, http.StatusOK, serve(t, h, req).Code)

	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/v1/journals?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code, "probes stay open")
}

// TestMetricsEndpoint verifies the Prometheus handler is mounted.
func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

// TestRecoverPanics verifies a panicking handler yields a 500.
func TestRecoverPanics(t *testing.T) {
	t.Parallel()

	s := NewServer(Options{})
	h := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

// TestListenAndServeStopsOnCancel verifies graceful shutdown.
func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(Options{}).ListenAndServe(ctx, 0) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
