package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/metrics"
	"github.com/sawpanic/horizon/internal/perf"
)

type stubEngine struct{ positions []domain.Position }

func (s *stubEngine) Positions() []domain.Position { return s.positions }

func newTestServer(t *testing.T, positions []domain.Position) *Server {
	t.Helper()
	allocator, err := alloc.New(alloc.DefaultConfig(), perf.NewTracker(), 100000)
	require.NoError(t, err)
	return NewServer(":0", &stubEngine{positions: positions}, allocator, metrics.NewRegistry())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpointReportsBooksAndPositions(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	sig := domain.NewSignal("RELIANCE", domain.Swing, domain.Long, 100, 98, 104, "test", now)
	sig.Quantity = 50
	pos := domain.OpenPosition(sig, 5000, now)

	srv := newTestServer(t, []domain.Position{*pos})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 100000, body.Allocation.TotalCapital, 1e-9)
	require.Len(t, body.Allocation.Books, 4)
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "RELIANCE", body.Positions[0].Symbol)
}

func TestStatusEndpointEmptyBook(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"positions":[]`, "an empty book serializes as an empty list")
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.CyclesTotal.Inc()
	allocator, err := alloc.New(alloc.DefaultConfig(), perf.NewTracker(), 100000)
	require.NoError(t, err)
	srv := NewServer(":0", &stubEngine{}, allocator, reg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "horizon_cycles_total 1")
}
