package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/belezaflow/belezaflow/internal/booking"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `belezaflow_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `belezaflow_http_request_duration_seconds_bucket{route="/test"`)
	require.Contains(t, body, "belezaflow_http_requests_in_flight 0")
}

type fixedSource booking.State

func (f fixedSource) Snapshot() booking.State { return booking.State(f) }

type savedAt uint64

func (v savedAt) SavedVersion() uint64 { return uint64(v) }

func TestWatchRecordsExportsCountsAndBacklog(t *testing.T) {
	metrics := NewMetrics()
	metrics.WatchRecords(fixedSource{
		Version: 7,
		Appointments: []booking.Appointment{
			{ID: "a1", Status: booking.StatusPending},
			{ID: "a2", Status: booking.StatusDone},
			{ID: "a3", Status: booking.StatusDone},
		},
		Products: []booking.Product{
			{ID: "p1", Quantity: 1, MinThreshold: 5, UnitValue: decimal.NewFromInt(10)},
			{ID: "p2", Quantity: 9, MinThreshold: 5, UnitValue: decimal.NewFromInt(10)},
		},
	}, savedAt(4))

	body := scrape(t, metrics)
	require.Contains(t, body, `belezaflow_records{kind="appointments_pending"} 1`)
	require.Contains(t, body, `belezaflow_records{kind="appointments_done"} 2`)
	require.Contains(t, body, `belezaflow_records{kind="products"} 2`)
	require.Contains(t, body, `belezaflow_records{kind="products_low_stock"} 1`)
	require.Contains(t, body, "belezaflow_unsaved_versions 3")
}

func TestWatchRecordsWithoutSaver(t *testing.T) {
	metrics := NewMetrics()
	metrics.WatchRecords(fixedSource{}, nil)

	body := scrape(t, metrics)
	require.Contains(t, body, `belezaflow_records{kind="products"} 0`)
	require.NotContains(t, body, "belezaflow_unsaved_versions")
}

func TestObserveSaveCountsOutcomes(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveSave(nil, 10*time.Millisecond)
	metrics.ObserveSave(nil, 5*time.Millisecond)
	metrics.ObserveSave(errors.New("redis down"), time.Millisecond)

	body := scrape(t, metrics)
	require.Contains(t, body, `belezaflow_saves_total{status="success"} 2`)
	require.Contains(t, body, `belezaflow_saves_total{status="failure"} 1`)
	require.Contains(t, body, "belezaflow_save_duration_seconds_count 3")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveSave(nil, time.Second)
	metrics.WatchRecords(fixedSource{}, nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
