package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/belezaflow/belezaflow/internal/booking"
	"github.com/belezaflow/belezaflow/internal/observability"
	"github.com/belezaflow/belezaflow/internal/platform/kv"
	"github.com/belezaflow/belezaflow/jobs"
)

func newTestRouter(t *testing.T) (http.Handler, *booking.Store) {
	t.Helper()
	cfg := &Config{AppEnv: "test"}
	store := booking.NewStore(booking.StoreConfig{})
	gw := booking.NewGateway(kv.NewMemory(), "")
	return NewRouter(RouterParams{
		Config:         cfg,
		BookingHandler: booking.NewHandler(nil, store, gw, nil),
		JobHandler:     jobs.NewHandler(nil, nil),
		Metrics:        observability.NewMetrics(),
	}), store
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterMountsBookingJobsAndMetrics(t *testing.T) {
	router, store := newTestRouter(t)

	body := `{"name":"Ana","service":"Corte","value":"50","date":"2024-05-01","time":"10:00"}`
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, store.Appointments(), 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `belezaflow_http_requests_total{code="201",route="/appointments"} 1`)
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()
	logger := NewLogger(&Config{})

	mem, release, err := OpenKV(ctx, &Config{KVBackend: BackendMemory}, logger)
	require.NoError(t, err)
	require.IsType(t, &kv.Memory{}, mem)
	release()

	mr := miniredis.RunT(t)
	redisKV, release, err := OpenKV(ctx, &Config{KVBackend: BackendRedis, RedisAddr: mr.Addr()}, logger)
	require.NoError(t, err)
	require.NoError(t, redisKV.Put(ctx, kv.Entry{Key: "appointments", Value: []byte("[]")}))
	require.True(t, mr.Exists("appointments"))
	release()

	_, _, err = OpenKV(ctx, &Config{KVBackend: "sqlite"}, logger)
	require.Error(t, err)
}
