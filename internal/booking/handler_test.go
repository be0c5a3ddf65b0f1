package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/belezaflow/belezaflow/internal/platform/kv"
)

type stubQueue struct {
	dates []string
	err   error
}

func (q *stubQueue) EnqueueDailyClose(ctx context.Context, date string) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.dates = append(q.dates, date)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default"}, nil
}

type testAPI struct {
	router  chi.Router
	store   *Store
	gateway *Gateway
	handler *Handler
	redis   *miniredis.Miniredis
}

func newTestAPI(t *testing.T, queue DailyCloseQueue) *testAPI {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, _ := newTestStore(t)
	gw := NewGateway(kv.NewRedis(client), "bf:")
	h := NewHandler(quietLogger(), store, gw, queue)
	return &testAPI{store: store, gateway: gw, handler: h, redis: mr}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	if a.router == nil {
		a.router = chi.NewRouter()
		a.handler.MountRoutes(a.router)
	}
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHandlerAppointmentLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	rr := api.do(t, http.MethodPost, "/appointments", `{"name":"Ana","service":"Corte","value":50,"date":"2024-05-01","time":"10:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[map[string]any](t, rr)
	require.Equal(t, "Ana", created["name"])
	require.Equal(t, "50", created["value"])
	require.Equal(t, "pending", created["status"])
	id := created["id"].(string)

	rr = api.do(t, http.MethodPost, "/appointments/quick", `{"serviceType":"escova","name":"Bia","value":"40","date":"2024-05-01","time":"11:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodPost, "/appointments/"+id+"/done", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "done", decodeBody[map[string]any](t, rr)["status"])

	rr = api.do(t, http.MethodGet, "/appointments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	part := decodeBody[Partition](t, rr)
	require.Len(t, part.Pending, 1)
	require.Len(t, part.Done, 1)
	require.Equal(t, "Escova", part.Pending[0].Service)

	rr = api.do(t, http.MethodGet, "/appointments?service=CORTE", "")
	part = decodeBody[Partition](t, rr)
	require.Empty(t, part.Pending)
	require.Len(t, part.Done, 1)

	rr = api.do(t, http.MethodDelete, "/appointments/"+id, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, api.store.Appointments(), 1)
}

func TestHandlerValidationProblem(t *testing.T) {
	api := newTestAPI(t, nil)

	rr := api.do(t, http.MethodPost, "/appointments", `{"name":"","service":"Corte","value":"50","date":"2024-05-01","time":"10:00"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	problem := decodeBody[map[string]any](t, rr)
	require.Equal(t, float64(http.StatusBadRequest), problem["status"])
	require.Contains(t, problem["errors"], "name")

	rr = api.do(t, http.MethodPost, "/appointments", `{"name":"Ana","service":"Corte","value":{"x":1},"date":"2024-05-01","time":"10:00"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPost, "/products", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPost, "/appointments", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, api.store.Appointments())
}

func TestHandlerNotFound(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/appointments/missing/done"},
		{http.MethodDelete, "/appointments/missing"},
		{http.MethodPost, "/products/missing/increment"},
		{http.MethodPost, "/products/missing/decrement"},
		{http.MethodDelete, "/products/missing"},
	} {
		rr := api.do(t, tc.method, tc.path, "")
		require.Equal(t, http.StatusNotFound, rr.Code, tc.path)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestHandlerProductFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	rr := api.do(t, http.MethodPost, "/products", `{"name":"Shampoo","unitValue":"30,00","category":"Cabelo"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	p := decodeBody[Product](t, rr)
	require.Equal(t, 1, p.Quantity)
	require.Equal(t, "2024-05-01", p.PurchaseDate)

	rr = api.do(t, http.MethodPost, "/products/"+p.ID+"/decrement", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, decodeBody[Product](t, rr).Quantity)

	rr = api.do(t, http.MethodPost, "/products/"+p.ID+"/increment", "")
	require.Equal(t, 2, decodeBody[Product](t, rr).Quantity)

	rr = api.do(t, http.MethodPut, "/products/"+p.ID, `{"name":"Shampoo X","unitValue":32,"category":"Cabelo","purchaseDate":"2024-04-30"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	edited := decodeBody[Product](t, rr)
	require.Equal(t, "Shampoo X", edited.Name)
	require.Len(t, edited.ChangeLog, 1)
	require.Equal(t, "Shampoo", edited.ChangeLog[0].Previous.Name)

	rr = api.do(t, http.MethodPut, "/products/"+p.ID+"/thresholds", `{"capacity":10,"minThreshold":12}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = api.do(t, http.MethodPut, "/products/"+p.ID+"/thresholds", `{"capacity":10,"minThreshold":1}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodGet, "/products?q=shampoo", "")
	require.Len(t, decodeBody[[]Product](t, rr), 1)
	rr = api.do(t, http.MethodGet, "/products?q=tinta", "")
	require.Empty(t, decodeBody[[]Product](t, rr))

	rr = api.do(t, http.MethodDelete, "/products/"+p.ID, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, api.store.Products())
}

func TestHandlerReports(t *testing.T) {
	api := newTestAPI(t, nil)
	a := mustCreateAppointment(t, api.store, "Ana", "Corte", "70", "2024-05-01", "10:00")
	_, err := api.store.MarkDone(a.ID)
	require.NoError(t, err)
	mustCreateProduct(t, api.store, "Shampoo", "30", "Cabelo")

	rr := api.do(t, http.MethodGet, "/reports/revenue?days=7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rev := decodeBody[revenueReport](t, rr)
	require.Equal(t, 7, rev.Days)
	require.Len(t, rev.Series, 7)
	requireDecimal(t, "70", rev.Total)
	requireDecimal(t, "10", rev.Average)

	rr = api.do(t, http.MethodGet, "/reports/revenue", "")
	require.Len(t, decodeBody[revenueReport](t, rr).Series, defaultRevenueDays)

	rr = api.do(t, http.MethodGet, "/reports/revenue?days=abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = api.do(t, http.MethodGet, "/reports/revenue?days=-1", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/reports/services", "")
	require.Equal(t, []ServiceCount{{Service: "Corte", Count: 1}}, decodeBody[[]ServiceCount](t, rr))

	rr = api.do(t, http.MethodGet, "/reports/inventory?days=30", "")
	inv := decodeBody[inventoryReport](t, rr)
	requireDecimal(t, "30", inv.TotalValue)
	requireDecimal(t, "30", inv.Spend)
	require.Len(t, inv.LowStock, 1)

	rr = api.do(t, http.MethodGet, "/reports/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decodeBody[Summary](t, rr)
	requireDecimal(t, "70", sum.TodayRevenue)
	require.Equal(t, 1, sum.DoneCount)

	rr = api.do(t, http.MethodGet, "/services/quick", "")
	require.Len(t, decodeBody[[]QuickService](t, rr), 4)
}

func TestHandlerDailyCloseInProcess(t *testing.T) {
	api := newTestAPI(t, nil)
	a := mustCreateAppointment(t, api.store, "Ana", "Corte", "60", "2024-05-01", "10:00")
	_, err := api.store.MarkDone(a.ID)
	require.NoError(t, err)

	rr := api.do(t, http.MethodPost, "/reports/daily/close", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	closing := decodeBody[DailyClose](t, rr)
	require.Equal(t, "2024-05-01", closing.Date)
	requireDecimal(t, "60", closing.Revenue)
	require.True(t, api.redis.Exists("bf:reports:daily:2024-05-01"))

	rr = api.do(t, http.MethodGet, "/reports/daily/2024-05-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, decodeBody[DailyClose](t, rr).DoneCount)

	rr = api.do(t, http.MethodGet, "/reports/daily/2024-04-01", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(t, http.MethodGet, "/reports/daily/01-05-2024", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = api.do(t, http.MethodPost, "/reports/daily/close", `{"date":"ontem"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerDailyCloseEnqueues(t *testing.T) {
	queue := &stubQueue{}
	api := newTestAPI(t, queue)

	rr := api.do(t, http.MethodPost, "/reports/daily/close", `{"date":"2024-04-30"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	accepted := decodeBody[closeAccepted](t, rr)
	require.Equal(t, "task-1", accepted.TaskID)
	require.Equal(t, "2024-04-30", accepted.Date)
	require.Equal(t, []string{"2024-04-30"}, queue.dates)
	require.False(t, api.redis.Exists("bf:reports:daily:2024-04-30"))

	queue.err = errors.New("redis down")
	rr = api.do(t, http.MethodPost, "/reports/daily/close", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlerMutationRateLimit(t *testing.T) {
	api := newTestAPI(t, nil)
	api.handler.SetMutationLimit(2)

	body := `{"name":"Ana","service":"Corte","value":"50","date":"2024-05-01","time":"10:00"}`
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/appointments", body).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/appointments", body).Code)
	require.Equal(t, http.StatusTooManyRequests, api.do(t, http.MethodPost, "/appointments", body).Code)

	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/appointments", "").Code)
	require.Len(t, api.store.Appointments(), 2)
}

func TestHandlerMutationsReachRedis(t *testing.T) {
	api := newTestAPI(t, nil)
	saver := NewSaver(api.store, api.gateway, SaverConfig{Logger: quietLogger()})
	defer saver.Attach()()

	rr := api.do(t, http.MethodPost, "/appointments", `{"name":"Ana","service":"Corte","value":"50","date":"2024-05-01","time":"10:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, saver.Flush(context.Background()))

	raw, err := api.redis.Get("bf:appointments")
	require.NoError(t, err)
	require.Contains(t, raw, `"name":"Ana"`)
	products, err := api.redis.Get("bf:products")
	require.NoError(t, err)
	require.Equal(t, "[]", products)
}
