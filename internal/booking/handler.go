package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/belezaflow/belezaflow/internal/platform/httpx"
	"github.com/belezaflow/belezaflow/internal/shared"
)

const (
	// DefaultMutationLimit is the number of writes allowed per client IP per minute.
	DefaultMutationLimit = 60

	defaultRevenueDays   = 7
	defaultInventoryDays = 30
	maxWindowDays        = 366
)

// DailyCloseQueue schedules a background daily close.
type DailyCloseQueue interface {
	EnqueueDailyClose(ctx context.Context, date string) (*asynq.TaskInfo, error)
}

// Handler wires the JSON endpoints of the booking module.
type Handler struct {
	logger  *slog.Logger
	store   *Store
	gateway *Gateway
	queue   DailyCloseQueue
	limit   int
}

// NewHandler constructs the booking handler. gateway and queue may be nil; without a
// queue daily closes run in-process.
func NewHandler(logger *slog.Logger, store *Store, gateway *Gateway, queue DailyCloseQueue) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, gateway: gateway, queue: queue, limit: DefaultMutationLimit}
}

// SetMutationLimit overrides the per-IP write limit; n <= 0 disables it.
func (h *Handler) SetMutationLimit(n int) {
	h.limit = n
}

// MountRoutes registers booking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/services/quick", h.listQuickServices)
	r.Get("/appointments", h.listAppointments)
	r.Get("/products", h.listProducts)
	r.Get("/reports/summary", h.summary)
	r.Get("/reports/revenue", h.revenue)
	r.Get("/reports/services", h.services)
	r.Get("/reports/inventory", h.inventory)
	r.Get("/reports/daily/{date}", h.dailyClose)

	r.Group(func(r chi.Router) {
		if h.limit > 0 {
			r.Use(httprate.Limit(h.limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Post("/appointments", h.createAppointment)
		r.Post("/appointments/quick", h.createQuickAppointment)
		r.Post("/appointments/{id}/done", h.markDone)
		r.Delete("/appointments/{id}", h.removeAppointment)

		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.editProduct)
		r.Put("/products/{id}/thresholds", h.setThresholds)
		r.Post("/products/{id}/increment", h.incrementProduct)
		r.Post("/products/{id}/decrement", h.decrementProduct)
		r.Delete("/products/{id}", h.removeProduct)

		r.Post("/reports/daily/close", h.closeDay)
	})
}

func (h *Handler) listQuickServices(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, QuickServices())
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := h.store.FilterAppointments(q.Get("service"), q.Get("time"))
	httpx.JSON(w, http.StatusOK, PartitionByStatus(list))
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var in AppointmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	appt, err := h.store.CreateAppointment(in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, appt)
}

func (h *Handler) createQuickAppointment(w http.ResponseWriter, r *http.Request) {
	var in QuickAppointmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	appt, err := h.store.CreateQuickAppointment(in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, appt)
}

func (h *Handler) markDone(w http.ResponseWriter, r *http.Request) {
	appt, err := h.store.MarkDone(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, appt)
}

func (h *Handler) removeAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveAppointment(chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.SearchProducts(r.URL.Query().Get("q")))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.store.CreateProduct(in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) editProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductEdit
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.store.EditProduct(chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) setThresholds(w http.ResponseWriter, r *http.Request) {
	var in StockThresholds
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.store.SetStockThresholds(chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) incrementProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.IncrementQuantity(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) decrementProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.DecrementQuantity(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) removeProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveProduct(chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Summary())
}

type revenueReport struct {
	Days    int             `json:"days"`
	Series  []RevenuePoint  `json:"series"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), defaultRevenueDays)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	series := h.store.RevenueWindow(days)
	total := sumPoints(series)
	avg := decimal.Zero
	if days > 0 {
		avg = total.Div(decimal.NewFromInt(int64(days)))
	}
	httpx.JSON(w, http.StatusOK, revenueReport{Days: days, Series: series, Total: total, Average: avg})
}

func (h *Handler) services(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.ServiceDistribution())
}

type inventoryReport struct {
	Days       int             `json:"days"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Spend      decimal.Decimal `json:"spend"`
	LowStock   []Product       `json:"lowStock"`
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), defaultInventoryDays)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	low := h.store.LowStock()
	if low == nil {
		low = []Product{}
	}
	httpx.JSON(w, http.StatusOK, inventoryReport{
		Days:       days,
		TotalValue: h.store.TotalInventoryValue(),
		Spend:      h.store.SpendWithinDays(days),
		LowStock:   low,
	})
}

func (h *Handler) dailyClose(w http.ResponseWriter, r *http.Request) {
	date, err := parseISODate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.gateway == nil {
		httpx.RespondError(w, fmt.Errorf("booking: daily close %s: %w", date, shared.ErrNotFound))
		return
	}
	closing, ok, err := h.gateway.DailyClose(r.Context(), date)
	if err != nil {
		h.logger.Warn("load daily close", slog.String("date", date), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		httpx.RespondError(w, fmt.Errorf("booking: daily close %s: %w", date, shared.ErrNotFound))
		return
	}
	httpx.JSON(w, http.StatusOK, closing)
}

type closeRequest struct {
	Date string `json:"date"`
}

type closeAccepted struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
	Date   string `json:"date"`
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	var in closeRequest
	if err := httpx.DecodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, err)
		return
	}
	date := h.store.Today()
	if strings.TrimSpace(in.Date) != "" {
		d, err := parseISODate(in.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		date = d
	}

	if h.queue != nil {
		info, err := h.queue.EnqueueDailyClose(r.Context(), date)
		if err != nil {
			h.logger.Warn("enqueue daily close", slog.String("date", date), slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
			return
		}
		httpx.JSON(w, http.StatusAccepted, closeAccepted{TaskID: info.ID, Queue: info.Queue, Date: date})
		return
	}

	closing := h.store.CloseDay(date)
	if h.gateway != nil {
		if err := h.gateway.SaveDailyClose(r.Context(), closing); err != nil {
			h.logger.Warn("save daily close", slog.String("date", date), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusCreated, closing)
}

func parseDays(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxWindowDays {
		return 0, shared.NewValidationError("days", fmt.Sprintf("must be between 0 and %d", maxWindowDays))
	}
	return n, nil
}

func parseISODate(raw string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", shared.NewValidationError("date", "must be YYYY-MM-DD")
	}
	return t.Format(DateLayout), nil
}
