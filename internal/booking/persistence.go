package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/belezaflow/belezaflow/internal/platform/kv"
	"github.com/belezaflow/belezaflow/internal/shared"
)

const (
	// AppointmentsKey stores the ordered appointment records.
	AppointmentsKey = "appointments"
	// ProductsKey stores the ordered product records.
	ProductsKey = "products"

	dailyClosePrefix = "reports:daily:"
	rejectedSuffix   = ":rejected"
)

// KVStore is the durable get/set-by-key store behind the Gateway.
type KVStore interface {
	// Get returns ok=false without error when key was never written.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put writes every entry; backends apply the batch atomically where they can.
	Put(ctx context.Context, entries ...kv.Entry) error
}

// Gateway serializes store collections to a KVStore.
type Gateway struct {
	kv     KVStore
	prefix string
}

// NewGateway wraps store; prefix is prepended to every key.
func NewGateway(store KVStore, prefix string) *Gateway {
	return &Gateway{kv: store, prefix: prefix}
}

func (g *Gateway) key(name string) string {
	return g.prefix + name
}

// Read fetches both collections; a missing key yields an empty collection.
// Records that fail to decode are left out.
func (g *Gateway) Read(ctx context.Context) (State, error) {
	recs, err := g.read(ctx)
	if err != nil {
		return State{}, err
	}
	return recs.state(DefaultCapacity, DefaultMinThreshold), nil
}

// storedAppointment also accepts feitoEm, the completion time written by the mobile app.
type storedAppointment struct {
	Appointment
	FeitoEm *time.Time `json:"feitoEm,omitempty"`
}

// storedProduct keeps an absent minThreshold apart from an explicit 0.
type storedProduct struct {
	Product
	MinThreshold *int `json:"minThreshold"`
}

type storedRecords struct {
	appointments []storedAppointment
	products     []storedProduct
	rejected     map[string][]json.RawMessage
}

func (r storedRecords) state(capacity, minimum int) State {
	out := State{
		Appointments: make([]Appointment, 0, len(r.appointments)),
		Products:     make([]Product, 0, len(r.products)),
	}
	for _, a := range r.appointments {
		appt := a.Appointment
		if appt.CompletedAt == nil && a.FeitoEm != nil {
			at := a.FeitoEm.UTC()
			appt.CompletedAt = &at
		}
		out.Appointments = append(out.Appointments, appt)
	}
	for _, p := range r.products {
		prod := p.Product
		if p.MinThreshold != nil {
			prod.MinThreshold = *p.MinThreshold
		} else {
			prod.MinThreshold = minimum
		}
		if prod.Capacity <= 0 {
			prod.Capacity = capacity
		}
		if prod.MinThreshold < 0 || prod.MinThreshold > prod.Capacity {
			prod.MinThreshold = min(minimum, prod.Capacity)
		}
		out.Products = append(out.Products, prod)
	}
	return out
}

func (g *Gateway) read(ctx context.Context) (storedRecords, error) {
	recs := storedRecords{rejected: make(map[string][]json.RawMessage)}
	var err error
	if recs.appointments, recs.rejected[AppointmentsKey], err = readRecords[storedAppointment](ctx, g, AppointmentsKey); err != nil {
		return storedRecords{}, err
	}
	if recs.products, recs.rejected[ProductsKey], err = readRecords[storedProduct](ctx, g, ProductsKey); err != nil {
		return storedRecords{}, err
	}
	return recs, nil
}

// readRecords decodes the array under name one element at a time and returns the
// elements it could not decode separately.
func readRecords[T any](ctx context.Context, g *Gateway, name string) ([]T, []json.RawMessage, error) {
	raw, ok, err := g.kv.Get(ctx, g.key(name))
	if err != nil {
		return nil, nil, fmt.Errorf("booking: load %s: %w: %w", name, shared.ErrPersistence, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("booking: decode %s: %w: %w", name, shared.ErrPersistence, err)
	}
	out := make([]T, 0, len(items))
	var rejected []json.RawMessage
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			rejected = append(rejected, item)
			continue
		}
		out = append(out, v)
	}
	return out, rejected, nil
}

// LoadReport counts the records a load set aside.
type LoadReport struct {
	RejectedAppointments int
	RejectedProducts     int
}

// Rejected is the total number of records set aside.
func (r LoadReport) Rejected() int {
	return r.RejectedAppointments + r.RejectedProducts
}

// Load replaces the store's records with what is persisted.
func (g *Gateway) Load(ctx context.Context, store *Store) error {
	_, err := g.LoadWithReport(ctx, store)
	return err
}

// LoadWithReport is Load that also reports records which could not be decoded.
// Those records are appended to "<collection>:rejected" before the store is
// replaced, so the next save cannot lose them.
func (g *Gateway) LoadWithReport(ctx context.Context, store *Store) (LoadReport, error) {
	recs, err := g.read(ctx)
	if err != nil {
		return LoadReport{}, err
	}
	for _, name := range []string{AppointmentsKey, ProductsKey} {
		if err := g.quarantine(ctx, name, recs.rejected[name]); err != nil {
			return LoadReport{}, err
		}
	}
	store.Replace(store.normalizeLoaded(recs.state(store.capacity, store.minimum)))
	return LoadReport{
		RejectedAppointments: len(recs.rejected[AppointmentsKey]),
		RejectedProducts:     len(recs.rejected[ProductsKey]),
	}, nil
}

func (g *Gateway) quarantine(ctx context.Context, name string, items []json.RawMessage) error {
	if len(items) == 0 {
		return nil
	}
	key := g.key(name + rejectedSuffix)
	var kept []json.RawMessage
	raw, ok, err := g.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("booking: load rejected %s: %w: %w", name, shared.ErrPersistence, err)
	}
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &kept); err != nil {
			return fmt.Errorf("booking: decode rejected %s: %w: %w", name, shared.ErrPersistence, err)
		}
	}
	out, err := json.Marshal(append(kept, items...))
	if err != nil {
		return fmt.Errorf("booking: encode rejected %s: %w: %w", name, shared.ErrPersistence, err)
	}
	if err := g.kv.Put(ctx, kv.Entry{Key: key, Value: out}); err != nil {
		return fmt.Errorf("booking: save rejected %s: %w: %w", name, shared.ErrPersistence, err)
	}
	return nil
}

// Save writes both collections in one batch.
func (g *Gateway) Save(ctx context.Context, state State) error {
	appts := state.Appointments
	if appts == nil {
		appts = []Appointment{}
	}
	prods := state.Products
	if prods == nil {
		prods = []Product{}
	}
	apptJSON, err := json.Marshal(appts)
	if err != nil {
		return fmt.Errorf("booking: encode appointments: %w: %w", shared.ErrPersistence, err)
	}
	prodJSON, err := json.Marshal(prods)
	if err != nil {
		return fmt.Errorf("booking: encode products: %w: %w", shared.ErrPersistence, err)
	}
	err = g.kv.Put(ctx,
		kv.Entry{Key: g.key(AppointmentsKey), Value: apptJSON},
		kv.Entry{Key: g.key(ProductsKey), Value: prodJSON},
	)
	if err != nil {
		return fmt.Errorf("booking: save: %w: %w", shared.ErrPersistence, err)
	}
	return nil
}

// SaveDailyClose stores a closing under reports:daily:<date>.
func (g *Gateway) SaveDailyClose(ctx context.Context, c DailyClose) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("booking: encode daily close: %w: %w", shared.ErrPersistence, err)
	}
	if err := g.kv.Put(ctx, kv.Entry{Key: g.key(dailyClosePrefix + c.Date), Value: raw}); err != nil {
		return fmt.Errorf("booking: save daily close: %w: %w", shared.ErrPersistence, err)
	}
	return nil
}

// DailyClose reads a stored closing; ok is false when the day was never closed.
func (g *Gateway) DailyClose(ctx context.Context, date string) (DailyClose, bool, error) {
	raw, ok, err := g.kv.Get(ctx, g.key(dailyClosePrefix+date))
	if err != nil {
		return DailyClose{}, false, fmt.Errorf("booking: load daily close: %w: %w", shared.ErrPersistence, err)
	}
	if !ok {
		return DailyClose{}, false, nil
	}
	var c DailyClose
	if err := json.Unmarshal(raw, &c); err != nil {
		return DailyClose{}, false, fmt.Errorf("booking: decode daily close: %w: %w", shared.ErrPersistence, err)
	}
	return c, true, nil
}

// normalizeLoaded repairs records written by older app versions: missing ids,
// day-first dates, and pending records still carrying completedAt.
// Stock thresholds are resolved by storedRecords.state.
func (s *Store) normalizeLoaded(state State) State {
	seen := make(map[string]bool)
	fresh := func(id string) string {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			id = s.newID()
		}
		seen[id] = true
		return id
	}
	out := State{
		Appointments: make([]Appointment, 0, len(state.Appointments)),
		Products:     make([]Product, 0, len(state.Products)),
	}
	for _, a := range state.Appointments {
		a = cloneAppointment(a)
		a.ID = fresh(a.ID)
		if a.Status == "" {
			a.Status = StatusPending
		}
		if a.Status == StatusPending {
			a.CompletedAt = nil
		}
		if d, err := normalizeDate(a.Date, s.loc); err == nil {
			a.Date = d
		}
		if t, err := normalizeTime(a.Time); err == nil {
			a.Time = t
		}
		out.Appointments = append(out.Appointments, a)
	}
	for _, p := range state.Products {
		p = cloneProduct(p)
		p.ID = fresh(p.ID)
		if d, err := normalizeDate(p.PurchaseDate, s.loc); err == nil {
			p.PurchaseDate = d
		}
		if p.ChangeLog == nil {
			p.ChangeLog = []ChangeLogEntry{}
		}
		out.Products = append(out.Products, p)
	}
	return out
}
