// Package booking holds the salon's appointment and stock records together with
// the commands, filters and reports computed over them.
package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity is the stock capacity given to new products.
	DefaultCapacity = 20
	// DefaultMinThreshold is the low-stock threshold given to new products.
	DefaultMinThreshold = 5
)

// EventKind names the kind of change a store event reports.
type EventKind string

const (
	EventAppointmentCreated EventKind = "appointment.created"
	EventAppointmentDone    EventKind = "appointment.done"
	EventAppointmentRemoved EventKind = "appointment.removed"
	EventProductCreated     EventKind = "product.created"
	EventProductUpdated     EventKind = "product.updated"
	EventProductRemoved     EventKind = "product.removed"
	// EventLoaded is published after Replace; it does not represent a user mutation.
	EventLoaded EventKind = "store.loaded"
)

// Event describes one applied change.
type Event struct {
	Kind    EventKind
	ID      string
	Version uint64
}

// Mutation reports whether the event came from a command rather than a load.
func (e Event) Mutation() bool {
	return e.Kind != EventLoaded
}

// StoreConfig groups optional store settings.
type StoreConfig struct {
	// AutoRemoveAtZero makes DecrementQuantity remove a product whose quantity is 1.
	AutoRemoveAtZero bool
	// Zero values fall back to DefaultCapacity and DefaultMinThreshold.
	DefaultCapacity     int
	DefaultMinThreshold int
	// Location decides calendar dates; defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
}

// State is a detached copy of every record in the store.
type State struct {
	Version      uint64
	Appointments []Appointment
	Products     []Product
}

// Store is the single owner of appointments and products for a session.
// Every command applies under one lock, so readers never see a partial mutation.
type Store struct {
	mu           sync.RWMutex
	appointments []Appointment
	products     []Product
	version      uint64

	autoRemove bool
	capacity   int
	minimum    int
	loc        *time.Location
	now        func() time.Time
	newID      func() string

	subMu     sync.Mutex
	subs      map[int]func(Event)
	nextSubID int
}

// NewStore builds an empty Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		autoRemove: cfg.AutoRemoveAtZero,
		capacity:   cfg.DefaultCapacity,
		minimum:    cfg.DefaultMinThreshold,
		loc:        cfg.Location,
		now:        cfg.Now,
		newID:      cfg.NewID,
		subs:       make(map[int]func(Event)),
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.minimum <= 0 {
		s.minimum = DefaultMinThreshold
	}
	if s.minimum > s.capacity {
		s.minimum = s.capacity
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newTimeOrderedID
	}
	return s
}

func newTimeOrderedID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Location returns the zone used for calendar dates.
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// Today is the current calendar date in DateLayout.
func (s *Store) Today() string {
	return s.today().Format(DateLayout)
}

// Subscribe registers fn for every applied change and returns a cancel func.
// fn runs after the lock is released, on the goroutine that issued the command.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(evt Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// bump must be called with mu held for writing.
func (s *Store) bump(kind EventKind, id string) Event {
	s.version++
	return Event{Kind: kind, ID: id, Version: s.version}
}

// Version is incremented by every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a deep copy of the current records in display order.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Version:      s.version,
		Appointments: s.copyAppointments(),
		Products:     s.copyProducts(),
	}
}

// Replace discards the current records and installs state wholesale.
func (s *Store) Replace(state State) {
	appts := make([]Appointment, 0, len(state.Appointments))
	for _, a := range state.Appointments {
		appts = append(appts, cloneAppointment(a))
	}
	prods := make([]Product, 0, len(state.Products))
	for _, p := range state.Products {
		prods = append(prods, cloneProduct(p))
	}
	s.mu.Lock()
	s.appointments = appts
	s.products = prods
	evt := s.bump(EventLoaded, "")
	s.mu.Unlock()
	s.publish(evt)
}

// Appointments lists every appointment in insertion order.
func (s *Store) Appointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAppointments()
}

// Products lists every product in insertion order.
func (s *Store) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyProducts()
}

// Appointment looks a single appointment up by id.
func (s *Store) Appointment(id string) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.appointmentIndex(id); i >= 0 {
		return cloneAppointment(s.appointments[i]), true
	}
	return Appointment{}, false
}

// Product looks a single product up by id.
func (s *Store) Product(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.productIndex(id); i >= 0 {
		return cloneProduct(s.products[i]), true
	}
	return Product{}, false
}

func (s *Store) copyAppointments() []Appointment {
	out := make([]Appointment, len(s.appointments))
	for i, a := range s.appointments {
		out[i] = cloneAppointment(a)
	}
	return out
}

func (s *Store) copyProducts() []Product {
	out := make([]Product, len(s.products))
	for i, p := range s.products {
		out[i] = cloneProduct(p)
	}
	return out
}

func (s *Store) appointmentIndex(id string) int {
	for i := range s.appointments {
		if s.appointments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) productIndex(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}
