package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SaveObserver receives the outcome of every save attempt.
type SaveObserver interface {
	ObserveSave(err error, elapsed time.Duration)
}

// SaverConfig groups optional saver settings.
type SaverConfig struct {
	// Debounce coalesces saves scheduled within the window.
	Debounce time.Duration
	// RetryAfter reschedules a failed save; zero waits for the next mutation.
	RetryAfter time.Duration
	Logger     *slog.Logger
	Observer   SaveObserver
}

// Saver persists the store after mutations. Saves run one at a time and always
// write the store's current state, so a later state is never overwritten by an
// earlier one.
type Saver struct {
	store *Store
	gw    *Gateway
	cfg   SaverConfig
	kick  chan struct{}

	mu    sync.Mutex
	saved uint64
}

// NewSaver builds a Saver for store.
func NewSaver(store *Store, gw *Gateway, cfg SaverConfig) *Saver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Saver{store: store, gw: gw, cfg: cfg, kick: make(chan struct{}, 1)}
}

// Attach subscribes the saver to store events and returns the unsubscribe func.
// Loads mark their version as already persisted; mutations schedule a save.
func (s *Saver) Attach() func() {
	return s.store.Subscribe(func(evt Event) {
		if !evt.Mutation() {
			s.markSaved(evt.Version)
			return
		}
		s.Schedule()
	})
}

func (s *Saver) markSaved(version uint64) {
	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()
}

// SavedVersion is the store version last written successfully.
func (s *Saver) SavedVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Schedule requests a save without blocking.
func (s *Saver) Schedule() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run performs scheduled saves until ctx is done.
func (s *Saver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.kick:
		}
		if s.cfg.Debounce > 0 {
			timer := time.NewTimer(s.cfg.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		select {
		case <-s.kick:
		default:
		}
		if err := s.Flush(ctx); err != nil && s.cfg.RetryAfter > 0 && !errors.Is(err, context.Canceled) {
			time.AfterFunc(s.cfg.RetryAfter, s.Schedule)
		}
	}
}

// Flush writes the current state now if it is newer than the last save.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.store.Snapshot()
	if state.Version <= s.saved {
		return nil
	}
	start := time.Now()
	err := s.gw.Save(ctx, state)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveSave(err, time.Since(start))
	}
	if err != nil {
		s.cfg.Logger.Warn("save records",
			slog.Uint64("version", state.Version),
			slog.Uint64("saved_version", s.saved),
			slog.Any("error", err))
		return err
	}
	s.saved = state.Version
	s.cfg.Logger.Debug("records saved",
		slog.Uint64("version", state.Version),
		slog.Int("appointments", len(state.Appointments)),
		slog.Int("products", len(state.Products)))
	return nil
}
