package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"modelgate/internal/engine"
)

// boundAdapter lets the active adapter live behind an atomic pointer.
type boundAdapter struct{ engine.Adapter }

// Manager is one unified runtime: a model reference served by one adapter.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	mode   engine.Mode
	format string

	mu             sync.RWMutex
	state          State
	err            string
	uri            string
	gate           *Gate
	loadedAt       time.Time
	reloads        int
	reloadFailures int
	lastReloadErr  string

	active atomic.Pointer[boundAdapter]
	// calls counts adapter calls of every kind in progress, streams and
	// single-shot alike. It only grows while state admits work.
	calls atomic.Int64

	reloadMu     sync.Mutex
	watchCancel  context.CancelFunc
	watchDone    chan struct{}
	finalizeOnce sync.Once
}

// New constructs an uninitialized runtime. Call Load before serving.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("model", cfg.Name).Logger(),
		state: StateUninitialized,
	}
}

// Name returns the configured runtime name.
func (m *Manager) Name() string { return m.cfg.Name }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Ready reports whether the runtime accepts new work.
func (m *Manager) Ready() bool { return m.State() == StateReady }

// ResolvedURI returns the URI of the currently active model.
func (m *Manager) ResolvedURI() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uri
}

// Gate returns the admission gate, or nil before Load.
func (m *Manager) Gate() *Gate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gate
}

// current captures the active adapter for one call and counts the call as
// in flight. done must be called once the adapter is no longer in use.
func (m *Manager) current() (a engine.Adapter, g *Gate, done func(), err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.state
	if st != StateReady && st != StateDraining {
		return nil, nil, nil, notReadyError{name: m.cfg.Name, state: st}
	}
	b := m.active.Load()
	if b == nil {
		return nil, nil, nil, notReadyError{name: m.cfg.Name, state: st}
	}
	// incremented under the read lock so Finalize, which flips the state
	// under the write lock, sees every call admitted before it
	m.calls.Add(1)
	var once sync.Once
	return b.Adapter, m.gate, func() { once.Do(func() { m.calls.Add(-1) }) }, nil
}

// InFlightCalls returns the number of adapter calls in progress, including
// single-shot calls that hold no gate slot.
func (m *Manager) InFlightCalls() int { return int(m.calls.Load()) }

// waitCalls polls until no adapter call is in progress or ctx is done.
func (m *Manager) waitCalls(ctx context.Context) error {
	for m.calls.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

func (m *Manager) publish(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.cfg.Publisher.Publish(Event{Name: name, Model: m.cfg.Name, Fields: fields})
}
