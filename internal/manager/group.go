package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelgate/pkg/types"
)

// Group is the set of runtimes served by one process, addressed by name.
type Group struct {
	log      zerolog.Logger
	mu       sync.RWMutex
	order    []string
	runtimes map[string]*Manager
	closers  []func() error
	draining bool
}

func NewGroup(log zerolog.Logger) *Group {
	return &Group{log: log, runtimes: map[string]*Manager{}}
}

// Add registers m under its name.
func (g *Group) Add(m *Manager) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.runtimes[m.Name()]; dup {
		return fmt.Errorf("duplicate runtime name %q", m.Name())
	}
	g.runtimes[m.Name()] = m
	g.order = append(g.order, m.Name())
	return nil
}

// AtFinalize registers a cleanup run after every runtime is finalized, in
// reverse registration order.
func (g *Group) AtFinalize(fn func() error) {
	g.mu.Lock()
	g.closers = append(g.closers, fn)
	g.mu.Unlock()
}

// Get returns the runtime named name.
func (g *Group) Get(name string) (*Manager, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.runtimes[name]
	if !ok {
		return nil, ErrModelNotFound(name)
	}
	return m, nil
}

// Names returns runtime names in registration order.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

func (g *Group) all() []*Manager {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Manager, 0, len(g.order))
	for _, n := range g.order {
		out = append(out, g.runtimes[n])
	}
	return out
}

// LoadAll loads every runtime in order. On the first failure the runtimes
// loaded so far are finalized and the error is returned.
func (g *Group) LoadAll(ctx context.Context) error {
	var loaded []*Manager
	for _, m := range g.all() {
		if err := m.Load(ctx); err != nil {
			for _, l := range loaded {
				_ = l.Finalize(ctx)
			}
			return err
		}
		loaded = append(loaded, m)
	}
	return nil
}

// Predict runs a single-shot call on the named runtime.
func (g *Group) Predict(ctx context.Context, model string, payload []byte) (string, error) {
	m, err := g.Get(model)
	if err != nil {
		return "", err
	}
	return m.Predict(ctx, payload)
}

// PredictStream runs a streaming call on the named runtime.
func (g *Group) PredictStream(ctx context.Context, model string, payload []byte, emit func(string) error) error {
	m, err := g.Get(model)
	if err != nil {
		return err
	}
	return m.PredictStream(ctx, payload, emit)
}

// Ready reports whether the group serves at least one runtime and all of
// them are ready.
func (g *Group) Ready() bool {
	ms := g.all()
	if len(ms) == 0 {
		return false
	}
	for _, m := range ms {
		if !m.Ready() {
			return false
		}
	}
	return true
}

// StartDrain drains every runtime. The returned channel closes once the
// longest grace window has elapsed.
func (g *Group) StartDrain() <-chan struct{} {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
	ms := g.all()
	chans := make([]<-chan struct{}, 0, len(ms))
	for _, m := range ms {
		chans = append(chans, m.StartDrain())
	}
	done := make(chan struct{})
	go func() {
		for _, c := range chans {
			<-c
		}
		close(done)
	}()
	return done
}

// Finalize finalizes every runtime, then runs the AtFinalize hooks.
func (g *Group) Finalize(ctx context.Context) error {
	for _, m := range g.all() {
		_ = m.Finalize(ctx)
	}
	g.mu.Lock()
	closers := g.closers
	g.closers = nil
	g.mu.Unlock()
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		g.log.Warn().Err(err).Msg("finalize hooks failed")
		return err
	}
	return nil
}

// Status builds the /status response.
func (g *Group) Status() types.StatusResponse {
	g.mu.RLock()
	draining := g.draining
	g.mu.RUnlock()
	resp := types.StatusResponse{Draining: draining, ServerTimeUnix: time.Now().Unix()}
	for _, m := range g.all() {
		resp.Runtimes = append(resp.Runtimes, m.Status())
	}
	return resp
}

// Models lists the runtimes for /models.
func (g *Group) Models() []types.Model {
	ms := g.all()
	out := make([]types.Model, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Model())
	}
	return out
}
