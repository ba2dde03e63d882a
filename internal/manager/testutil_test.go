package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelgate/internal/engine"
	"modelgate/internal/registry"
	"modelgate/internal/resolver"
)

// testCtx returns a context that is cancelled when the test ends.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fakeBackend is the loaded state of fakeAdapter; its tag is echoed in output.
type fakeBackend struct{ tag string }

// fakeAdapter is a lightweight in-memory adapter used for tests. Streams
// emit tokens prefixed with the backend tag captured at call start.
type fakeAdapter struct {
	*engine.Dispatch
	backend engine.Handle[fakeBackend]
	uri     string

	loadErr   error
	reloadErr error
	tokens    []string
	// pause, when set, is received from before each token after the first.
	pause chan struct{}
	// hang makes Run and Stream block until ctx is done (or forever for Run
	// when ignoreCtx is set).
	hang      bool
	ignoreCtx bool

	closed  atomic.Bool
	mu      sync.Mutex
	reloads []string
}

func newFakeAdapter(modes ...engine.Mode) *fakeAdapter {
	f := &fakeAdapter{Dispatch: engine.NewDispatch(), tokens: []string{"A", "B", "C"}}
	if len(modes) == 0 {
		modes = []engine.Mode{engine.ModeChat}
	}
	for _, m := range modes {
		f.Dispatch.Handle(m, f.run, f.stream)
	}
	return f
}

func (f *fakeAdapter) Load(ctx context.Context) error {
	if f.loadErr != nil {
		return &engine.LoadError{URI: f.uri, Err: f.loadErr}
	}
	f.backend.Swap(&fakeBackend{tag: f.uri})
	return nil
}

func (f *fakeAdapter) ReloadFromURI(ctx context.Context, uri string) error {
	f.mu.Lock()
	f.reloads = append(f.reloads, uri)
	f.mu.Unlock()
	if f.reloadErr != nil {
		return &engine.LoadError{URI: uri, Err: f.reloadErr}
	}
	f.backend.Swap(&fakeBackend{tag: uri})
	return nil
}

func (f *fakeAdapter) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeAdapter) Reloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reloads...)
}

func (f *fakeAdapter) run(ctx context.Context, c engine.Call) (string, error) {
	b := f.backend.Get()
	if f.hang {
		if f.ignoreCtx {
			select {}
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return b.tag + ":" + c.Text, nil
}

func (f *fakeAdapter) stream(ctx context.Context, c engine.Call) (engine.Stream, error) {
	b := f.backend.Get()
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		if f.hang {
			<-ctx.Done()
			return ctx.Err()
		}
		for i, tok := range f.tokens {
			if i > 0 && f.pause != nil {
				select {
				case <-f.pause:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := emit(b.tag + ":" + tok); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// testRegistry returns a registry whose "fake" factory hands out a.
func testRegistry(a *fakeAdapter) *registry.Registry {
	r := registry.New()
	_ = r.Register("fake", func(s registry.Settings) (engine.Adapter, error) {
		a.uri = s.ResolvedURI
		return a, nil
	})
	r.Freeze()
	return r
}

func testConfig(a *fakeAdapter) Config {
	return Config{
		Name:          "bot",
		Adapter:       "fake",
		ModelRef:      "v1",
		EngineType:    "chat",
		Timeout:       2 * time.Second,
		MaxConcurrent: 2,
		DrainGrace:    50 * time.Millisecond,
		Registry:      testRegistry(a),
		Logger:        zerolog.Nop(),
	}
}

func loadedManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := New(cfg)
	if err := m.Load(testCtx(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = m.Finalize(context.Background()) })
	return m
}

// chunks collects emitted chunks.
type chunks struct {
	mu  sync.Mutex
	got []string
}

func (c *chunks) emit(s string) error {
	c.mu.Lock()
	c.got = append(c.got, s)
	c.mu.Unlock()
	return nil
}

func (c *chunks) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.got, ",")
}

// scriptedResolver resolves to initial and, on Watch, reports each URI in
// changes once, then waits for cancellation.
type scriptedResolver struct {
	initial   string
	initErr   error
	changes   []string
	watchErrs []error
}

func (r *scriptedResolver) ResolveInitial(ctx context.Context, ref string) (string, error) {
	if r.initErr != nil {
		return "", &resolver.ResolutionError{Ref: ref, Err: r.initErr}
	}
	return r.initial, nil
}

func (r *scriptedResolver) Watch(ctx context.Context, ref string, interval time.Duration, onChange resolver.OnChange) error {
	for _, uri := range r.changes {
		err := onChange(ctx, uri)
		r.watchErrs = append(r.watchErrs, err)
	}
	<-ctx.Done()
	return nil
}

var errBoom = errors.New("boom")
