// Package registry maps adapter names to factories. Registration happens at
// process start; Freeze then turns the registry read-only.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"modelgate/internal/engine"
	"modelgate/internal/memory"
)

// Settings is the validated configuration handed to a factory. Factories pick
// the fields they need and decode their own options type from Options.
type Settings struct {
	Name        string
	ModelRef    string
	ResolvedURI string
	EngineType  engine.Mode
	TopK        int
	Timeout     time.Duration
	Options     map[string]any
	Memory      memory.Store
	Logger      zerolog.Logger
}

// DecodeOptions converts the free-form options bag into out (a pointer to a
// struct with yaml tags). Keys the struct does not declare are dropped.
func (s Settings) DecodeOptions(out any) error {
	if len(s.Options) == 0 {
		return nil
	}
	b, err := yaml.Marshal(s.Options)
	if err != nil {
		return fmt.Errorf("adapter options: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("adapter options: %w", err)
	}
	return nil
}

// Factory builds an adapter. It must not contact the backend; that happens in
// Adapter.Load.
type Factory func(Settings) (engine.Adapter, error)

// UnknownAdapterError is returned by Create for unregistered names.
type UnknownAdapterError struct {
	Name  string
	Known []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// IsUnknownAdapter reports whether err is or wraps an *UnknownAdapterError.
func IsUnknownAdapter(err error) bool {
	var e *UnknownAdapterError
	return errors.As(err, &e)
}

// ErrFrozen is returned by Register after Freeze.
var ErrFrozen = errors.New("registry is frozen")

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	frozen    bool
}

func New() *Registry { return &Registry{factories: map[string]Factory{}} }

// Default is the process-wide registry used by the CLI.
var Default = New()

// Register adds f under the lowercased name. Names are append-only.
func (r *Registry) Register(name string, f Factory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || f == nil {
		return fmt.Errorf("register: empty name or nil factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %q: %w", name, ErrFrozen)
	}
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Create looks up name (case-insensitive) and runs its factory.
func (r *Registry) Create(name string, s Settings) (engine.Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Name: name, Known: r.Names()}
	}
	a, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("create adapter %q: %w", name, err)
	}
	return a, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
