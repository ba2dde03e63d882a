package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"modelgate/internal/engine"
)

type fakeAdapter struct{ s Settings }

func (f *fakeAdapter) Modes() []engine.Mode                                       { return []engine.Mode{engine.ModeQuery} }
func (f *fakeAdapter) Load(context.Context) error                                 { return nil }
func (f *fakeAdapter) ReloadFromURI(context.Context, string) error                { return nil }
func (f *fakeAdapter) Run(context.Context, engine.Call) (string, error)           { return f.s.ResolvedURI, nil }
func (f *fakeAdapter) Stream(context.Context, engine.Call) (engine.Stream, error) { return nil, nil }
func (f *fakeAdapter) Close() error                                               { return nil }

func fakeFactory(s Settings) (engine.Adapter, error) { return &fakeAdapter{s: s}, nil }

func TestRegisterCreate_CaseInsensitive(t *testing.T) {
	r := New()
	if err := r.Register("  Fake ", fakeFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.Has("FAKE") {
		t.Fatalf("Has should be case-insensitive")
	}
	a, err := r.Create("fake", Settings{ResolvedURI: "v1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out, _ := a.Run(context.Background(), engine.Call{}); out != "v1" {
		t.Fatalf("settings not passed to factory: %q", out)
	}
}

func TestRegister_Rejects(t *testing.T) {
	r := New()
	if err := r.Register("", fakeFactory); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := r.Register("x", nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
	_ = r.Register("x", fakeFactory)
	if err := r.Register("X", fakeFactory); err == nil {
		t.Fatalf("expected duplicate error")
	}
	r.Freeze()
	if err := r.Register("y", fakeFactory); !errors.Is(err, ErrFrozen) {
		t.Fatalf("want ErrFrozen, got %v", err)
	}
	// lookups still work after Freeze
	if _, err := r.Create("x", Settings{}); err != nil {
		t.Fatalf("create after freeze: %v", err)
	}
}

func TestCreate_UnknownListsKnownNames(t *testing.T) {
	r := New()
	_ = r.Register("beta", fakeFactory)
	_ = r.Register("alpha", fakeFactory)
	_, err := r.Create("gamma", Settings{})
	if !IsUnknownAdapter(err) {
		t.Fatalf("want UnknownAdapterError, got %v", err)
	}
	var ue *UnknownAdapterError
	errors.As(err, &ue)
	if strings.Join(ue.Known, ",") != "alpha,beta" {
		t.Fatalf("known=%v", ue.Known)
	}
}

func TestCreate_FactoryErrorIsWrapped(t *testing.T) {
	r := New()
	boom := errors.New("bad options")
	_ = r.Register("broken", func(Settings) (engine.Adapter, error) { return nil, boom })
	if _, err := r.Create("broken", Settings{}); !errors.Is(err, boom) {
		t.Fatalf("want wrapped factory error, got %v", err)
	}
}

func TestDecodeOptions_DropsUnknownKeys(t *testing.T) {
	var opts struct {
		Prefix string        `yaml:"prefix"`
		Delay  time.Duration `yaml:"delay"`
		Limit  int           `yaml:"limit"`
	}
	s := Settings{Options: map[string]any{"prefix": "> ", "delay": "250ms", "limit": 3, "unrelated": true}}
	if err := s.DecodeOptions(&opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if opts.Prefix != "> " || opts.Delay != 250*time.Millisecond || opts.Limit != 3 {
		t.Fatalf("opts=%+v", opts)
	}
	if err := (Settings{}).DecodeOptions(&opts); err != nil {
		t.Fatalf("empty options: %v", err)
	}
	bad := Settings{Options: map[string]any{"limit": "many"}}
	if err := bad.DecodeOptions(&opts); err == nil {
		t.Fatalf("expected type error")
	}
}
