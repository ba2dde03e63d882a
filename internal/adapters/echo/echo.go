// Package echo is a deterministic engine for smoke tests and local
// development. It needs no model artifact beyond an optional local file that
// must exist.
package echo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modelgate/internal/adapters"
	"modelgate/internal/common/fsutil"
	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

// Name is the registry key.
const Name = "echo"

// Options are read from adapter_options.
type Options struct {
	Prefix     string        `yaml:"prefix"`
	TokenDelay time.Duration `yaml:"token_delay"`
}

type backend struct {
	uri string
}

type Adapter struct {
	*engine.Dispatch
	opts    Options
	set     registry.Settings
	backend engine.Handle[backend]
}

// New is the registry factory.
func New(s registry.Settings) (engine.Adapter, error) {
	opts := Options{Prefix: "echo: "}
	if err := s.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	if opts.TokenDelay < 0 {
		return nil, fmt.Errorf("token_delay must not be negative")
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), opts: opts, set: s}
	a.Handle(engine.ModeChat, a.chat, a.streamChat)
	a.Handle(engine.ModeQuery, a.query, a.streamQuery)
	return a, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	b, err := open(a.set.ResolvedURI)
	if err != nil {
		return err
	}
	a.backend.Swap(b)
	a.set.Logger.Debug().Str("uri", b.uri).Msg("echo loaded")
	return nil
}

func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	b, err := open(uri)
	if err != nil {
		return err
	}
	a.backend.Swap(b)
	return nil
}

func (a *Adapter) Close() error { return nil }

func open(uri string) (*backend, error) {
	if fsutil.IsLocalURI(uri) {
		p, err := fsutil.LocalPath(uri)
		if err != nil {
			return nil, engine.NewLoadError(uri, err)
		}
		if !fsutil.PathExists(p) {
			return nil, engine.NewLoadError(uri, fmt.Errorf("model file %s does not exist", p))
		}
	}
	return &backend{uri: uri}, nil
}

func (a *Adapter) conversation(b *backend) adapters.Conversation {
	return adapters.Conversation{Store: a.set.Memory, Version: b.uri, Log: a.set.Logger}
}

func (a *Adapter) query(ctx context.Context, c engine.Call) (string, error) {
	return a.opts.Prefix + c.Text, nil
}

func (a *Adapter) chat(ctx context.Context, c engine.Call) (string, error) {
	b := a.backend.Get()
	conv := a.conversation(b)
	prior := len(conv.History(ctx, c.SessionID)) / 2
	out := fmt.Sprintf("[%d] %s%s", prior, a.opts.Prefix, c.Text)
	conv.Record(ctx, c.SessionID, c.Text, out)
	return out, nil
}

func (a *Adapter) streamQuery(ctx context.Context, c engine.Call) (engine.Stream, error) {
	out, _ := a.query(ctx, c)
	return a.words(ctx, out), nil
}

func (a *Adapter) streamChat(ctx context.Context, c engine.Call) (engine.Stream, error) {
	out, err := a.chat(ctx, c)
	if err != nil {
		return nil, err
	}
	return a.words(ctx, out), nil
}

// words streams out word by word, keeping the separating spaces so the
// concatenated tokens equal out.
func (a *Adapter) words(ctx context.Context, out string) engine.Stream {
	toks := strings.SplitAfter(out, " ")
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		for i, tok := range toks {
			if tok == "" {
				continue
			}
			if i > 0 && a.opts.TokenDelay > 0 {
				t := time.NewTimer(a.opts.TokenDelay)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
			}
			if err := emit(tok); err != nil {
				return err
			}
		}
		return nil
	})
}
