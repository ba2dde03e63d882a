//go:build !llama

package llamacpp

import (
	"context"

	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

// Built reports whether this binary links libllama.
const Built = false

// Adapter declares the same modes as the real one so configuration validates
// identically, but every load fails.
type Adapter struct {
	*engine.Dispatch
	set registry.Settings
}

func New(s registry.Settings) (engine.Adapter, error) {
	if _, err := decode(s); err != nil {
		return nil, err
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), set: s}
	a.Handle(engine.ModeChat, a.refuse, nil)
	a.Handle(engine.ModeQuery, a.refuse, nil)
	return a, nil
}

func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	return engine.NewLoadError(uri, ErrNotBuilt)
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) refuse(ctx context.Context, c engine.Call) (string, error) {
	return "", ErrNotBuilt
}
