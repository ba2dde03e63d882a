//go:build llama

package llamacpp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelgate/internal/adapters"
	"modelgate/internal/common/fsutil"
	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

// Built reports whether this binary links libllama.
const Built = true

// model is one loaded GGUF. The callback-based API is not reentrant, so mu
// serializes predictions; the lease frees the weights once the model is
// swapped out and no call holds it.
type model struct {
	uri   string
	mu    sync.Mutex
	lease *lease
	ll    *llama.LLama
}

func newModel(uri string, ll *llama.LLama) *model {
	return &model{uri: uri, ll: ll, lease: newLease(ll.Free)}
}

type Adapter struct {
	*engine.Dispatch
	opts  Options
	set   registry.Settings
	model engine.Handle[model]
}

func New(s registry.Settings) (engine.Adapter, error) {
	opts, err := decode(s)
	if err != nil {
		return nil, err
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), opts: opts, set: s}
	a.Handle(engine.ModeChat, a.runChat, a.streamChat)
	a.Handle(engine.ModeQuery, a.runQuery, a.streamQuery)
	return a, nil
}

// ReloadFromURI loads the new weights first and only then swaps them in. The
// previous model is freed in the background once its in-flight calls drain.
func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	p, err := fsutil.LocalPath(uri)
	if err != nil {
		return engine.NewLoadError(uri, err)
	}
	if !fsutil.PathExists(p) {
		return engine.NewLoadError(uri, fmt.Errorf("model file %s does not exist", p))
	}
	ll, err := llama.New(p,
		llama.SetContext(a.opts.ContextSize),
		llama.SetGPULayers(a.opts.GPULayers),
	)
	if err != nil {
		return engine.NewLoadError(uri, err)
	}
	prev := a.model.Swap(newModel(uri, ll))
	a.set.Logger.Info().Str("uri", uri).Msg("llama model loaded")
	if prev != nil {
		freed := prev.lease.retire()
		go func() {
			<-freed
			a.set.Logger.Debug().Str("uri", prev.uri).Msg("previous llama model freed")
		}()
	}
	return nil
}

func (a *Adapter) Close() error {
	if m := a.model.Swap(nil); m != nil {
		<-m.lease.retire()
	}
	return nil
}

// acquire pins the current model for one call; release with m.lease.unpin.
// A pin that fails lost a race with a reload, and the handle already holds
// the replacement.
func (a *Adapter) acquire() (*model, error) {
	for {
		m := a.model.Get()
		if m == nil {
			return nil, fmt.Errorf("llama model not loaded")
		}
		if m.lease.pin() {
			return m, nil
		}
	}
}

func (a *Adapter) predictOptions(c engine.Call) []llama.PredictOption {
	o := a.opts
	po := []llama.PredictOption{
		llama.SetTokens(max(1, adapters.Int(c.Params, "max_tokens", o.MaxTokens))),
		llama.SetThreads(max(1, o.Threads)),
		llama.SetTopP(zf(float32(adapters.Float(c.Params, "top_p", o.TopP)), llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(adapters.Int(c.Params, "top_k", o.TopK), llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(float32(adapters.Float(c.Params, "temperature", o.Temperature)), llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(float32(o.RepeatPenalty), llama.DefaultOptions.Penalty)),
	}
	if seed := adapters.Int(c.Params, "seed", o.Seed); seed != 0 {
		po = append(po, llama.SetSeed(seed))
	}
	if len(o.Stop) > 0 {
		po = append(po, llama.SetStopWords(o.Stop...))
	}
	return po
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// generate runs one prediction on the pinned model m, forwarding tokens to
// emit until the context ends or emit fails.
func (a *Adapter) generate(ctx context.Context, m *model, c engine.Call, prompt string, emit engine.Emit) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var emitErr error
	m.ll.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := emit(tok); err != nil {
			emitErr = err
			return false
		}
		return true
	})
	text, err := m.ll.Predict(prompt, a.predictOptions(c)...)
	if ctx.Err() != nil {
		return text, ctx.Err()
	}
	if emitErr != nil {
		return text, emitErr
	}
	return text, err
}

// conversation keys history to the model version that serves the call.
func (a *Adapter) conversation(m *model) adapters.Conversation {
	return adapters.Conversation{Store: a.set.Memory, Version: m.uri, Log: a.set.Logger}
}

func discard(string) error { return nil }

func (a *Adapter) runQuery(ctx context.Context, c engine.Call) (string, error) {
	m, err := a.acquire()
	if err != nil {
		return "", err
	}
	defer m.lease.unpin()
	return a.generate(ctx, m, c, adapters.Transcript(a.opts.SystemPrompt, nil, c.Text), discard)
}

func (a *Adapter) runChat(ctx context.Context, c engine.Call) (string, error) {
	m, err := a.acquire()
	if err != nil {
		return "", err
	}
	defer m.lease.unpin()
	conv := a.conversation(m)
	prompt := adapters.Transcript(a.opts.SystemPrompt, conv.History(ctx, c.SessionID), c.Text)
	out, err := a.generate(ctx, m, c, prompt, discard)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	conv.Record(ctx, c.SessionID, c.Text, out)
	return out, nil
}

// Streams pin the model up front; the producer releases it when generation
// ends.
func (a *Adapter) streamQuery(ctx context.Context, c engine.Call) (engine.Stream, error) {
	m, err := a.acquire()
	if err != nil {
		return nil, err
	}
	prompt := adapters.Transcript(a.opts.SystemPrompt, nil, c.Text)
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		defer m.lease.unpin()
		_, err := a.generate(ctx, m, c, prompt, emit)
		return err
	}), nil
}

func (a *Adapter) streamChat(ctx context.Context, c engine.Call) (engine.Stream, error) {
	m, err := a.acquire()
	if err != nil {
		return nil, err
	}
	conv := a.conversation(m)
	prompt := adapters.Transcript(a.opts.SystemPrompt, conv.History(ctx, c.SessionID), c.Text)
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		defer m.lease.unpin()
		out, err := a.generate(ctx, m, c, prompt, emit)
		if err == nil {
			conv.Record(ctx, c.SessionID, c.Text, strings.TrimSpace(out))
		}
		return err
	}), nil
}
