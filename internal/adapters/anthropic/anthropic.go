// Package anthropic serves chat and query calls through the Anthropic
// Messages API. The resolved model URI is the model id.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"modelgate/internal/adapters"
	"modelgate/internal/engine"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
)

const Name = "anthropic"

type Options struct {
	APIKey       string  `yaml:"api_key"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	BaseURL      string  `yaml:"base_url"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int64   `yaml:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxRetries   int     `yaml:"max_retries"`
}

type target struct {
	model  anthropic.Model
	client *anthropic.Client
}

type Adapter struct {
	*engine.Dispatch
	opts   Options
	set    registry.Settings
	target engine.Handle[target]
}

func New(s registry.Settings) (engine.Adapter, error) {
	opts := Options{APIKeyEnv: "ANTHROPIC_API_KEY", Temperature: 0.7, MaxTokens: 1024, MaxRetries: 2}
	if err := s.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	if opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("max_tokens must be positive")
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), opts: opts, set: s}
	a.Handle(engine.ModeChat, a.runChat, a.streamChat)
	a.Handle(engine.ModeQuery, a.runQuery, a.streamQuery)
	return a, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	return a.ReloadFromURI(ctx, a.set.ResolvedURI)
}

func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	model := strings.TrimSpace(uri)
	if model == "" {
		return engine.NewLoadError(uri, errors.New("empty model id"))
	}
	key, err := adapters.APIKey(a.opts.APIKey, a.opts.APIKeyEnv, "ANTHROPIC_API_KEY")
	if err != nil {
		return engine.NewLoadError(uri, err)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(a.opts.MaxRetries)}
	if a.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	a.target.Swap(&target{model: anthropic.Model(model), client: &client})
	a.set.Logger.Info().Str("uri", model).Msg("anthropic model selected")
	return nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) conversation(t *target) adapters.Conversation {
	return adapters.Conversation{Store: a.set.Memory, Version: string(t.model), Log: a.set.Logger}
}

func (a *Adapter) params(t *target, c engine.Call, history []memory.Turn) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == adapters.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(c.Text)))
	p := anthropic.MessageNewParams{
		Model:       t.model,
		Messages:    msgs,
		MaxTokens:   int64(adapters.Int(c.Params, "max_tokens", int(a.opts.MaxTokens))),
		Temperature: anthropic.Float(adapters.Float(c.Params, "temperature", a.opts.Temperature)),
	}
	if a.opts.SystemPrompt != "" {
		p.System = []anthropic.TextBlockParam{{Text: a.opts.SystemPrompt}}
	}
	return p
}

func (a *Adapter) complete(ctx context.Context, t *target, p anthropic.MessageNewParams) (string, error) {
	resp, err := t.client.Messages.New(ctx, p)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}

// stream forwards text deltas to emit and returns the full reply.
func (a *Adapter) stream(ctx context.Context, t *target, p anthropic.MessageNewParams, emit engine.Emit) (string, error) {
	s := t.client.Messages.NewStreaming(ctx, p)
	defer s.Close()
	var reply strings.Builder
	for s.Next() {
		ev, ok := s.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
		if !ok || delta.Text == "" {
			continue
		}
		reply.WriteString(delta.Text)
		if err := emit(delta.Text); err != nil {
			return reply.String(), err
		}
	}
	if err := s.Err(); err != nil {
		return reply.String(), fmt.Errorf("anthropic streaming error: %w", err)
	}
	return reply.String(), nil
}

func (a *Adapter) runQuery(ctx context.Context, c engine.Call) (string, error) {
	t := a.target.Get()
	return a.complete(ctx, t, a.params(t, c, nil))
}

func (a *Adapter) runChat(ctx context.Context, c engine.Call) (string, error) {
	t := a.target.Get()
	conv := a.conversation(t)
	out, err := a.complete(ctx, t, a.params(t, c, conv.History(ctx, c.SessionID)))
	if err != nil {
		return "", err
	}
	conv.Record(ctx, c.SessionID, c.Text, out)
	return out, nil
}

func (a *Adapter) streamQuery(ctx context.Context, c engine.Call) (engine.Stream, error) {
	t := a.target.Get()
	p := a.params(t, c, nil)
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		_, err := a.stream(ctx, t, p, emit)
		return err
	}), nil
}

func (a *Adapter) streamChat(ctx context.Context, c engine.Call) (engine.Stream, error) {
	t := a.target.Get()
	conv := a.conversation(t)
	p := a.params(t, c, conv.History(ctx, c.SessionID))
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		out, err := a.stream(ctx, t, p, emit)
		if err == nil {
			conv.Record(ctx, c.SessionID, c.Text, out)
		}
		return err
	}), nil
}
