// Package openai serves chat and query calls through the OpenAI Chat
// Completions API (or any compatible endpoint via base_url). The resolved
// model URI is the model name sent with each request.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"modelgate/internal/adapters"
	"modelgate/internal/engine"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
)

const Name = "openai"

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
	model  string
	client *openai.Client
}

type Adapter struct {
	*engine.Dispatch
	opts   Options
	set    registry.Settings
	target engine.Handle[target]
}

func New(s registry.Settings) (engine.Adapter, error) {
	opts := Options{APIKeyEnv: "OPENAI_API_KEY", Temperature: 0.7, MaxTokens: 1024, MaxRetries: 2}
	if err := s.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	a := &Adapter{Dispatch: engine.NewDispatch(), opts: opts, set: s}
	a.Handle(engine.ModeChat, a.runChat, a.streamChat)
	a.Handle(engine.ModeQuery, a.runQuery, a.streamQuery)
	return a, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	return a.ReloadFromURI(ctx, a.set.ResolvedURI)
}

// ReloadFromURI points calls at a new model name. Hosted models need no
// download, so a reload only fails on missing credentials or an empty name.
func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	model := strings.TrimSpace(uri)
	if model == "" {
		return engine.NewLoadError(uri, errors.New("empty model name"))
	}
	key, err := adapters.APIKey(a.opts.APIKey, a.opts.APIKeyEnv, "OPENAI_API_KEY")
	if err != nil {
		return engine.NewLoadError(uri, err)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(a.opts.MaxRetries)}
	if a.opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)
	a.target.Swap(&target{model: model, client: &client})
	a.set.Logger.Info().Str("uri", model).Msg("openai model selected")
	return nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) conversation(t *target) adapters.Conversation {
	return adapters.Conversation{Store: a.set.Memory, Version: t.model, Log: a.set.Logger}
}

func (a *Adapter) params(t *target, c engine.Call, history []memory.Turn) openai.ChatCompletionNewParams {
	var msgs []openai.ChatCompletionMessageParamUnion
	if a.opts.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(a.opts.SystemPrompt))
	}
	for _, turn := range history {
		if turn.Role == adapters.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(turn.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(c.Text))
	return openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               openai.ChatModel(t.model),
		Temperature:         openai.Float(adapters.Float(c.Params, "temperature", a.opts.Temperature)),
		MaxCompletionTokens: openai.Int(int64(adapters.Int(c.Params, "max_tokens", int(a.opts.MaxTokens)))),
	}
}

func (a *Adapter) complete(ctx context.Context, t *target, p openai.ChatCompletionNewParams) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// stream forwards content deltas of a streaming completion to emit and
// returns the concatenated reply.
func (a *Adapter) stream(ctx context.Context, t *target, p openai.ChatCompletionNewParams, emit engine.Emit) (string, error) {
	s := t.client.Chat.Completions.NewStreaming(ctx, p)
	defer s.Close()
	var reply strings.Builder
	for s.Next() {
		for _, ch := range s.Current().Choices {
			if ch.Delta.Content == "" {
				continue
			}
			reply.WriteString(ch.Delta.Content)
			if err := emit(ch.Delta.Content); err != nil {
				return reply.String(), err
			}
		}
	}
	if err := s.Err(); err != nil {
		return reply.String(), fmt.Errorf("openai streaming error: %w", err)
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
