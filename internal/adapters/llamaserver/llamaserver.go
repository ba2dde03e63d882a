// Package llamaserver talks to a running llama.cpp server over its
// OpenAI-compatible HTTP API. The resolved model URI is sent as the model id;
// the server decides how to map it onto weights.
package llamaserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"modelgate/internal/adapters"
	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

const Name = "llamaserver"

type Options struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	TopP           float64       `yaml:"top_p"`
	Stop           []string      `yaml:"stop"`
	Seed           int           `yaml:"seed"`
	RepeatPenalty  float64       `yaml:"repeat_penalty"`
	SystemPrompt   string        `yaml:"system_prompt"`
}

type target struct {
	model string
}

type Adapter struct {
	*engine.Dispatch
	opts       Options
	set        registry.Settings
	baseURL    string
	apiKey     string
	httpClient *http.Client
	target     engine.Handle[target]
}

func New(s registry.Settings) (engine.Adapter, error) {
	opts := Options{
		BaseURL:        "http://127.0.0.1:8080",
		ConnectTimeout: 5 * time.Second,
		MaxTokens:      256,
	}
	if err := s.DecodeOptions(&opts); err != nil {
		return nil, err
	}
	apiKey, _ := adapters.APIKey(opts.APIKey, opts.APIKeyEnv, "")
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	a := &Adapter{
		Dispatch: engine.NewDispatch(),
		opts:     opts,
		set:      s,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   apiKey,
		// Timeout stays 0: every request carries the runtime's context deadline.
		httpClient: &http.Client{Transport: tr},
	}
	a.Handle(engine.ModeChat, a.runChat, a.streamChat)
	a.Handle(engine.ModeQuery, a.runQuery, a.streamQuery)
	return a, nil
}

func (a *Adapter) Load(ctx context.Context) error {
	return a.ReloadFromURI(ctx, a.set.ResolvedURI)
}

// ReloadFromURI checks the server is healthy before pointing calls at the new
// model id, so an unreachable server keeps the previous target.
func (a *Adapter) ReloadFromURI(ctx context.Context, uri string) error {
	model := strings.TrimSpace(uri)
	if model == "" {
		return engine.NewLoadError(uri, errors.New("empty model id"))
	}
	if err := a.health(ctx); err != nil {
		return engine.NewLoadError(uri, err)
	}
	a.target.Swap(&target{model: model})
	a.set.Logger.Info().Str("uri", model).Str("base_url", a.baseURL).Msg("llama server target set")
	return nil
}

func (a *Adapter) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

func (a *Adapter) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	a.authorize(req)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llama server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama server health: %s", resp.Status)
	}
	return nil
}

func (a *Adapter) authorize(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
}

// completionRequest is the payload for /v1/completions.
type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        int      `json:"seed,omitempty"`
	Stream      bool     `json:"stream"`
	// Not standard OpenAI; llama.cpp servers accept it, others ignore it.
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// streamChoice covers both the completions shape (text) and the chat shape
// (delta.content) since llama.cpp builds differ.
type streamChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type streamResponse struct {
	Choices []streamChoice `json:"choices"`
	// Native llama.cpp /completion lines carry the fragment here.
	Content string `json:"content"`
}

func (a *Adapter) request(c engine.Call, prompt string) completionRequest {
	return completionRequest{
		Model:         a.target.Get().model,
		Prompt:        prompt,
		MaxTokens:     adapters.Int(c.Params, "max_tokens", a.opts.MaxTokens),
		Temperature:   adapters.Float(c.Params, "temperature", a.opts.Temperature),
		TopP:          adapters.Float(c.Params, "top_p", a.opts.TopP),
		TopK:          adapters.Int(c.Params, "top_k", 0),
		Stop:          a.opts.Stop,
		Seed:          adapters.Int(c.Params, "seed", a.opts.Seed),
		Stream:        true,
		RepeatPenalty: a.opts.RepeatPenalty,
	}
}

func (a *Adapter) conversation() adapters.Conversation {
	return adapters.Conversation{Store: a.set.Memory, Version: a.target.Get().model, Log: a.set.Logger}
}

func (a *Adapter) streamQuery(ctx context.Context, c engine.Call) (engine.Stream, error) {
	req := a.request(c, adapters.Transcript(a.opts.SystemPrompt, nil, c.Text))
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		return a.generate(ctx, req, emit)
	}), nil
}

func (a *Adapter) streamChat(ctx context.Context, c engine.Call) (engine.Stream, error) {
	conv := a.conversation()
	req := a.request(c, adapters.Transcript(a.opts.SystemPrompt, conv.History(ctx, c.SessionID), c.Text))
	return engine.Produce(ctx, func(ctx context.Context, emit engine.Emit) error {
		var reply strings.Builder
		err := a.generate(ctx, req, func(tok string) error {
			reply.WriteString(tok)
			return emit(tok)
		})
		if err == nil {
			conv.Record(ctx, c.SessionID, c.Text, reply.String())
		}
		return err
	}), nil
}

func (a *Adapter) runQuery(ctx context.Context, c engine.Call) (string, error) {
	s, _ := a.streamQuery(ctx, c)
	return join(s)
}

func (a *Adapter) runChat(ctx context.Context, c engine.Call) (string, error) {
	s, _ := a.streamChat(ctx, c)
	return join(s)
}

func join(s engine.Stream) (string, error) {
	toks, err := engine.Collect(s)
	return strings.Join(toks, ""), err
}

// generate posts req and forwards each streamed fragment to onToken.
func (a *Adapter) generate(ctx context.Context, payload completionRequest, onToken engine.Emit) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	a.authorize(req)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			done, perr := a.handleLine(line, onToken)
			if perr != nil {
				return perr
			}
			if done {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.set.Logger.Warn().Err(err).Msg("llama server stream read error")
			return err
		}
	}
}

// handleLine parses one SSE line. It reports done on the [DONE] marker.
func (a *Adapter) handleLine(line string, onToken engine.Emit) (bool, error) {
	if !strings.HasPrefix(strings.ToLower(line), "data:") {
		// comments, event names and ids carry no tokens
		return false, nil
	}
	data := strings.TrimSpace(line[len("data:"):])
	if data == "[DONE]" {
		return true, nil
	}
	var msg streamResponse
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		a.set.Logger.Debug().Str("line", line).Msg("unknown stream line")
		return false, nil
	}
	frag := msg.Content
	if len(msg.Choices) > 0 {
		frag = msg.Choices[0].Text + msg.Choices[0].Delta.Content
	}
	if frag == "" {
		return false, nil
	}
	return false, onToken(frag)
}
