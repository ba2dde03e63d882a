package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"modelgate/internal/engine"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int64  `json:"max_tokens"`
	Stream    bool   `json:"stream"`
	Messages  []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

// fakeAPI answers /v1/messages with reply, streamed as one text delta per
// word when asked to stream.
type fakeAPI struct {
	mu    sync.Mutex
	reqs  []messagesRequest
	reply string
	key   string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
		http.NotFound(w, r)
		return
	}
	var req messagesRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.key = r.Header.Get("X-Api-Key")
	f.mu.Unlock()
	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"msg_1","type":"message","role":"assistant","model":%q,"stop_reason":"end_turn","content":[{"type":"text","text":%q}],"usage":{"input_tokens":1,"output_tokens":1}}`, req.Model, f.reply)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	send := func(event, data string) {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		w.(http.Flusher).Flush()
	}
	send("message_start", fmt.Sprintf(`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":%q,"content":[],"usage":{"input_tokens":1,"output_tokens":0}}}`, req.Model))
	send("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
	for _, tok := range strings.SplitAfter(f.reply, " ") {
		send("content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, tok))
	}
	send("content_block_stop", `{"type":"content_block_stop","index":0}`)
	send("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`)
	send("message_stop", `{"type":"message_stop"}`)
}

func (f *fakeAPI) last() messagesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func loaded(t *testing.T, f *fakeAPI, store memory.Store) engine.Adapter {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	a, err := New(registry.Settings{
		ResolvedURI: "claude-test",
		Memory:      store,
		Options:     map[string]any{"api_key": "ak-test", "base_url": ts.URL + "/", "max_retries": 0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return a
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRun_Query(t *testing.T) {
	f := &fakeAPI{reply: "hi back"}
	a := loaded(t, f, nil)
	out, err := a.Run(testCtx(t), engine.Call{Mode: engine.ModeQuery, Text: "hi"})
	if err != nil || out != "hi back" {
		t.Fatalf("Run = %q, %v", out, err)
	}
	if req := f.last(); req.Model != "claude-test" || req.MaxTokens != 1024 {
		t.Fatalf("request = %+v", req)
	}
	if f.key != "ak-test" {
		t.Fatalf("api key header = %q", f.key)
	}
}

func TestStream_TextDeltas(t *testing.T) {
	f := &fakeAPI{reply: "alpha beta gamma"}
	a := loaded(t, f, memory.NewInProc(0))
	ctx := testCtx(t)
	call := engine.Call{Mode: engine.ModeChat, Text: "go", SessionID: "s"}
	s, err := a.Stream(ctx, call)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	toks, err := engine.Collect(s)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(toks) != 3 || strings.Join(toks, "") != "alpha beta gamma" {
		t.Fatalf("tokens = %q", toks)
	}
	if _, err := a.Run(ctx, call); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if req := f.last(); len(req.Messages) != 3 || req.Messages[1].Role != "assistant" {
		t.Fatalf("history not sent: %+v", req.Messages)
	}
}

func TestNew_RejectsNonPositiveMaxTokens(t *testing.T) {
	if _, err := New(registry.Settings{Options: map[string]any{"max_tokens": 0}}); err == nil {
		t.Fatalf("expected error")
	}
}
