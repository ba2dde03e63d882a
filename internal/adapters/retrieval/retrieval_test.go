package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

const corpusYAML = `
- id: go
  text: Go has goroutines and channels
- id: rust
  text: Rust has ownership and borrowing
- id: chan
  text: Channels connect goroutines in Go programs
`

func writeCorpus(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func loaded(t *testing.T, uri string, topK int) *Adapter {
	t.Helper()
	a, err := New(registry.Settings{ResolvedURI: uri, TopK: topK})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return a.(*Adapter)
}

func TestRetrieve_RanksByOverlap(t *testing.T) {
	a := loaded(t, writeCorpus(t, "c.yaml", corpusYAML), 2)
	out, err := a.Run(context.Background(), engine.Call{Mode: engine.ModeRetrieve, Text: "goroutines channels in Go"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Channels connect goroutines in Go programs\nGo has goroutines and channels"
	if out != want {
		t.Fatalf("got %q", out)
	}
}

func TestRetrieve_TopKFromParams(t *testing.T) {
	a := loaded(t, writeCorpus(t, "c.yaml", corpusYAML), 4)
	s, err := a.Stream(context.Background(), engine.Call{
		Mode: engine.ModeRetrieve, Text: "go", Params: map[string]any{"top_k": float64(1)},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	toks, _ := engine.Collect(s)
	if len(toks) != 1 || toks[0] != "Go has goroutines and channels" {
		t.Fatalf("tokens = %q", toks)
	}
}

func TestQuery_BestPassageFromJSONCorpus(t *testing.T) {
	p := writeCorpus(t, "c.json", `[{"id":"a","text":"alpha beta"},{"id":"b","text":"ownership rules"}]`)
	a := loaded(t, "file://"+p, 4)
	out, err := a.Run(context.Background(), engine.Call{Mode: engine.ModeQuery, Text: "what are the ownership rules"})
	if err != nil || out != "ownership rules" {
		t.Fatalf("got %q, %v", out, err)
	}
	out, _ = a.Run(context.Background(), engine.Call{Mode: engine.ModeQuery, Text: "nothing matches"})
	if out != "" {
		t.Fatalf("no-match query returned %q", out)
	}
}

func TestReload_SwapOrKeep(t *testing.T) {
	a := loaded(t, writeCorpus(t, "c.yaml", corpusYAML), 4)
	ctx := context.Background()
	if err := a.ReloadFromURI(ctx, filepath.Join(t.TempDir(), "missing.yaml")); !engine.IsLoadError(err) {
		t.Fatalf("want LoadError, got %v", err)
	}
	if out, _ := a.Run(ctx, engine.Call{Mode: engine.ModeQuery, Text: "rust"}); out != "Rust has ownership and borrowing" {
		t.Fatalf("old corpus not kept: %q", out)
	}
	next := writeCorpus(t, "n.yaml", "- id: x\n  text: brand new rust passage\n")
	if err := a.ReloadFromURI(ctx, next); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if out, _ := a.Run(ctx, engine.Call{Mode: engine.ModeQuery, Text: "rust"}); out != "brand new rust passage" {
		t.Fatalf("new corpus not served: %q", out)
	}
}

func TestLoad_EmptyCorpus(t *testing.T) {
	a, _ := New(registry.Settings{ResolvedURI: writeCorpus(t, "e.yaml", "[]")})
	if err := a.Load(context.Background()); !engine.IsLoadError(err) {
		t.Fatalf("want LoadError, got %v", err)
	}
}
