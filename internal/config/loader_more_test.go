package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelgate/internal/registry"
	"modelgate/internal/resolver"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.yaml", "server:\n  http_addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.json", `{ "server": { "http_addr": } }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.toml", "[server]\nhttp_addr=:8080\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestRuntimes_TranslatesModels(t *testing.T) {
	d := t.TempDir()
	catalog := writeTempFile(t, d, "catalog.yaml", "models:\n  main.default.bot:\n    aliases:\n      champion: \"3\"\n")
	off := false
	cfg := Config{
		Catalog: CatalogConfig{Path: catalog},
		Models: []ModelConfig{
			{Name: "a", Adapter: "ECHO", ModelRef: "file:///a", HotReload: &off, TimeoutSeconds: 5},
			{Name: "b", ModelRef: "ref://main.default.bot@champion", Resolver: "alias"},
			{Name: "c", ModelRef: "ref://main.default.bot@champion", Resolver: "uc_alias"},
		},
	}
	cfg.ApplyDefaults()
	reg := registry.New()
	out, closeFn, err := cfg.Runtimes(reg, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("runtimes: %v", err)
	}
	defer closeFn()
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	a := out[0]
	if a.Adapter != "echo" || a.HotReload || a.Timeout != 5*time.Second || a.Registry != reg {
		t.Fatalf("a: %+v", a)
	}
	if _, ok := a.Resolver.(resolver.Static); !ok {
		t.Fatalf("a: want static resolver, got %T", a.Resolver)
	}
	if out[1].Resolver != out[2].Resolver {
		t.Fatalf("alias resolvers should share one catalog")
	}
	if out[1].DrainGrace != 10*time.Second || out[1].MaxConcurrent != 64 {
		t.Fatalf("b: %+v", out[1])
	}
}
