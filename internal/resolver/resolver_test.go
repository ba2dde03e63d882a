package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedCatalog returns one scripted result per lookup, repeating the last.
type scriptedCatalog struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	version string
	err     error
}

func (c *scriptedCatalog) Version(ctx context.Context, name, alias string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.steps) {
		i = len(c.steps) - 1
	}
	c.calls++
	return c.steps[i].version, c.steps[i].err
}

func (c *scriptedCatalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]int // uri -> remaining failures
}

func (r *recorder) onChange(ctx context.Context, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, uri)
	if r.fail[uri] > 0 {
		r.fail[uri]--
		return errors.New("reload failed")
	}
	return nil
}

func (r *recorder) Seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func runWatch(t *testing.T, a *Alias, rec *recorder, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Watch(ctx, "ref://main.default.bot@champion", time.Millisecond, rec.onChange)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !until() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("watch did not reach expected state; seen=%v", rec.Seen())
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("watch did not stop after cancel")
	}
}

func TestParseAliasRef(t *testing.T) {
	ar, err := ParseAliasRef("ref://main.default.bot@champion")
	if err != nil || ar.Name != "main.default.bot" || ar.Alias != "champion" {
		t.Fatalf("got %+v, %v", ar, err)
	}
	if _, err := ParseAliasRef("models:/main.default.bot@prod"); err != nil {
		t.Fatalf("models:/ form: %v", err)
	}
	for _, bad := range []string{"main.default.bot@x", "ref://main.default.bot", "ref://bot@x", "ref://a..b@x", "ref://a.b.c@"} {
		if _, err := ParseAliasRef(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStatic(t *testing.T) {
	s := Static{}
	uri, err := s.ResolveInitial(context.Background(), "gpt-4o-mini")
	if err != nil || uri != "gpt-4o-mini" {
		t.Fatalf("got %q, %v", uri, err)
	}
	if _, err := s.ResolveInitial(context.Background(), " "); !IsResolutionError(err) {
		t.Fatalf("want ResolutionError, got %v", err)
	}
	called := false
	start := time.Now()
	if err := s.Watch(context.Background(), "x", time.Hour, func(context.Context, string) error { called = true; return nil }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if called || time.Since(start) > time.Second {
		t.Fatalf("static watch should return immediately without notifications")
	}
}

func TestAlias_ResolveInitial(t *testing.T) {
	a := NewAlias(&scriptedCatalog{steps: []step{{version: "7"}}}, zerolog.Nop())
	uri, err := a.ResolveInitial(context.Background(), "ref://main.default.bot@champion")
	if err != nil || uri != "models:/main.default.bot/7" {
		t.Fatalf("got %q, %v", uri, err)
	}
	if _, err := a.ResolveInitial(context.Background(), "not-a-ref"); !IsResolutionError(err) {
		t.Fatalf("want ResolutionError for malformed ref, got %v", err)
	}
	failing := NewAlias(&scriptedCatalog{steps: []step{{err: errors.New("catalog down")}}}, zerolog.Nop())
	if _, err := failing.ResolveInitial(context.Background(), "ref://main.default.bot@champion"); !IsResolutionError(err) {
		t.Fatalf("want ResolutionError for catalog failure, got %v", err)
	}
}

func TestWatch_NotifiesOncePerDistinctValue(t *testing.T) {
	cat := &scriptedCatalog{steps: []step{{version: "1"}, {version: "1"}, {err: errors.New("transient")}, {version: "2"}}}
	rec := &recorder{}
	runWatch(t, NewAlias(cat, zerolog.Nop()), rec, func() bool { return cat.Calls() >= 6 })
	got := rec.Seen()
	want := []string{"models:/main.default.bot/1", "models:/main.default.bot/2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("onChange calls = %v, want %v", got, want)
	}
}

func TestWatch_FailedReloadRetriesSameURI(t *testing.T) {
	cat := &scriptedCatalog{steps: []step{{version: "1"}}}
	uri := "models:/main.default.bot/1"
	rec := &recorder{fail: map[string]int{uri: 2}}
	runWatch(t, NewAlias(cat, zerolog.Nop()), rec, func() bool { return cat.Calls() >= 6 })
	got := rec.Seen()
	if len(got) != 3 {
		t.Fatalf("want two failed attempts then one success, got %v", got)
	}
}

func TestWatch_MalformedRefReturnsError(t *testing.T) {
	a := NewAlias(&scriptedCatalog{steps: []step{{version: "1"}}}, zerolog.Nop())
	err := a.Watch(context.Background(), "bad", time.Millisecond, func(context.Context, string) error { return nil })
	if !IsResolutionError(err) {
		t.Fatalf("want ResolutionError, got %v", err)
	}
}

func TestFileCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	write := func(v string) {
		t.Helper()
		body := "models:\n  main.default.bot:\n    aliases:\n      champion: \"" + v + "\"\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("3")
	fc, err := NewFileCatalog(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer fc.Close()

	v, err := fc.Version(context.Background(), "main.default.bot", "champion")
	if err != nil || v != "3" {
		t.Fatalf("got %q, %v", v, err)
	}
	if _, err := fc.Version(context.Background(), "main.default.bot", "shadow"); err == nil {
		t.Fatalf("expected missing alias error")
	}
	if _, err := fc.Version(context.Background(), "other.default.bot", "champion"); err == nil {
		t.Fatalf("expected missing model error")
	}

	write("4")
	v, err = fc.Version(context.Background(), "main.default.bot", "champion")
	if err != nil || v != "4" {
		t.Fatalf("after edit got %q, %v", v, err)
	}
}

func TestHTTPCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/mlflow/registered-models/alias" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("name") != "main.default.bot" || r.URL.Query().Get("alias") != "champion" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":"RESOURCE_DOES_NOT_EXIST"}`))
			return
		}
		_, _ = w.Write([]byte(`{"model_version":{"name":"main.default.bot","version":"12"}}`))
	}))
	defer srv.Close()

	c := NewHTTPCatalog(srv.URL+"/", "tok", srv.Client())
	v, err := c.Version(context.Background(), "main.default.bot", "champion")
	if err != nil || v != "12" {
		t.Fatalf("got %q, %v", v, err)
	}
	if _, err := c.Version(context.Background(), "main.default.bot", "shadow"); err == nil {
		t.Fatalf("expected error for 404")
	}
	unauth := NewHTTPCatalog(srv.URL, "", srv.Client())
	if _, err := unauth.Version(context.Background(), "main.default.bot", "champion"); err == nil {
		t.Fatalf("expected error for 401")
	}
}

func TestNew(t *testing.T) {
	if r, err := New("static_uri", Options{}); err != nil {
		t.Fatalf("static_uri: %v", err)
	} else if _, ok := r.(Static); !ok {
		t.Fatalf("want Static, got %T", r)
	}
	if _, err := New("uc_alias", Options{}); err == nil {
		t.Fatalf("alias without a catalog should fail")
	}
	if r, err := New("alias", Options{CatalogURL: "http://catalog.local"}); err != nil {
		t.Fatalf("alias: %v", err)
	} else if _, ok := r.(*Alias); !ok {
		t.Fatalf("want *Alias, got %T", r)
	}
	if _, err := New("git", Options{}); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

func TestFileCatalog_NotifiesEverySubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("models: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := NewFileCatalog(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer fc.Close()

	a, cancelA := fc.Subscribe()
	b, cancelB := fc.Subscribe()
	defer cancelA()
	fc.notify()
	for name, ch := range map[string]<-chan struct{}{"a": a, "b": b} {
		select {
		case <-ch:
		default:
			t.Fatalf("subscriber %s not woken", name)
		}
	}

	cancelB()
	cancelB()
	fc.notify()
	select {
	case <-b:
		t.Fatalf("unsubscribed channel still woken")
	default:
	}
	select {
	case <-a:
	default:
		t.Fatalf("remaining subscriber not woken")
	}
}

func TestAlias_SharedFileCatalogWakesAllWatchers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	write := func(v string) {
		t.Helper()
		body := "models:\n" +
			"  main.default.a:\n    aliases:\n      champion: \"" + v + "\"\n" +
			"  main.default.b:\n    aliases:\n      champion: \"" + v + "\"\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("1")
	fc, err := NewFileCatalog(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer fc.Close()
	if fc.watcher == nil {
		t.Skip("fsnotify unavailable")
	}
	alias := NewAlias(fc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	recs := map[string]*recorder{"a": {}, "b": {}}
	for name, rec := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = alias.Watch(ctx, "ref://main.default."+name+"@champion", time.Hour, rec.onChange)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	waitSeen := func(n int) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for len(recs["a"].Seen()) < n || len(recs["b"].Seen()) < n {
			if time.Now().After(deadline) {
				t.Fatalf("a=%v b=%v", recs["a"].Seen(), recs["b"].Seen())
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitSeen(1)
	write("2")
	waitSeen(2)
	for name, rec := range recs {
		if got := rec.Seen()[1]; got != "models:/main.default."+name+"/2" {
			t.Fatalf("%s second uri = %q", name, got)
		}
	}
}
