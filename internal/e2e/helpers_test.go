package e2e

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"modelgate/internal/adapters/builtin"
	"modelgate/internal/gateway"
	"modelgate/internal/manager"
	"modelgate/internal/memory"
	"modelgate/internal/registry"
	"modelgate/internal/transport"
)

// stack is a gateway talking gRPC over an in-memory listener to a runtime
// group of echo models.
type stack struct {
	gateway *httptest.Server
	client  *transport.Client
	group   *manager.Group
}

func newStack(t *testing.T) *stack {
	t.Helper()
	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		t.Fatalf("register adapters: %v", err)
	}
	reg.Freeze()

	store := memory.NewInProc(50)
	group := manager.NewGroup(zerolog.Nop())
	group.AtFinalize(store.Close)
	add := func(cfg manager.Config) {
		cfg.Adapter = "echo"
		cfg.Registry = reg
		cfg.Memory = store
		if err := group.Add(manager.New(cfg)); err != nil {
			t.Fatalf("add %s: %v", cfg.Name, err)
		}
	}
	add(manager.Config{
		Name:           "bot",
		ModelRef:       "echo-v1",
		EngineType:     "chat",
		AdapterOptions: map[string]any{"prefix": "bot: "},
	})
	add(manager.Config{
		Name:           "slow",
		ModelRef:       "echo-slow",
		EngineType:     "query",
		Timeout:        300 * time.Millisecond,
		AdapterOptions: map[string]any{"token_delay": "1h"},
	})
	ctx := context.Background()
	if err := group.LoadAll(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = group.Finalize(context.Background()) })

	lis := bufconn.Listen(1 << 20)
	gs := transport.NewGRPCServer(transport.NewServer(group, zerolog.Nop()), zerolog.Nop())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := transport.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	bridge := gateway.NewBridge(client, gateway.Config{Heartbeat: time.Hour, ReadWait: 50 * time.Millisecond})
	ts := httptest.NewServer(gateway.NewMux(bridge, nil))
	t.Cleanup(ts.Close)
	return &stack{gateway: ts, client: client, group: group}
}

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	Event string
	Data  string
}

// stream issues a GET and parses the full SSE body.
func (s *stack) stream(t *testing.T, path string) (*http.Response, []sseEvent) {
	t.Helper()
	resp, err := http.Get(s.gateway.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	var (
		events []sseEvent
		cur    sseEvent
		data   []string
	)
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data != nil {
				cur.Data = strings.Join(data, "\n")
				events = append(events, cur)
			}
			cur, data = sseEvent{}, nil
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event: "):
			cur.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	return resp, events
}

func joinData(events []sseEvent) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(e.Data)
	}
	return sb.String()
}
