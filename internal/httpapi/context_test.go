package httpapi

import (
	"context"
	"testing"
	"time"

	"modelgate/internal/manager"
)

func errDraining() error { return manager.ErrDraining }

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("call context not canceled")
	}
}

func TestCallContext_CanceledByBase(t *testing.T) {
	base, stopBase := context.WithCancel(context.Background())
	ctx, cancel := callContext(base, context.Background())
	defer cancel()
	stopBase()
	waitDone(t, ctx)
}

func TestCallContext_CanceledByRequest(t *testing.T) {
	req, stopReq := context.WithCancel(context.Background())
	ctx, cancel := callContext(context.Background(), req)
	defer cancel()
	stopReq()
	waitDone(t, ctx)
}

func TestCallContext_CancelReleases(t *testing.T) {
	ctx, cancel := callContext(context.Background(), context.Background())
	cancel()
	waitDone(t, ctx)
}
