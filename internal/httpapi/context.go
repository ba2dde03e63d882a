package httpapi

import "context"

// callContext returns a context canceled when either the request or the
// server's base context ends. cancel must be called when the handler returns.
func callContext(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
