package manager

import (
	"context"
	"errors"
	"time"

	"modelgate/internal/engine"
)

// Predict runs one single-shot call under the configured deadline. Deadline
// expiry surfaces as *TimeoutError, even when the adapter ignores ctx.
func (m *Manager) Predict(ctx context.Context, payload []byte) (out string, err error) {
	start := time.Now()
	defer func() {
		runtimeRequestsTotal.WithLabelValues(m.cfg.Name, "predict", resultLabel(err)).Inc()
		runtimeRequestDuration.WithLabelValues(m.cfg.Name, "predict").Observe(time.Since(start).Seconds())
	}()

	a, _, release, err := m.current()
	if err != nil {
		return "", err
	}
	in, err := DecodeInput(payload)
	if err != nil {
		release()
		return "", err
	}
	call := engine.Call{Mode: m.mode, Text: in.Text, SessionID: in.SessionID, Params: in.Params}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		// released when the adapter returns, not when the deadline fires
		defer release()
		out, err := a.Run(ctx, call)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Model: m.cfg.Name, After: m.cfg.Timeout}
		}
		if r.err != nil {
			m.log.Warn().Err(r.err).Str("session_id", in.SessionID).Msg("predict failed")
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Model: m.cfg.Name, After: m.cfg.Timeout}
		}
		return "", ctx.Err()
	}
}
