package manager

import (
	"context"
	"io"
	"time"

	"modelgate/internal/engine"
)

// PredictStream holds an admission slot for the duration of one streaming
// call and forwards every token, packed in the configured format, to emit in
// production order. When the deadline expires or ctx is cancelled it emits
// one Sentinel chunk and returns nil. An error from emit means the consumer
// is gone; it is returned as is.
func (m *Manager) PredictStream(ctx context.Context, payload []byte, emit func(chunk string) error) (err error) {
	start := time.Now()
	result := "ok"
	defer func() {
		if err != nil {
			result = resultLabel(err)
		}
		runtimeRequestsTotal.WithLabelValues(m.cfg.Name, "stream", result).Inc()
		runtimeRequestDuration.WithLabelValues(m.cfg.Name, "stream").Observe(time.Since(start).Seconds())
	}()

	a, g, done, err := m.current()
	if err != nil {
		return err
	}
	defer done()
	release, err := g.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	runtimeInflightStreams.WithLabelValues(m.cfg.Name).Inc()
	defer runtimeInflightStreams.WithLabelValues(m.cfg.Name).Dec()

	in, err := DecodeInput(payload)
	if err != nil {
		return err
	}
	call := engine.Call{Mode: m.mode, Text: in.Text, SessionID: in.SessionID, Params: in.Params}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	ended := func() error {
		result = "ended"
		m.log.Info().Err(callCtx.Err()).Str("session_id", in.SessionID).Msg("stream ended early")
		_ = emit(PackChunk(m.format, Sentinel))
		return nil
	}

	st, err := a.Stream(callCtx, call)
	if err != nil {
		if callCtx.Err() != nil {
			return ended()
		}
		return err
	}
	defer st.Close()

	tokens := runtimeTokensTotal.WithLabelValues(m.cfg.Name)
	items := engine.Pump(callCtx, st)
	for {
		select {
		case it, ok := <-items:
			if !ok {
				return ended()
			}
			if it.Err == io.EOF {
				return nil
			}
			if it.Err != nil {
				if callCtx.Err() != nil {
					return ended()
				}
				m.log.Warn().Err(it.Err).Str("session_id", in.SessionID).Msg("stream failed")
				return it.Err
			}
			if err := emit(PackChunk(m.format, it.Token)); err != nil {
				return err
			}
			tokens.Inc()
		case <-callCtx.Done():
			return ended()
		}
	}
}
