package manager

import (
	"context"
	"time"
)

// StartDrain stops admitting new streams. In-flight streams continue. The
// returned channel closes when the drain grace window has elapsed.
func (m *Manager) StartDrain() <-chan struct{} {
	m.mu.Lock()
	transitioned := m.state == StateReady
	if transitioned {
		m.state = StateDraining
	}
	g := m.gate
	m.mu.Unlock()
	if g == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if transitioned {
		m.log.Info().Int("inflight", g.InFlight()).Dur("grace", m.cfg.DrainGrace).Msg("drain started")
		m.publish(EventDrainStart, map[string]any{"inflight": g.InFlight()})
	}
	return g.StartDrain()
}

// Finalize drains, stops the watch (waiting a bounded time for it to exit)
// and closes the adapter. An adapter that still serves in-flight calls is
// closed in the background once they finish, and left open if they outlast
// the drain grace. Finalize is idempotent.
func (m *Manager) Finalize(ctx context.Context) error {
	m.finalizeOnce.Do(func() {
		m.StartDrain()

		m.mu.RLock()
		cancel, done := m.watchCancel, m.watchDone
		m.mu.RUnlock()
		if cancel != nil {
			cancel()
			wctx, wcancel := context.WithTimeout(ctx, watchStopTimeout)
			select {
			case <-done:
			case <-wctx.Done():
				m.log.Warn().Msg("watch did not stop in time")
			}
			wcancel()
		}

		m.mu.Lock()
		m.state = StateFinalized
		m.mu.Unlock()

		if b := m.active.Load(); b != nil {
			if m.calls.Load() == 0 {
				m.closeAdapter(b)
			} else {
				go func() {
					wctx, wcancel := context.WithTimeout(context.Background(), m.cfg.DrainGrace)
					defer wcancel()
					if err := m.waitCalls(wctx); err != nil {
						m.log.Warn().Int("inflight", m.InFlightCalls()).Msg("adapter left open: calls outlasted drain grace")
						return
					}
					m.closeAdapter(b)
				}()
			}
		}
		m.log.Info().Msg("runtime finalized")
		m.publish(EventFinalized, nil)
	})
	return nil
}

func (m *Manager) closeAdapter(b *boundAdapter) {
	start := time.Now()
	if err := b.Close(); err != nil {
		m.log.Warn().Err(err).Msg("adapter close failed")
		return
	}
	m.log.Debug().Dur("took", time.Since(start)).Msg("adapter closed")
}
