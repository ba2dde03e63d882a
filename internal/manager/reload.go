package manager

import (
	"context"
	"time"
)

// Reload points the active adapter at uri. Reloads are serialized; a reload
// to the URI already in service is a no-op. On failure the previous backend
// stays active and the error is returned to the watch, which retries.
func (m *Manager) Reload(ctx context.Context, uri string) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	a, _, done, err := m.current()
	if err != nil {
		return err
	}
	defer done()
	prev := m.ResolvedURI()
	if uri == prev {
		return nil
	}

	m.log.Info().Str("from", prev).Str("to", uri).Msg("reload start")
	m.publish(EventReloadStart, map[string]any{"from": prev, "to": uri})
	start := time.Now()
	if err := a.ReloadFromURI(ctx, uri); err != nil {
		m.mu.Lock()
		m.reloadFailures++
		m.lastReloadErr = err.Error()
		m.mu.Unlock()
		runtimeReloadsTotal.WithLabelValues(m.cfg.Name, "failed").Inc()
		m.log.Error().Err(err).Str("uri", uri).Msg("reload failed; keeping previous model")
		m.publish(EventReloadFailed, map[string]any{"uri": uri, "error": err.Error()})
		return err
	}

	m.mu.Lock()
	m.uri = uri
	m.reloads++
	m.lastReloadErr = ""
	m.mu.Unlock()
	runtimeReloadsTotal.WithLabelValues(m.cfg.Name, "ok").Inc()
	m.log.Info().Str("uri", uri).Dur("took", time.Since(start)).Msg("reload done")
	m.publish(EventReloadDone, map[string]any{"from": prev, "to": uri})
	return nil
}
