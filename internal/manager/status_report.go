package manager

import (
	"time"

	"modelgate/pkg/types"
)

// Snapshot returns a read-only view of the runtime state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		Name:            m.cfg.Name,
		State:           m.state,
		Adapter:         m.cfg.Adapter,
		ModelRef:        m.cfg.ModelRef,
		ResolvedURI:     m.uri,
		EngineType:      m.cfg.EngineType,
		MaxConcurrent:   m.cfg.MaxConcurrent,
		Reloads:         m.reloads,
		ReloadFailures:  m.reloadFailures,
		LastReloadError: m.lastReloadErr,
		Err:             m.err,
		LoadedAt:        m.loadedAt,
	}
	if m.gate != nil {
		s.InFlight = m.gate.InFlight()
		s.Draining = m.gate.Draining()
	}
	return s
}

// Status projects the snapshot into the API type.
func (m *Manager) Status() types.RuntimeStatus {
	s := m.Snapshot()
	rs := types.RuntimeStatus{
		Name:            s.Name,
		State:           string(s.State),
		Adapter:         s.Adapter,
		ModelRef:        s.ModelRef,
		ResolvedURI:     s.ResolvedURI,
		EngineType:      s.EngineType,
		InFlight:        s.InFlight,
		MaxConcurrent:   s.MaxConcurrent,
		Draining:        s.Draining,
		Reloads:         s.Reloads,
		ReloadFailures:  s.ReloadFailures,
		LastReloadError: s.LastReloadError,
		Error:           s.Err,
	}
	if !s.LoadedAt.IsZero() {
		rs.UptimeSeconds = int64(time.Since(s.LoadedAt).Seconds())
	}
	return rs
}

// Model returns the /models entry for this runtime.
func (m *Manager) Model() types.Model {
	s := m.Snapshot()
	return types.Model{
		Name:        s.Name,
		Adapter:     s.Adapter,
		EngineType:  s.EngineType,
		ResolvedURI: s.ResolvedURI,
		State:       string(s.State),
	}
}
