package manager

import (
	"context"
	"fmt"
	"time"

	"modelgate/internal/engine"
	"modelgate/internal/registry"
)

// Load resolves the model reference, builds and loads the adapter, starts
// the hot-reload watch and arms the gate. Any failure is fatal to the
// runtime and leaves it in StateFailed.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%s: load called in state %s", m.cfg.Name, st)
	}
	m.state = StateLoading
	m.mu.Unlock()
	m.publish(EventLoadStart, map[string]any{"ref": m.cfg.ModelRef, "adapter": m.cfg.Adapter})

	start := time.Now()
	uri, err := m.load(ctx)
	if err != nil {
		m.mu.Lock()
		m.state = StateFailed
		m.err = err.Error()
		m.mu.Unlock()
		m.log.Error().Err(err).Str("ref", m.cfg.ModelRef).Msg("load failed")
		m.publish(EventLoadFailed, map[string]any{"error": err.Error()})
		return err
	}

	// The gate is armed in the same critical section that publishes
	// StateReady, so no call can observe a ready runtime without it. The
	// watch starts afterwards; a change it reports goes through Reload,
	// which needs the runtime ready.
	m.mu.Lock()
	m.uri = uri
	m.gate = NewGate(m.cfg.MaxConcurrent, m.cfg.DrainGrace)
	m.loadedAt = time.Now()
	m.state = StateReady
	m.mu.Unlock()

	if m.cfg.HotReload {
		m.startWatch()
	}
	m.log.Info().Str("uri", uri).Str("adapter", m.cfg.Adapter).Str("engine", string(m.mode)).
		Dur("took", time.Since(start)).Msg("runtime ready")
	m.publish(EventLoadDone, map[string]any{"uri": uri})
	return nil
}

func (m *Manager) load(ctx context.Context) (string, error) {
	mode, err := engine.ParseMode(m.cfg.EngineType)
	if err != nil {
		return "", &ConfigError{Model: m.cfg.Name, Err: err}
	}
	format, err := ParseStreamFormat(m.cfg.StreamFormat)
	if err != nil {
		return "", &ConfigError{Model: m.cfg.Name, Err: err}
	}
	m.mode, m.format = mode, format

	uri, err := m.cfg.Resolver.ResolveInitial(ctx, m.cfg.ModelRef)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.cfg.Name, err)
	}

	a, err := m.cfg.Registry.Create(m.cfg.Adapter, registry.Settings{
		Name:        m.cfg.Name,
		ModelRef:    m.cfg.ModelRef,
		ResolvedURI: uri,
		EngineType:  mode,
		TopK:        m.cfg.TopK,
		Timeout:     m.cfg.Timeout,
		Options:     m.cfg.AdapterOptions,
		Memory:      m.cfg.Memory,
		Logger:      m.log.With().Str("adapter", m.cfg.Adapter).Logger(),
	})
	if err != nil {
		return "", &ConfigError{Model: m.cfg.Name, Err: err}
	}
	if !engine.Supports(a, mode) {
		_ = a.Close()
		return "", &ConfigError{Model: m.cfg.Name, Err: &engine.UnsupportedModeError{Mode: mode, Supported: a.Modes()}}
	}
	if err := a.Load(ctx); err != nil {
		_ = a.Close()
		return "", fmt.Errorf("%s: %w", m.cfg.Name, engine.NewLoadError(uri, err))
	}
	m.active.Store(&boundAdapter{Adapter: a})
	return uri, nil
}

// startWatch runs the resolver watch until Finalize cancels it.
func (m *Manager) startWatch() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.watchCancel, m.watchDone = cancel, done
	m.mu.Unlock()
	go func() {
		defer close(done)
		err := m.cfg.Resolver.Watch(ctx, m.cfg.ModelRef, m.cfg.ReloadInterval, m.Reload)
		if err != nil {
			m.log.Warn().Err(err).Msg("watch ended with error; hot reload disabled")
			return
		}
		m.log.Debug().Msg("watch ended")
	}()
}
