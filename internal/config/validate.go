package config

import (
	"errors"
	"fmt"
	"strings"

	"modelgate/internal/engine"
	"modelgate/internal/manager"
	"modelgate/internal/resolver"
)

// Validate checks every section and returns all violations joined.
// Call after ApplyDefaults.
func (c Config) Validate() error {
	var errs []error
	if c.Server.HTTPAddr == c.Server.GRPCAddr {
		errs = append(errs, fmt.Errorf("server: http_addr and grpc_addr are both %q", c.Server.HTTPAddr))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q (want json or console)", c.Logging.Format))
	}
	switch strings.ToLower(c.Memory.Backend) {
	case "inproc", "memory", "none":
	case "sqlite":
		if c.Memory.Path == "" {
			errs = append(errs, errors.New("memory: sqlite backend needs path"))
		}
	case "redis":
		if c.Memory.RedisURL == "" {
			errs = append(errs, errors.New("memory: redis backend needs redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("memory: unknown backend %q", c.Memory.Backend))
	}
	if len(c.Models) == 0 {
		errs = append(errs, errors.New("models: at least one model is required"))
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name != "" && seen[m.Name] {
			errs = append(errs, fmt.Errorf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
		}
		if isAlias(m.Resolver) && c.Catalog.Path == "" && c.Catalog.URL == "" {
			errs = append(errs, fmt.Errorf("%s: resolver %q needs catalog.path or catalog.url", m.label(i), m.Resolver))
		}
	}
	return errors.Join(errs...)
}

// Validate checks one model definition against its bounds.
func (m ModelConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{m.label(-1)}, args...)...))
	}
	if strings.TrimSpace(m.Name) == "" {
		add("name is required")
	}
	if strings.TrimSpace(m.ModelRef) == "" {
		add("model_ref is required")
	}
	if _, err := engine.ParseMode(m.EngineType); err != nil {
		add("%v", err)
	}
	if _, err := manager.ParseStreamFormat(m.StreamFormat); err != nil {
		add("%v", err)
	}
	if !knownResolver(m.Resolver) {
		add("unknown resolver %q (known: %s)", m.Resolver, strings.Join(resolver.Kinds(), ", "))
	}
	bound := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			add("%s %d out of range [%d, %d]", field, v, lo, hi)
		}
	}
	bound("top_k", m.TopK, 1, 100)
	bound("timeout_seconds", m.TimeoutSeconds, 1, 900)
	bound("hot_reload_interval_seconds", m.HotReloadIntervalSeconds, 5, 600)
	bound("max_concurrent_streams", m.MaxConcurrentStreams, 1, 10000)
	bound("drain_seconds", m.DrainSeconds, 1, 300)
	return errors.Join(errs...)
}

func (m ModelConfig) label(i int) string {
	if m.Name != "" {
		return "models." + m.Name
	}
	return fmt.Sprintf("models[%d]", i)
}

func knownResolver(kind string) bool {
	k := strings.ToLower(strings.TrimSpace(kind))
	for _, known := range resolver.Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

func isAlias(kind string) bool {
	k := strings.ToLower(strings.TrimSpace(kind))
	return k == "alias" || k == "uc_alias"
}
