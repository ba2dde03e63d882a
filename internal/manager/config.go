package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelgate/internal/memory"
	"modelgate/internal/registry"
	"modelgate/internal/resolver"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultTimeout        = 120 * time.Second
	defaultReloadInterval = 30 * time.Second
	defaultMaxConcurrent  = 64
	defaultDrainGrace     = 10 * time.Second
	defaultTopK           = 4
	defaultStreamFormat   = FormatText

	// watchStopTimeout bounds how long Finalize waits for the watch task.
	watchStopTimeout = 5 * time.Second
)

// Config encapsulates everything a Manager needs. Callers translate the file
// configuration into this struct.
type Config struct {
	Name           string
	Adapter        string
	ModelRef       string
	EngineType     string
	TopK           int
	Timeout        time.Duration
	HotReload      bool
	ReloadInterval time.Duration
	MaxConcurrent  int
	DrainGrace     time.Duration
	StreamFormat   string
	AdapterOptions map[string]any

	Registry  *registry.Registry
	Resolver  resolver.Resolver
	Memory    memory.Store
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ReloadInterval <= 0 {
		c.ReloadInterval = defaultReloadInterval
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = defaultDrainGrace
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.StreamFormat == "" {
		c.StreamFormat = defaultStreamFormat
	}
	if c.EngineType == "" {
		c.EngineType = "chat"
	}
	if c.Registry == nil {
		c.Registry = registry.Default
	}
	if c.Resolver == nil {
		c.Resolver = resolver.Static{}
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
