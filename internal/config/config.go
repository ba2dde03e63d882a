// Package config loads the modelgate configuration file and translates it into
// the structs the runtime packages consume.
package config

import (
	"time"

	"modelgate/internal/memory"
)

// Config holds runtime parameters for the service.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway" toml:"gateway"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
	Memory  MemoryConfig  `json:"memory" yaml:"memory" toml:"memory"`
	Catalog CatalogConfig `json:"catalog" yaml:"catalog" toml:"catalog"`
	Models  []ModelConfig `json:"models" yaml:"models" toml:"models"`
}

type ServerConfig struct {
	HTTPAddr               string `json:"http_addr" yaml:"http_addr" toml:"http_addr"`
	GRPCAddr               string `json:"grpc_addr" yaml:"grpc_addr" toml:"grpc_addr"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	MaxBodyBytes           int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

type GatewayConfig struct {
	Addr             string   `json:"addr" yaml:"addr" toml:"addr"`
	Backend          string   `json:"backend" yaml:"backend" toml:"backend"`
	HeartbeatSeconds int      `json:"heartbeat_seconds" yaml:"heartbeat_seconds" toml:"heartbeat_seconds"`
	ReadWaitMS       int      `json:"read_wait_ms" yaml:"read_wait_ms" toml:"read_wait_ms"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // json | console
}

type MemoryConfig struct {
	Backend        string `json:"backend" yaml:"backend" toml:"backend"`
	Path           string `json:"path" yaml:"path" toml:"path"`
	Driver         string `json:"driver" yaml:"driver" toml:"driver"`
	RedisURL       string `json:"redis_url" yaml:"redis_url" toml:"redis_url"`
	TTLSeconds     int    `json:"ttl_seconds" yaml:"ttl_seconds" toml:"ttl_seconds"`
	MaxTurns       int    `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	PruneSchedule  string `json:"prune_schedule" yaml:"prune_schedule" toml:"prune_schedule"`
	RetentionHours int    `json:"retention_hours" yaml:"retention_hours" toml:"retention_hours"`
}

// CatalogConfig points alias resolvers at a model catalog. Path wins over URL.
type CatalogConfig struct {
	Path  string `json:"path" yaml:"path" toml:"path"`
	URL   string `json:"url" yaml:"url" toml:"url"`
	Token string `json:"token" yaml:"token" toml:"token"`
}

// ModelConfig defines one runtime.
type ModelConfig struct {
	Name                     string         `json:"name" yaml:"name" toml:"name"`
	Adapter                  string         `json:"adapter" yaml:"adapter" toml:"adapter"`
	ModelRef                 string         `json:"model_ref" yaml:"model_ref" toml:"model_ref"`
	Resolver                 string         `json:"resolver" yaml:"resolver" toml:"resolver"`
	EngineType               string         `json:"engine_type" yaml:"engine_type" toml:"engine_type"`
	TopK                     int            `json:"top_k" yaml:"top_k" toml:"top_k"`
	TimeoutSeconds           int            `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	HotReload                *bool          `json:"hot_reload" yaml:"hot_reload" toml:"hot_reload"`
	HotReloadIntervalSeconds int            `json:"hot_reload_interval_seconds" yaml:"hot_reload_interval_seconds" toml:"hot_reload_interval_seconds"`
	MaxConcurrentStreams     int            `json:"max_concurrent_streams" yaml:"max_concurrent_streams" toml:"max_concurrent_streams"`
	DrainSeconds             int            `json:"drain_seconds" yaml:"drain_seconds" toml:"drain_seconds"`
	StreamFormat             string         `json:"stream_format" yaml:"stream_format" toml:"stream_format"`
	AdapterOptions           map[string]any `json:"adapter_options" yaml:"adapter_options" toml:"adapter_options"`
}

// Defaults
const (
	DefaultHTTPAddr         = ":8080"
	DefaultGRPCAddr         = ":9090"
	DefaultShutdownTimeout  = 5
	DefaultGatewayAddr      = ":8000"
	DefaultGatewayBackend   = "localhost:9090"
	DefaultHeartbeatSeconds = 10
	DefaultReadWaitMS       = 1000
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMemoryBackend    = "inproc"
	DefaultMaxTurns         = 50
	DefaultPruneSchedule    = "@hourly"
	DefaultRetentionHours   = 168

	DefaultAdapter        = "echo"
	DefaultResolver       = "static"
	DefaultEngineType     = "chat"
	DefaultTopK           = 4
	DefaultTimeoutSeconds = 120
	DefaultReloadInterval = 30
	DefaultMaxConcurrent  = 64
	DefaultDrainSeconds   = 10
	DefaultStreamFormat   = "text"
)

// ApplyDefaults fills every unspecified field.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = DefaultGRPCAddr
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeout
	}
	if c.Gateway.Addr == "" {
		c.Gateway.Addr = DefaultGatewayAddr
	}
	if c.Gateway.Backend == "" {
		c.Gateway.Backend = DefaultGatewayBackend
	}
	if c.Gateway.HeartbeatSeconds <= 0 {
		c.Gateway.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	if c.Gateway.ReadWaitMS <= 0 {
		c.Gateway.ReadWaitMS = DefaultReadWaitMS
	}
	if len(c.Gateway.CORSOrigins) == 0 {
		c.Gateway.CORSOrigins = []string{"*"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Memory.Backend == "" {
		c.Memory.Backend = DefaultMemoryBackend
	}
	if c.Memory.MaxTurns <= 0 {
		c.Memory.MaxTurns = DefaultMaxTurns
	}
	if c.Memory.PruneSchedule == "" {
		c.Memory.PruneSchedule = DefaultPruneSchedule
	}
	if c.Memory.RetentionHours <= 0 {
		c.Memory.RetentionHours = DefaultRetentionHours
	}
	for i := range c.Models {
		c.Models[i].applyDefaults()
	}
}

func (m *ModelConfig) applyDefaults() {
	if m.Adapter == "" {
		m.Adapter = DefaultAdapter
	}
	if m.Resolver == "" {
		m.Resolver = DefaultResolver
	}
	if m.EngineType == "" {
		m.EngineType = DefaultEngineType
	}
	if m.TopK == 0 {
		m.TopK = DefaultTopK
	}
	if m.TimeoutSeconds == 0 {
		m.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if m.HotReload == nil {
		on := true
		m.HotReload = &on
	}
	if m.HotReloadIntervalSeconds == 0 {
		m.HotReloadIntervalSeconds = DefaultReloadInterval
	}
	if m.MaxConcurrentStreams == 0 {
		m.MaxConcurrentStreams = DefaultMaxConcurrent
	}
	if m.DrainSeconds == 0 {
		m.DrainSeconds = DefaultDrainSeconds
	}
	if m.StreamFormat == "" {
		m.StreamFormat = DefaultStreamFormat
	}
}

// HotReloadEnabled reports the effective hot_reload flag.
func (m ModelConfig) HotReloadEnabled() bool { return m.HotReload == nil || *m.HotReload }

// MemoryOptions converts the memory section for memory.Open.
func (c Config) MemoryOptions() memory.Config {
	return memory.Config{
		Backend:       c.Memory.Backend,
		Path:          c.Memory.Path,
		Driver:        c.Memory.Driver,
		RedisURL:      c.Memory.RedisURL,
		TTL:           seconds(c.Memory.TTLSeconds),
		MaxTurns:      c.Memory.MaxTurns,
		PruneSchedule: c.Memory.PruneSchedule,
		Retention:     time.Duration(c.Memory.RetentionHours) * time.Hour,
	}
}

// LongestDrain is the largest drain grace across all models.
func (c Config) LongestDrain() time.Duration {
	var d time.Duration
	for _, m := range c.Models {
		if g := seconds(m.DrainSeconds); g > d {
			d = g
		}
	}
	return d
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
