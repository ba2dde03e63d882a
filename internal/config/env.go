package config

import (
	"fmt"
	"strconv"
)

// Environment variables that override file settings.
const (
	EnvHTTPAddr  = "MODELGATE_HTTP_ADDR"
	EnvGRPCAddr  = "MODELGATE_GRPC_ADDR"
	EnvLogLevel  = "MODELGATE_LOG_LEVEL"
	EnvBackend   = "GATEWAY_BACKEND"
	EnvHeartbeat = "HEARTBEAT_SEC"
)

// ApplyEnv overrides file settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := getenv(EnvHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := getenv(EnvGRPCAddr); v != "" {
		c.Server.GRPCAddr = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvBackend); v != "" {
		c.Gateway.Backend = v
	}
	if v := getenv(EnvHeartbeat); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive integer, got %q", EnvHeartbeat, v)
		}
		c.Gateway.HeartbeatSeconds = n
	}
	return nil
}
