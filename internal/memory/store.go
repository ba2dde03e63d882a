// Package memory stores conversation turns for chat engines. Turns are keyed
// by session and model version so a hot reload starts a fresh history.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Turn is one message in a session.
type Turn struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store is the memory collaborator consulted by adapters.
type Store interface {
	Load(ctx context.Context, sessionID, modelVersion string) ([]Turn, error)
	Append(ctx context.Context, sessionID, modelVersion string, t Turn) error
	Clear(ctx context.Context, sessionID, modelVersion string) error
	Close() error
}

// Pruner is implemented by stores that need periodic removal of old turns.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// Config selects and tunes a backend.
type Config struct {
	Backend       string // inproc | sqlite | redis | none
	Path          string
	Driver        string // sqlite (pure Go) | sqlite3 (cgo)
	RedisURL      string
	TTL           time.Duration
	MaxTurns      int
	PruneSchedule string
	Retention     time.Duration
	Logger        zerolog.Logger
}

// Open builds the configured store. Backend "none" returns a nil Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "inproc", "memory":
		return NewInProc(cfg.MaxTurns), nil
	case "none":
		return nil, nil
	case "sqlite":
		s, err := OpenSQL(ctx, cfg.Driver, cfg.Path, cfg.MaxTurns)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := OpenRedis(ctx, cfg.RedisURL, cfg.TTL, cfg.MaxTurns)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

func key(sessionID, modelVersion string) string {
	return sessionID + "|" + modelVersion
}
