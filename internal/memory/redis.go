package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "modelgate:memory:"

// RedisStore keeps each session as a Redis list of JSON turns. Expiry is
// handled by key TTLs, so it does not implement Pruner.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// OpenRedis connects using a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string, ttl time.Duration, maxTurns int) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis memory backend requires redis_url")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(c, ttl, maxTurns), nil
}

// NewRedis wraps an existing client.
func NewRedis(c *redis.Client, ttl time.Duration, maxTurns int) *RedisStore {
	return &RedisStore{client: c, ttl: ttl, maxTurns: maxTurns}
}

func (s *RedisStore) Load(ctx context.Context, sessionID, modelVersion string) ([]Turn, error) {
	raw, err := s.client.LRange(ctx, redisPrefix+key(sessionID, modelVersion), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	out := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID, modelVersion string, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	k := redisPrefix + key(sessionID, modelVersion)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, k, b)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, k, int64(-s.maxTurns), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID, modelVersion string) error {
	return s.client.Del(ctx, redisPrefix+key(sessionID, modelVersion)).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
