package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

// DefaultRedisKey holds the session collection when no key is configured.
const DefaultRedisKey = "tabkeeper:windows"

// RedisStore persists the session collection as one JSON value in Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	log    pslog.Logger
}

// NewRedisStore creates a Redis-backed store under key.
func NewRedisStore(client *redis.Client, key string, logger pslog.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	if logger != nil {
		logger = logger.With("redis_key", key)
	}
	return &RedisStore{client: client, key: key, log: logger}, nil
}

// Load reads the session collection; a missing key yields an empty collection.
func (r *RedisStore) Load(ctx context.Context) ([]schema.Session, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		if r.log != nil {
			r.log.Debug("store load miss")
		}
		return []schema.Session{}, nil
	}
	if err != nil {
		if r.log != nil {
			r.log.Warn("store load failed", "err", err)
		}
		return nil, err
	}
	sessions, err := decodeSessions(val)
	if err != nil {
		if r.log != nil {
			r.log.Warn("store load failed", "err", err)
		}
		return nil, fmt.Errorf("redis store: failed to unmarshal: %w", err)
	}
	if r.log != nil {
		r.log.Debug("store load ok", "sessions", len(sessions))
	}
	return sessions, nil
}

// Save replaces the stored value.
func (r *RedisStore) Save(ctx context.Context, sessions []schema.Session) error {
	data, err := encodeSessions(sessions, false)
	if err != nil {
		return fmt.Errorf("redis store: failed to marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		if r.log != nil {
			r.log.Warn("store save failed", "err", err)
		}
		return err
	}
	if r.log != nil {
		r.log.Trace("store save ok", "sessions", len(sessions))
	}
	return nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
