package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tier is the ephemeral, session-scoped persistence tier. Entries carry a
// TTL so abandoned sessions age out on their own — the analog of
// sessionStorage in the browser client this replaces.
type Tier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTier wraps client as a state tier with the given entry TTL.
func NewTier(client *redis.Client, ttl time.Duration) *Tier {
	return &Tier{client: client, ttl: ttl}
}

// Get returns the value for key and whether it was present.
func (t *Tier) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := t.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the tier's TTL.
func (t *Tier) Set(ctx context.Context, key, value string) error {
	if err := t.client.Set(ctx, key, value, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (t *Tier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := t.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
