package seen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "catwatch:seen:"
	defaultTTL = 90 * 24 * time.Hour

	pingTimeout = 5 * time.Second
)

// Redis implements Store backed by one Redis set per fingerprint key.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect creates a Redis client and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedis creates a Store on an established client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, ttl: defaultTTL}
}

// IsNew reports whether id is absent from the set named by key.
func (r *Redis) IsNew(ctx context.Context, key, id string) (bool, error) {
	member, err := r.client.SIsMember(ctx, setKey(key), id).Result()
	if err != nil {
		return false, fmt.Errorf("check seen %s: %w", id, err)
	}
	return !member, nil
}

// Commit adds all ids to the set in one pipelined batch, then resets the
// sliding expiration on the whole set. IDs are never removed except by
// expiration.
func (r *Redis) Commit(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, setKey(key), members...)
	pipe.Expire(ctx, setKey(key), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("commit %d ids: %w", len(ids), err)
	}
	return nil
}

func setKey(key string) string {
	return keyPrefix + key
}
