package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL       = 30 * time.Second
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker serializes cascade decisions across replicas using SET NX EX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (r *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := r.prefix + ":" + key
	token := uuid.New().String()

	if err := r.acquire(ctx, lockKey, token); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, _ = releaseScript.Run(releaseCtx, r.client, []string{lockKey}, token).Result()
	}()

	return fn(ctx)
}

func (r *RedisLocker) acquire(ctx context.Context, lockKey, token string) error {
	for {
		acquired, err := r.client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
		}

		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), fmt.Errorf("waiting for lock %s", lockKey))
		case <-time.After(retryInterval):
		}
	}
}
