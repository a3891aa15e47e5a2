// Package reflock serializes work on one payment reference across
// service instances. The database row lock stays the source of truth;
// this lock only turns racing webhook and poll completions into a fast,
// retryable conflict instead of a queue of blocked transactions.
package reflock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = apperr.RetryableConflict("payment is already being processed")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, namespace: namespace, ttl: ttl}
}

// Acquire takes the lock for key or fails with ErrHeld. When redis itself
// is unreachable the lock is skipped with a warning and the caller relies
// on the database lock alone.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	fullKey := l.namespace + ":" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		slog.WarnContext(ctx, "reference lock unavailable, continuing without it", "key", key, "error", err)

		return noopRelease, nil
	}

	if !ok {
		return nil, ErrHeld
	}

	released := false

	return func(ctx context.Context) error {
		if released {
			return nil
		}

		released = true

		err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w", key, err)
		}

		return nil
	}, nil
}

// Noop never contends. It is used when no redis is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) { return noopRelease, nil }

func noopRelease(context.Context) error { return nil }
