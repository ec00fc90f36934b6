package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "insurely/pkg/domain-errors"
)

const redisLockKeyPrefix = "insurely:lock:"

// Deletes the key only while it still carries our token, so a holder whose TTL
// lapsed cannot release a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is the distributed Locker used when several instances share one
// Ledger Store. Locks expire after ttl so a crashed holder cannot wedge a key.
type RedisLocker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	backoff time.Duration
	logger  *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithRetryBackoff(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.backoff = d
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:  client,
		ttl:     ttl,
		backoff: 25 * time.Millisecond,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockKeyPrefix + key
	token := uuid.NewString()

	for {
		err := l.client.SetArgs(ctx, redisKey, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for lock")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire lock")
		}

		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for lock")
		case <-timer.C:
		}
	}

	return func() {
		// The caller's context may already be cancelled by the time it releases.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to release lock; it will expire",
				"key", key,
				"error", err,
			)
		}
	}, nil
}
