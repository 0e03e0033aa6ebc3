package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultWindow   = time.Minute
	defaultAttempts = 20
)

// AttemptLimiter is a fixed-window counter backed by Redis.
// Key format: attempts:<scope>:<subject>:<window_start_unix>
type AttemptLimiter struct {
	client   *redis.Client
	attempts int64
	window   time.Duration
	now      func() time.Time
}

// NewAttemptLimiter allows up to attempts calls per window for each key.
// Non-positive values fall back to 20 per minute.
func NewAttemptLimiter(client *redis.Client, attempts int, window time.Duration) *AttemptLimiter {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &AttemptLimiter{client: client, attempts: int64(attempts), window: window, now: time.Now}
}

// Allow records one attempt for scope/subject and reports whether it is
// within the limit.
func (l *AttemptLimiter) Allow(ctx context.Context, scope, subject string) (bool, error) {
	key := l.key(scope, subject)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("attempt limiter: %w", err)
	}

	return incr.Val() <= l.attempts, nil
}

func (l *AttemptLimiter) key(scope, subject string) string {
	start := l.now().Truncate(l.window).Unix()
	return fmt.Sprintf("attempts:%s:%s:%d", scope, subject, start)
}
