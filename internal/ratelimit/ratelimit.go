// Package ratelimit enforces the per-user daily intake quota.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Limiter decides whether a user may make another intake call today.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// RedisDailyLimiter counts calls per user per UTC day in a redis key that
// expires two days later.
type RedisDailyLimiter struct {
	rdb   *goredis.Client
	limit int
	now   func() time.Time
}

func NewRedisDailyLimiter(ctx context.Context, redisURL string, limit int) (*RedisDailyLimiter, error) {
	opts, err := goredis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisDailyLimiter(rdb, limit), nil
}

func newRedisDailyLimiter(rdb *goredis.Client, limit int) *RedisDailyLimiter {
	return &RedisDailyLimiter{rdb: rdb, limit: limit, now: time.Now}
}

func (l *RedisDailyLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	key := dailyKey(userID, l.now())
	var incr *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 48*time.Hour)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *RedisDailyLimiter) Close() error {
	return l.rdb.Close()
}

func dailyKey(userID string, now time.Time) string {
	return fmt.Sprintf("cheerpup:intake:%s:%s", userID, now.UTC().Format("2006-01-02"))
}
