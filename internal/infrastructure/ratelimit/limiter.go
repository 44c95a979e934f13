package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	defaultKeyPrefix = "ethcrawler:explorer:calls"
	defaultWindow    = time.Second
)

type Config struct {
	// Addr selects the shared Redis limiter; empty keeps limiting in-process.
	Addr string
	// Limit is the number of explorer calls allowed per Window. Zero disables
	// limiting.
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// Limiter is satisfied by both *RedisLimiter and *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

// New returns the limiter selected by cfg, or nil when limiting is disabled.
// The returned close function is never nil.
func New(cfg Config) (Limiter, func() error, error) {
	noClose := func() error { return nil }
	if cfg.Limit <= 0 {
		return nil, noClose, nil
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		every := cfg.Window / time.Duration(cfg.Limit)
		return rate.NewLimiter(rate.Every(every), cfg.Limit), noClose, nil
	}
	limiter, err := NewRedisLimiter(cfg)
	if err != nil {
		return nil, noClose, err
	}
	return limiter, limiter.Close, nil
}

// RedisLimiter is a fixed-window counter shared by every process that points
// at the same Redis and key prefix.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(cfg Config) (*RedisLimiter, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(cfg.Limit),
		window: cfg.Window,
		prefix: cfg.KeyPrefix,
		now:    time.Now,
	}, nil
}

// Wait takes one slot in the current window, sleeping into the next window
// while the current one is exhausted.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		now := l.now()
		start := now.Truncate(l.window)
		key := windowKey(l.prefix, start)

		pipe := l.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*l.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		if incr.Val() <= l.limit {
			return nil
		}

		timer := time.NewTimer(start.Add(l.window).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func windowKey(prefix string, start time.Time) string {
	return fmt.Sprintf("%s:%d", prefix, start.UnixMilli())
}
