// Package cache keeps read-through copies of feed pages and single posts in Redis.
// Every caller tolerates a missing client: the store stays the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snapfeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Cache reads must not stall a feed request for long; a slow lookup is treated
// as a miss by Aside.
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = 300 * time.Millisecond
)

var client *redis.Client

type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(err, cmd.Name())
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError(err, "pipeline")
		return err
	}
}

// countError skips misses and requests the caller abandoned.
func countError(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return
	}
	middleware.RedisErrors.WithLabelValues(op).Inc()
}

// parseOptions accepts either a redis:// URL or a bare host:port.
func parseOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty address")
	}
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	return opts, nil
}

// InitRedis connects the shared client. When Redis is unreachable the client
// stays nil and the application runs uncached.
func InitRedis(addr string) {
	opts, err := parseOptions(addr)
	if err != nil {
		middleware.Logger.Warn("Cache disabled", "error", err)
		client = nil
		return
	}

	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Cache unreachable, continuing without it", "addr", opts.Addr, "error", err)
		_ = c.Close()
		client = nil
		return
	}
	client = c
	middleware.Logger.Info("Cache connected", "addr", opts.Addr, "db", opts.DB)
}

// GetClient returns the shared client, or nil when running uncached.
func GetClient() *redis.Client {
	return client
}

// Close releases the client. Later calls run without a cache.
func Close() {
	if client != nil {
		_ = client.Close()
		client = nil
	}
}
