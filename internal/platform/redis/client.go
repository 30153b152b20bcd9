// Package redis opens the shared Redis connection used for distributed locks.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"tradeledger/internal/platform/config"
)

// Open connects and pings Redis. It returns a nil client when no URL is set.
func Open(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// HealthCheck reports whether client still answers PING.
func HealthCheck(client goredis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
