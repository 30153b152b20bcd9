//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a throwaway Redis used by the lock and app tests.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis and returns a pinged client. URL is in the
// redis://host:port form accepted by TRADELEDGER_REDIS_URL.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	fail := func(format string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		fail("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		fail("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		fail("ping redis: %v", err)
	}

	return &RedisContainer{Container: container, URL: url, Client: client}
}
