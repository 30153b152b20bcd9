//go:build integration

package containers

import (
	"context"
	"sync"
	"testing"

	"tradeledger/internal/platform/postgres"
)

// Manager hands out one container per backend for the whole test binary.
// Containers are reaped by Ryuk when the process exits.
type Manager struct {
	pgOnce    sync.Once
	pg        *PostgresContainer
	redisOnce sync.Once
	redis     *RedisContainer
	kafkaOnce sync.Once
	kafka     *KafkaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns the shared Postgres container with the schema applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() {
		m.pg = NewPostgresContainer(t)
		if err := postgres.Migrate(context.Background(), m.pg.DB); err != nil {
			t.Fatalf("failed to migrate postgres: %v", err)
		}
	})
	if m.pg == nil {
		t.Fatal("postgres container unavailable")
	}
	return m.pg
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis = NewRedisContainer(t)
	})
	if m.redis == nil {
		t.Fatal("redis container unavailable")
	}
	return m.redis
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	m.kafkaOnce.Do(func() {
		m.kafka = NewKafkaContainer(t)
	})
	if m.kafka == nil {
		t.Fatal("kafka container unavailable")
	}
	return m.kafka
}
