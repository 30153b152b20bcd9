package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, RecalcModeInProcess, cfg.Recalc.Mode)
	assert.Equal(t, 5*time.Second, cfg.Recalc.Timeout)
	assert.Equal(t, 3, cfg.Recalc.MaxAttempts)
	assert.Equal(t, BlobBackendMemory, cfg.Blob.Backend)
	assert.Equal(t, 50.0, cfg.RateLimit.RPS)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.False(t, cfg.SystemActor().IsNil())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRADELEDGER_ADDR", ":9090")
	t.Setenv("TRADELEDGER_RECALC_MODE", "kafka")
	t.Setenv("TRADELEDGER_RECALC_TIMEOUT", "2s")
	t.Setenv("TRADELEDGER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRADELEDGER_DATABASE_DSN", "postgres://localhost/trade")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, RecalcModeKafka, cfg.Recalc.Mode)
	assert.Equal(t, 2*time.Second, cfg.Recalc.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres://localhost/trade", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"kafka mode without brokers", map[string]string{"TRADELEDGER_RECALC_MODE": "kafka"}},
		{"unknown recalc mode", map[string]string{"TRADELEDGER_RECALC_MODE": "cron"}},
		{"bad system actor", map[string]string{"TRADELEDGER_SYSTEM_ACTOR_ID": "system"}},
		{"gcs without bucket", map[string]string{"TRADELEDGER_BLOB_BACKEND": "gcs"}},
		{"zero attempts", map[string]string{"TRADELEDGER_RECALC_MAX_ATTEMPTS": "0"}},
		{"zero burst", map[string]string{"TRADELEDGER_RATE_LIMIT_BURST": "0"}},
		{"plaintext admin token hash", map[string]string{"TRADELEDGER_ADMIN_TOKEN_HASH": "s3cret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
