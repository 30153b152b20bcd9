// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/secrets"
)

// EnvPrefix namespaces every variable, e.g. TRADELEDGER_ADDR.
const EnvPrefix = "TRADELEDGER"

const (
	RecalcModeInProcess = "inprocess"
	RecalcModeKafka     = "kafka"

	BlobBackendMemory     = "memory"
	BlobBackendFilesystem = "fs"
	BlobBackendGCS        = "gcs"
)

// Config is the full service configuration.
type Config struct {
	Addr          string `envconfig:"ADDR" default:":8080"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"tradeledger"`
	AdminToken    string `envconfig:"ADMIN_TOKEN"`
	// AdminTokenHash is a bcrypt hash of the admin token and wins over AdminToken.
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`
	// SystemActorID authors ledger entries written by the service itself.
	SystemActorID string `envconfig:"SYSTEM_ACTOR_ID" default:"00000000-0000-0000-0000-000000000001"`

	Database  DatabaseConfig  `envconfig:"DATABASE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Kafka     KafkaConfig     `envconfig:"KAFKA"`
	Blob      BlobConfig      `envconfig:"BLOB"`
	Recalc    RecalcConfig    `envconfig:"RECALC"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// DatabaseConfig selects Postgres when DSN is set; otherwise stores are in memory.
type DatabaseConfig struct {
	DSN          string        `envconfig:"DSN"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLife  time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig enables the distributed risk lock when URL is set.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	LockTTL      time.Duration `envconfig:"LOCK_TTL" default:"10s"`
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"BROKERS"`
	RecalcTopic   string   `envconfig:"RECALC_TOPIC" default:"risk.recalc"`
	DeadTopic     string   `envconfig:"DEAD_LETTER_TOPIC" default:"risk.recalc.dlq"`
	AuditTopic    string   `envconfig:"AUDIT_TOPIC" default:"audit.events"`
	ConsumerGroup string   `envconfig:"CONSUMER_GROUP" default:"tradeledger-recalc"`
	Partitions    int32    `envconfig:"PARTITIONS" default:"6"`
}

type BlobConfig struct {
	Backend         string `envconfig:"BACKEND" default:"memory"`
	Dir             string `envconfig:"DIR" default:"./data/blobs"`
	Bucket          string `envconfig:"BUCKET"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
}

type RecalcConfig struct {
	Mode        string        `envconfig:"MODE" default:"inprocess"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"5s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
}

// RateLimitConfig sizes the per-client token buckets on /api. A non-positive
// RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `envconfig:"RPS" default:"50"`
	Burst int     `envconfig:"BURST" default:"100"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if _, err := id.ParseUserID(c.SystemActorID); err != nil {
		return fmt.Errorf("invalid SYSTEM_ACTOR_ID: %w", err)
	}
	if c.AdminTokenHash != "" {
		if err := secrets.ValidateHash(c.AdminTokenHash); err != nil {
			return fmt.Errorf("invalid ADMIN_TOKEN_HASH: %w", err)
		}
	}
	switch c.Recalc.Mode {
	case RecalcModeInProcess:
	case RecalcModeKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("recalc mode %q requires KAFKA_BROKERS", c.Recalc.Mode)
		}
	default:
		return fmt.Errorf("unknown recalc mode %q", c.Recalc.Mode)
	}
	if c.Recalc.Timeout <= 0 {
		return fmt.Errorf("recalc timeout must be positive")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1")
	}
	if c.Recalc.MaxAttempts < 1 {
		return fmt.Errorf("recalc max attempts must be at least 1")
	}
	switch strings.ToLower(c.Blob.Backend) {
	case BlobBackendMemory, BlobBackendFilesystem:
	case BlobBackendGCS:
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob backend gcs requires BLOB_BUCKET")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	return nil
}

// SystemActor returns the parsed system actor id. Call after Validate.
func (c *Config) SystemActor() id.UserID {
	actor, _ := id.ParseUserID(c.SystemActorID)
	return actor
}
