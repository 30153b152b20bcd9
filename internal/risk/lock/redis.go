package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/sentinel"
)

const keyPrefix = "tradeledger:risk:lock:"

var acquireDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "tradeledger_risk_lock_acquire_seconds",
	Help:    "Time spent waiting for the distributed risk lock",
	Buckets: prometheus.DefBuckets,
})

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process using the same Redis instance.
// Each key is a SET NX entry with a TTL, so a crashed holder cannot block
// others for longer than the TTL.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	r := &Redis{client: client, ttl: ttl, retry: 25 * time.Millisecond, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock polls SET NX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	start := time.Now()
	defer func() { acquireDuration.Observe(time.Since(start).Seconds()) }()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultWait)
		defer cancel()
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := keyPrefix + key

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeStorage, "risk lock unavailable")
		}
		if ok {
			return r.unlocker(redisKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(errors.Join(sentinel.ErrLockHeld, ctx.Err()), dErrors.CodeTimeout, "timed out waiting for risk lock")
		case <-ticker.C:
		}
	}
}

func (r *Redis) unlocker(redisKey, token string) Unlock {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.logger.Warn("failed to release risk lock", "key", redisKey, "error", err)
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
