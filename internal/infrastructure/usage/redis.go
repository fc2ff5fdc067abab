package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces the monthly counters
	DefaultKeyPrefix = "pricelens:usage:ocr:"

	// counterTTL keeps a month's counter a little past the month's end
	counterTTL = 40 * 24 * time.Hour
)

// RedisTracker keeps one counter per month in redis so the quota survives restarts
type RedisTracker struct {
	client *redis.Client
	cfg    Config
	prefix string
	now    func() time.Time
}

// NewRedisTracker creates a redis-backed quota tracker
func NewRedisTracker(client *redis.Client, cfg Config, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisTracker{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: prefix,
		now:    time.Now,
	}
}

func (t *RedisTracker) key(month string) string {
	return t.prefix + month
}

// Status returns the quota for the current month
func (t *RedisTracker) Status(ctx context.Context) (*domain.UsageStatus, error) {
	month := t.cfg.monthOf(t.now())

	used, err := t.client.Get(ctx, t.key(month)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	return NewStatus(month, used, t.cfg.MonthlyLimit, t.cfg.WarnThreshold), nil
}

// Increment records one OCR call
func (t *RedisTracker) Increment(ctx context.Context) (*domain.UsageStatus, error) {
	month := t.cfg.monthOf(t.now())
	key := t.key(month)

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, counterTTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	return NewStatus(month, int(incr.Val()), t.cfg.MonthlyLimit, t.cfg.WarnThreshold), nil
}
