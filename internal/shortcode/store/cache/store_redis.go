package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"vouchercore/internal/shortcode"
	"vouchercore/pkg/platform/sentinel"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchercore_shortcode_cache_lookups_total",
		Help: "Short code cache lookups by outcome",
	}, []string{"outcome"})
)

const (
	// Redis key prefix for short code records
	codeKeyPrefix = "sc:code:"
)

// RedisStore is the Redis-backed short code cache. Dynamic codes live only
// here; static codes are cached here without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed short code cache.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get fetches a record by code. Returns sentinel.ErrNotFound when the key is
// absent (never cached, evicted, or TTL-expired server-side).
func (s *RedisStore) Get(ctx context.Context, code string) (*shortcode.Record, error) {
	payload, err := s.client.Get(ctx, codeKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		lookupsTotal.WithLabelValues("miss").Inc()
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("get short code: %w", err)
	}

	var record shortcode.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode short code record: %w", err)
	}
	lookupsTotal.WithLabelValues("hit").Inc()
	return &record, nil
}

// Set stores a record under its code. ttl <= 0 stores without expiry.
func (s *RedisStore) Set(ctx context.Context, record *shortcode.Record, ttl time.Duration) error {
	if record == nil || record.Code == "" {
		return fmt.Errorf("record with code is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode short code record: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, codeKeyPrefix+record.Code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set short code: %w", err)
	}
	return nil
}

// Delete removes the cache entry for a code. Deleting an absent key is not an
// error.
func (s *RedisStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, codeKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("delete short code: %w", err)
	}
	return nil
}
