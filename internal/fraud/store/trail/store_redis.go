package trail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vouchercore/internal/fraud"
)

// Redis key layout for the three audit trails.
const (
	customerTrailKeyPrefix = "fraud:trail:customer:"
	providerTrailKeyPrefix = "fraud:trail:provider:"
	highRiskTrailKey       = "fraud:trail:highrisk"
)

// RedisStore keeps capped, TTL-bound audit trails as Redis lists, most recent
// entry first. Callers treat writes as best-effort.
type RedisStore struct {
	client     *redis.Client
	maxEntries int
	ttl        time.Duration
}

// NewRedisStore constructs a Redis-backed trail store. maxEntries bounds each
// trail to its most recent entries; ttl is the retention period refreshed on
// every write.
func NewRedisStore(client *redis.Client, maxEntries int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxEntries: maxEntries, ttl: ttl}
}

func (s *RedisStore) AppendCustomer(ctx context.Context, customerID string, entry fraud.TrailEntry) error {
	return s.append(ctx, customerTrailKeyPrefix+customerID, entry)
}

func (s *RedisStore) AppendProvider(ctx context.Context, providerID string, entry fraud.TrailEntry) error {
	return s.append(ctx, providerTrailKeyPrefix+providerID, entry)
}

func (s *RedisStore) AppendHighRisk(ctx context.Context, entry fraud.TrailEntry) error {
	return s.append(ctx, highRiskTrailKey, entry)
}

// Recent returns up to limit entries from a customer trail, most recent
// first. Used by administrative surfaces to inspect flagged activity.
func (s *RedisStore) Recent(ctx context.Context, customerID string, limit int) ([]fraud.TrailEntry, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}
	raw, err := s.client.LRange(ctx, customerTrailKeyPrefix+customerID, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read customer trail: %w", err)
	}
	entries := make([]fraud.TrailEntry, 0, len(raw))
	for _, item := range raw {
		var entry fraud.TrailEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode trail entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) append(ctx context.Context, key string, entry fraud.TrailEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode trail entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.maxEntries)-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append trail entry: %w", err)
	}
	return nil
}
