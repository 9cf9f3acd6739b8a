package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vouchercore/internal/fraud"
	"vouchercore/pkg/platform/sentinel"
)

// Redis key prefixes for per-customer history.
const (
	lastRedemptionKeyPrefix = "fraud:last:redemption:"
	lastLocationKeyPrefix   = "fraud:last:location:"
	locationWindowKeyPrefix = "fraud:window:location:"
)

// RedisStore keeps the rolling per-customer history the heuristics consult.
// All writes are plain SET/LPUSH: last-write-wins by design (§ concurrency
// model), since the engine consuming this history is advisory only.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed fraud history store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetLastRedemption(ctx context.Context, customerID string) (*fraud.LastRedemption, error) {
	var rec fraud.LastRedemption
	if err := s.getJSON(ctx, lastRedemptionKeyPrefix+customerID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) SetLastRedemption(ctx context.Context, customerID string, rec fraud.LastRedemption, ttl time.Duration) error {
	return s.setJSON(ctx, lastRedemptionKeyPrefix+customerID, rec, ttl)
}

func (s *RedisStore) GetLastLocation(ctx context.Context, customerID string) (*fraud.LastLocation, error) {
	var rec fraud.LastLocation
	if err := s.getJSON(ctx, lastLocationKeyPrefix+customerID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) SetLastLocation(ctx context.Context, customerID string, rec fraud.LastLocation, ttl time.Duration) error {
	return s.setJSON(ctx, lastLocationKeyPrefix+customerID, rec, ttl)
}

// GetLocationWindow returns the rolling window, most recent first. An absent
// key yields an empty window, not an error.
func (s *RedisStore) GetLocationWindow(ctx context.Context, customerID string) ([]fraud.Location, error) {
	raw, err := s.client.LRange(ctx, locationWindowKeyPrefix+customerID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get location window: %w", err)
	}
	window := make([]fraud.Location, 0, len(raw))
	for _, item := range raw {
		var loc fraud.Location
		if err := json.Unmarshal([]byte(item), &loc); err != nil {
			return nil, fmt.Errorf("decode location window entry: %w", err)
		}
		window = append(window, loc)
	}
	return window, nil
}

// AppendLocation pushes a location onto the rolling window, trims it to the
// window size, and refreshes the retention TTL in one pipeline.
func (s *RedisStore) AppendLocation(ctx context.Context, customerID string, loc fraud.Location, window int, ttl time.Duration) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}

	key := locationWindowKeyPrefix + customerID
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(window)-1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append location: %w", err)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dest any) error {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
