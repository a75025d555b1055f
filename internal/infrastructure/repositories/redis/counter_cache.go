package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKey = "streamlytics:real_time_metrics"
	queueKey    = "streamlytics:analytics_queue"
)

// RedisCounterCache implements the counter cache on Redis: atomic counters
// with TTL, the last metrics snapshot, and the ingestion queue.
type RedisCounterCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCounterCache(client *redis.Client) ports.CounterCache {
	return &RedisCounterCache{
		client: client,
		prefix: "streamlytics:counter:",
	}
}

func (c *RedisCounterCache) eventKey(eventType domain.EventType) string {
	return c.prefix + "event:" + string(eventType)
}

func (c *RedisCounterCache) userKey(userID string) string {
	return c.prefix + "user:" + userID
}

func (c *RedisCounterCache) IncrementEventCounter(ctx context.Context, eventType domain.EventType, ttl time.Duration) error {
	return c.incrementWithTTL(ctx, c.eventKey(eventType), ttl)
}

func (c *RedisCounterCache) IncrementUserCounter(ctx context.Context, userID string, ttl time.Duration) error {
	return c.incrementWithTTL(ctx, c.userKey(userID), ttl)
}

// incrementWithTTL bumps the counter and refreshes its expiry in one
// pipeline round trip. The key always keeps a bounded lifetime.
func (c *RedisCounterCache) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment counter %s: %w", key, err)
	}
	return nil
}

// GetEventCounter reads the current rolling counter for an event type.
func (c *RedisCounterCache) GetEventCounter(ctx context.Context, eventType domain.EventType) (int64, error) {
	val, err := c.client.Get(ctx, c.eventKey(eventType)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return val, nil
}

func (c *RedisCounterCache) SetSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

func (c *RedisCounterCache) GetSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey).Result()
	if err == redis.Nil {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}

	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (c *RedisCounterCache) EnqueueEvent(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := c.client.RPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

func (c *RedisCounterCache) DequeueEvent(ctx context.Context) (*domain.Event, error) {
	data, err := c.client.LPop(ctx, queueKey).Result()
	if err == redis.Nil {
		return nil, domain.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queued event: %w", err)
	}
	return &event, nil
}

func (c *RedisCounterCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCounterCache) Close() error {
	return CloseRedisClient(c.client)
}
