package memory

import (
	"context"
	"sync"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
	"streamlytics/pkg/cache"
)

const defaultCounterTTL = 24 * time.Hour

// MemoryCounterCache is the in-process fallback used when Redis is
// unreachable. Same contract, no durability, TTL enforced by the
// backing cache.
type MemoryCounterCache struct {
	counters *cache.Cache

	mu sync.Mutex
	// counter increments are read-modify-write, serialized by mu
	snapshot       *domain.MetricsSnapshot
	snapshotExpiry time.Time
	queue          []*domain.Event
}

func NewMemoryCounterCache() ports.CounterCache {
	return &MemoryCounterCache{
		counters: cache.NewCache(defaultCounterTTL),
	}
}

func (c *MemoryCounterCache) IncrementEventCounter(ctx context.Context, eventType domain.EventType, ttl time.Duration) error {
	c.increment("event:"+string(eventType), ttl)
	return nil
}

func (c *MemoryCounterCache) IncrementUserCounter(ctx context.Context, userID string, ttl time.Duration) error {
	c.increment("user:"+userID, ttl)
	return nil
}

func (c *MemoryCounterCache) increment(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if v, ok := c.counters.Get(key); ok {
		current = v.(int64)
	}
	c.counters.SetWithTTL(key, current+1, ttl)
}

// GetEventCounter reads the current rolling counter for an event type.
func (c *MemoryCounterCache) GetEventCounter(ctx context.Context, eventType domain.EventType) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.counters.Get("event:" + string(eventType)); ok {
		return v.(int64), nil
	}
	return 0, nil
}

func (c *MemoryCounterCache) SetSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *snapshot
	c.snapshot = &copied
	c.snapshotExpiry = time.Now().Add(ttl)
	return nil
}

func (c *MemoryCounterCache) GetSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil || time.Now().After(c.snapshotExpiry) {
		return nil, domain.ErrSnapshotNotFound
	}
	copied := *c.snapshot
	return &copied, nil
}

func (c *MemoryCounterCache) EnqueueEvent(ctx context.Context, event *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, event)
	return nil
}

func (c *MemoryCounterCache) DequeueEvent(ctx context.Context) (*domain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	event := c.queue[0]
	c.queue = c.queue[1:]
	return event, nil
}

func (c *MemoryCounterCache) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryCounterCache) Close() error {
	c.counters.Stop()
	return nil
}
