package services

import (
	"context"
	"sync"
	"time"

	"streamlytics/internal/core/domain"
)

// fakeStore is a configurable in-memory stand-in for the event repository.
type fakeStore struct {
	mu             sync.Mutex
	insertedEvents []*domain.Event
	insertErr      error

	activeUsers  int
	apiEvents    int
	errorEvents  int
	totalEvents  int
	toolsUsed    int
	revenueToday float64
	totalRevenue float64
	mrr          float64
	paymentCount int

	trends    []domain.TrendPoint
	topUsers  []domain.UserEventCount
	toolStats []domain.ToolStats
	toolInfo  *domain.ToolAnalytics

	queryErr error
}

func (s *fakeStore) InsertEvent(ctx context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.insertedEvents = append(s.insertedEvents, event)
	return nil
}

func (s *fakeStore) insertedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.insertedEvents)
}

func (s *fakeStore) InsertToolUsage(ctx context.Context, usage *domain.ToolUsage) error { return nil }
func (s *fakeStore) InsertPayment(ctx context.Context, payment *domain.Payment) error  { return nil }
func (s *fakeStore) InsertSubscription(ctx context.Context, sub *domain.SubscriptionRecord) error {
	return nil
}
func (s *fakeStore) InsertSystemMetrics(ctx context.Context, snapshot *domain.MetricsSnapshot) error {
	return nil
}

func (s *fakeStore) DistinctActiveUsers(ctx context.Context, since time.Time) (int, error) {
	return s.activeUsers, s.queryErr
}
func (s *fakeStore) CountEventsByCategory(ctx context.Context, since time.Time, category string) (int, error) {
	if category == "api" {
		return s.apiEvents, s.queryErr
	}
	return s.errorEvents, s.queryErr
}
func (s *fakeStore) CountEvents(ctx context.Context, since time.Time) (int, error) {
	return s.totalEvents, s.queryErr
}
func (s *fakeStore) CountToolUsage(ctx context.Context, since time.Time) (int, error) {
	return s.toolsUsed, s.queryErr
}
func (s *fakeStore) SumCompletedPayments(ctx context.Context, since time.Time) (float64, error) {
	return s.revenueToday, s.queryErr
}
func (s *fakeStore) SumAllCompletedPayments(ctx context.Context) (float64, error) {
	return s.totalRevenue, s.queryErr
}
func (s *fakeStore) CountCompletedPayments(ctx context.Context) (int, error) {
	return s.paymentCount, s.queryErr
}
func (s *fakeStore) SumActiveMonthlySubscriptions(ctx context.Context) (float64, error) {
	return s.mrr, s.queryErr
}

func (s *fakeStore) DailyEventTrends(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	return s.trends, s.queryErr
}
func (s *fakeStore) TopUsersByEvents(ctx context.Context, since time.Time, limit int) ([]domain.UserEventCount, error) {
	return s.topUsers, s.queryErr
}
func (s *fakeStore) ToolStats(ctx context.Context, since time.Time) ([]domain.ToolStats, error) {
	return s.toolStats, s.queryErr
}
func (s *fakeStore) ToolAnalytics(ctx context.Context, toolID string, since time.Time) (*domain.ToolAnalytics, error) {
	return s.toolInfo, s.queryErr
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }

// fakeCache tracks counter increments and holds one snapshot.
type fakeCache struct {
	mu         sync.Mutex
	eventIncrs map[domain.EventType]int
	userIncrs  map[string]int
	snapshot   *domain.MetricsSnapshot
	queue      []*domain.Event

	incrErr     error
	snapshotErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		eventIncrs: make(map[domain.EventType]int),
		userIncrs:  make(map[string]int),
	}
}

func (c *fakeCache) IncrementEventCounter(ctx context.Context, eventType domain.EventType, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return c.incrErr
	}
	c.eventIncrs[eventType]++
	return nil
}

func (c *fakeCache) IncrementUserCounter(ctx context.Context, userID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return c.incrErr
	}
	c.userIncrs[userID]++
	return nil
}

func (c *fakeCache) SetSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshotErr != nil {
		return c.snapshotErr
	}
	c.snapshot = snapshot
	return nil
}

func (c *fakeCache) GetSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshotErr != nil {
		return nil, c.snapshotErr
	}
	if c.snapshot == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return c.snapshot, nil
}

func (c *fakeCache) EnqueueEvent(ctx context.Context, event *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, event)
	return nil
}

func (c *fakeCache) DequeueEvent(ctx context.Context) (*domain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	event := c.queue[0]
	c.queue = c.queue[1:]
	return event, nil
}

func (c *fakeCache) Ping(ctx context.Context) error { return nil }
func (c *fakeCache) Close() error                   { return nil }

// fakeSampler returns fixed host readings.
type fakeSampler struct {
	cpu float64
	mem float64
	err error
}

func (s *fakeSampler) Sample(ctx context.Context) (float64, float64, error) {
	return s.cpu, s.mem, s.err
}
