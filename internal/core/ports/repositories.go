package ports

import (
	"context"
	"time"

	"streamlytics/internal/core/domain"
)

// EventRepository is the durable append-only event store plus the aggregate
// queries the metrics pipeline needs.
type EventRepository interface {
	InsertEvent(ctx context.Context, event *domain.Event) error
	InsertToolUsage(ctx context.Context, usage *domain.ToolUsage) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
	InsertSubscription(ctx context.Context, sub *domain.SubscriptionRecord) error
	InsertSystemMetrics(ctx context.Context, snapshot *domain.MetricsSnapshot) error

	// Windowed aggregates for snapshot computation. All return 0 on empty
	// windows, never an error for emptiness.
	DistinctActiveUsers(ctx context.Context, since time.Time) (int, error)
	CountEventsByCategory(ctx context.Context, since time.Time, category string) (int, error)
	CountEvents(ctx context.Context, since time.Time) (int, error)
	CountToolUsage(ctx context.Context, since time.Time) (int, error)
	SumCompletedPayments(ctx context.Context, since time.Time) (float64, error)
	SumAllCompletedPayments(ctx context.Context) (float64, error)
	CountCompletedPayments(ctx context.Context) (int, error)
	SumActiveMonthlySubscriptions(ctx context.Context) (float64, error)

	// Dashboard queries.
	DailyEventTrends(ctx context.Context, since time.Time) ([]domain.TrendPoint, error)
	TopUsersByEvents(ctx context.Context, since time.Time, limit int) ([]domain.UserEventCount, error)
	ToolStats(ctx context.Context, since time.Time) ([]domain.ToolStats, error)
	ToolAnalytics(ctx context.Context, toolID string, since time.Time) (*domain.ToolAnalytics, error)

	Ping(ctx context.Context) error
	Close() error
}

// CounterCache is the short-lived key-value collaborator: rolling counters
// with TTL, the last metrics snapshot, and the ingestion queue.
type CounterCache interface {
	IncrementEventCounter(ctx context.Context, eventType domain.EventType, ttl time.Duration) error
	IncrementUserCounter(ctx context.Context, userID string, ttl time.Duration) error

	SetSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot, ttl time.Duration) error
	GetSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error)

	EnqueueEvent(ctx context.Context, event *domain.Event) error
	DequeueEvent(ctx context.Context) (*domain.Event, error)

	Ping(ctx context.Context) error
	Close() error
}
