package ports

import (
	"context"
	"time"

	"streamlytics/internal/core/domain"
)

// Aggregator computes a full metrics snapshot from the event store.
type Aggregator interface {
	ComputeSnapshot(ctx context.Context, now time.Time) (*domain.MetricsSnapshot, error)
}

// Processor runs the fail-soft ingestion pipeline for a single event.
type Processor interface {
	Process(ctx context.Context, event *domain.Event) *domain.ProcessingResult
	BufferSize() int
}

// DashboardService answers aggregate dashboard queries.
type DashboardService interface {
	Dashboard(ctx context.Context) (*domain.DashboardSnapshot, error)
	ToolAnalytics(ctx context.Context, toolID string) (*domain.ToolAnalytics, error)
	RevenueSummary(ctx context.Context) (*domain.RevenueSummary, error)
}

// Broadcaster fans a message out to live subscribers. Scope "" means all
// subscribers; excludeID skips the originating connection.
type Broadcaster interface {
	Broadcast(scope string, message interface{}, excludeID string)
	SubscriberCount() int
}

// HostSampler reads host CPU and memory utilization. Non-deterministic in
// production; injected so snapshot computation is testable.
type HostSampler interface {
	Sample(ctx context.Context) (cpuPercent, memPercent float64, err error)
}
