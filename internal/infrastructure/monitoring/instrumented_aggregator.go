package monitoring

import (
	"context"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
)

// InstrumentedAggregator wraps an Aggregator and records snapshot
// computation latency.
type InstrumentedAggregator struct {
	inner   ports.Aggregator
	metrics *PrometheusCollector
}

func NewInstrumentedAggregator(inner ports.Aggregator, metrics *PrometheusCollector) *InstrumentedAggregator {
	return &InstrumentedAggregator{inner: inner, metrics: metrics}
}

func (a *InstrumentedAggregator) ComputeSnapshot(ctx context.Context, now time.Time) (*domain.MetricsSnapshot, error) {
	start := time.Now()
	snapshot, err := a.inner.ComputeSnapshot(ctx, now)
	a.metrics.RecordSnapshotComputation(time.Since(start))
	return snapshot, err
}

var _ ports.Aggregator = (*InstrumentedAggregator)(nil)
