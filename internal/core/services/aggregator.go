package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
	"streamlytics/pkg/tracing"

	"go.uber.org/zap"
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour

	errorRateThreshold = 5.0
	cpuUsageThreshold  = 80.0
)

// MetricsAggregator computes metrics snapshots from the event store. It is
// read-only with respect to store contents; the only non-deterministic inputs
// are the injected host sampler and the caller-supplied clock value.
type MetricsAggregator struct {
	store   ports.EventRepository
	sampler ports.HostSampler
	logger  *zap.SugaredLogger
}

func NewMetricsAggregator(store ports.EventRepository, sampler ports.HostSampler, logger *zap.SugaredLogger) *MetricsAggregator {
	return &MetricsAggregator{
		store:   store,
		sampler: sampler,
		logger:  logger,
	}
}

// ComputeSnapshot derives the full metrics snapshot at the given instant.
// Empty windows yield zero values, never an error.
func (a *MetricsAggregator) ComputeSnapshot(ctx context.Context, now time.Time) (*domain.MetricsSnapshot, error) {
	ctx, span := tracing.TraceAggregation(ctx)
	defer span.End()

	hourAgo := now.Add(-hourWindow)
	dayAgo := now.Add(-dayWindow)

	activeUsers, err := a.store.DistinctActiveUsers(ctx, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}

	apiCalls, err := a.store.CountEventsByCategory(ctx, hourAgo, "api")
	if err != nil {
		return nil, fmt.Errorf("failed to count api events: %w", err)
	}

	errorEvents, err := a.store.CountEventsByCategory(ctx, hourAgo, "error")
	if err != nil {
		return nil, fmt.Errorf("failed to count error events: %w", err)
	}

	totalEvents, err := a.store.CountEvents(ctx, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	toolsUsed, err := a.store.CountToolUsage(ctx, hourAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count tool usage: %w", err)
	}

	revenueToday, err := a.store.SumCompletedPayments(ctx, dayAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily revenue: %w", err)
	}

	totalRevenue, err := a.store.SumAllCompletedPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum total revenue: %w", err)
	}

	mrr, err := a.store.SumActiveMonthlySubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum subscriptions: %w", err)
	}

	errorRate := 0.0
	if totalEvents > 0 {
		errorRate = float64(errorEvents) / float64(totalEvents) * 100
	}

	cpuUsage, memUsage, err := a.sampler.Sample(ctx)
	if err != nil {
		// Host sampling failure degrades the snapshot, not the cycle.
		a.logger.Warnw("host sampling failed", "error", err)
		cpuUsage, memUsage = 0, 0
	}

	snapshot := &domain.MetricsSnapshot{
		Timestamp:           now,
		ActiveUsers:         activeUsers,
		APICallsPerMinute:   round2(float64(apiCalls) / 60),
		ErrorRate:           round2(errorRate),
		CPUUsage:            cpuUsage,
		MemoryUsage:         memUsage,
		ToolsUsedLastHour:   toolsUsed,
		RevenueToday:        round2(revenueToday),
		TotalRevenue:        round2(totalRevenue),
		MRR:                 round2(mrr),
		ARR:                 round2(mrr * 12),
		TotalEventsLastHour: totalEvents,
		SystemHealth:        healthOf(errorRate, cpuUsage),
	}

	return snapshot, nil
}

// healthOf is a pure function of error rate and CPU usage at computation time.
func healthOf(errorRate, cpuUsage float64) domain.SystemHealth {
	if errorRate < errorRateThreshold && cpuUsage < cpuUsageThreshold {
		return domain.HealthHealthy
	}
	return domain.HealthWarning
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
