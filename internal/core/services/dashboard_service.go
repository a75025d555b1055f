package services

import (
	"context"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"

	"go.uber.org/zap"
)

const dashboardWindow = 30 * 24 * time.Hour

// AnalyticsDashboard assembles dashboard and revenue queries from the event
// store, preferring the cached snapshot for the real-time section and
// recomputing only on a cache miss.
type AnalyticsDashboard struct {
	store      ports.EventRepository
	cache      ports.CounterCache
	aggregator ports.Aggregator
	logger     *zap.SugaredLogger
}

func NewAnalyticsDashboard(store ports.EventRepository, cache ports.CounterCache, aggregator ports.Aggregator, logger *zap.SugaredLogger) *AnalyticsDashboard {
	return &AnalyticsDashboard{
		store:      store,
		cache:      cache,
		aggregator: aggregator,
		logger:     logger,
	}
}

func (d *AnalyticsDashboard) Dashboard(ctx context.Context) (*domain.DashboardSnapshot, error) {
	now := time.Now()
	since := now.Add(-dashboardWindow)

	snapshot := d.currentSnapshot(ctx, now)

	totalEvents, err := d.store.CountEvents(ctx, since)
	if err != nil {
		return nil, err
	}
	totalUsers, err := d.store.DistinctActiveUsers(ctx, since)
	if err != nil {
		return nil, err
	}
	totalToolUsage, err := d.store.CountToolUsage(ctx, since)
	if err != nil {
		return nil, err
	}

	toolStats, err := d.store.ToolStats(ctx, since)
	if err != nil {
		return nil, err
	}
	trends, err := d.store.DailyEventTrends(ctx, since)
	if err != nil {
		return nil, err
	}
	topUsers, err := d.store.TopUsersByEvents(ctx, since, 5)
	if err != nil {
		return nil, err
	}

	activity := domain.UserActivity{
		TotalUsers:      totalUsers,
		MostActiveUsers: topUsers,
	}
	if totalUsers > 0 {
		activity.AvgEventsPerUser = round2(float64(totalEvents) / float64(totalUsers))
	}

	health := domain.HealthHealthy
	if snapshot != nil {
		health = snapshot.SystemHealth
	}

	return &domain.DashboardSnapshot{
		RealTimeMetrics: snapshot,
		Summary: domain.DashboardSummary{
			TotalUsers:     totalUsers,
			TotalEvents:    totalEvents,
			TotalToolUsage: totalToolUsage,
		},
		ToolStats:    toolStats,
		DailyTrends:  trends,
		UserActivity: activity,
		SystemHealth: health,
	}, nil
}

func (d *AnalyticsDashboard) ToolAnalytics(ctx context.Context, toolID string) (*domain.ToolAnalytics, error) {
	since := time.Now().Add(-dashboardWindow)
	return d.store.ToolAnalytics(ctx, toolID, since)
}

func (d *AnalyticsDashboard) RevenueSummary(ctx context.Context) (*domain.RevenueSummary, error) {
	now := time.Now()

	revenueToday, err := d.store.SumCompletedPayments(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	totalRevenue, err := d.store.SumAllCompletedPayments(ctx)
	if err != nil {
		return nil, err
	}
	mrr, err := d.store.SumActiveMonthlySubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	paymentCount, err := d.store.CountCompletedPayments(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.RevenueSummary{
		RevenueToday: round2(revenueToday),
		TotalRevenue: round2(totalRevenue),
		MRR:          round2(mrr),
		ARR:          round2(mrr * 12),
		PaymentCount: paymentCount,
	}
	if paymentCount > 0 {
		summary.AvgPayment = round2(totalRevenue / float64(paymentCount))
	}
	return summary, nil
}

// currentSnapshot reads the last cached snapshot; a miss or cache failure
// falls back to recomputation, and a recomputation failure yields nil.
func (d *AnalyticsDashboard) currentSnapshot(ctx context.Context, now time.Time) *domain.MetricsSnapshot {
	snapshot, err := d.cache.GetSnapshot(ctx)
	if err == nil {
		return snapshot
	}
	if err != domain.ErrSnapshotNotFound {
		d.logger.Warnw("failed to read cached snapshot", "error", err)
	}

	snapshot, err = d.aggregator.ComputeSnapshot(ctx, now)
	if err != nil {
		d.logger.Errorw("failed to recompute snapshot for dashboard", "error", err)
		return nil
	}
	return snapshot
}
