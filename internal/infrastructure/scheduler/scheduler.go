package scheduler

import (
	"context"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"

	"go.uber.org/zap"
)

// Config contains scheduler configuration.
type Config struct {
	MetricsInterval time.Duration
	DrainInterval   time.Duration
	SnapshotTTL     time.Duration
}

// Scheduler drives the two perpetual loops: the metrics cycle (compute,
// cache, broadcast, persist) and the ingestion queue drain. Errors in any
// step are logged and swallowed; a failed cycle never terminates a loop.
type Scheduler struct {
	aggregator ports.Aggregator
	processor  ports.Processor
	cache      ports.CounterCache
	store      ports.EventRepository
	broadcast  ports.Broadcaster

	metricsInterval time.Duration
	drainInterval   time.Duration
	snapshotTTL     time.Duration

	logger   *zap.SugaredLogger
	stopChan chan struct{}
	done     chan struct{}
}

func NewScheduler(
	aggregator ports.Aggregator,
	processor ports.Processor,
	cache ports.CounterCache,
	store ports.EventRepository,
	broadcast ports.Broadcaster,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 30 * time.Second
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = time.Second
	}
	if cfg.SnapshotTTL < cfg.MetricsInterval {
		// Readers between ticks must still see the last good value.
		cfg.SnapshotTTL = 2 * cfg.MetricsInterval
	}

	return &Scheduler{
		aggregator:      aggregator,
		processor:       processor,
		cache:           cache,
		store:           store,
		broadcast:       broadcast,
		metricsInterval: cfg.MetricsInterval,
		drainInterval:   cfg.DrainInterval,
		snapshotTTL:     cfg.SnapshotTTL,
		logger:          logger,
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start runs both loops until Stop is called or ctx is cancelled. The
// in-flight cycle always finishes before the loop exits.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runMetricsLoop(ctx)
	go s.runDrainLoop(ctx)
}

// Stop signals both loops and waits for the metrics loop to finish its
// in-flight cycle.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.done
}

func (s *Scheduler) runMetricsLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.metricsInterval)
	defer ticker.Stop()

	// Publish a snapshot immediately so subscribers do not wait a full
	// interval after startup.
	s.runMetricsCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.runMetricsCycle(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runMetricsCycle performs one tick: compute, cache, broadcast, persist.
// Each step after computation is independently fail-soft.
func (s *Scheduler) runMetricsCycle(ctx context.Context) {
	snapshot, err := s.aggregator.ComputeSnapshot(ctx, time.Now())
	if err != nil {
		s.logger.Errorw("failed to compute metrics snapshot", "error", err)
		return
	}

	if err := s.cache.SetSnapshot(ctx, snapshot, s.snapshotTTL); err != nil {
		s.logger.Warnw("failed to cache metrics snapshot", "error", err)
	}

	s.broadcast.Broadcast("", map[string]interface{}{
		"type":      "metrics_update",
		"data":      snapshot,
		"timestamp": time.Now().Format(time.RFC3339),
	}, "")

	if err := s.store.InsertSystemMetrics(ctx, snapshot); err != nil {
		s.logger.Warnw("failed to persist system metrics", "error", err)
	}

	s.logger.Debugw("metrics cycle complete",
		"active_users", snapshot.ActiveUsers,
		"error_rate", snapshot.ErrorRate,
		"system_health", snapshot.SystemHealth,
	)
}

func (s *Scheduler) runDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainQueue(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// drainQueue processes queued events until the queue is empty for this tick.
func (s *Scheduler) drainQueue(ctx context.Context) {
	for {
		event, err := s.cache.DequeueEvent(ctx)
		if err == domain.ErrQueueEmpty {
			return
		}
		if err != nil {
			s.logger.Warnw("failed to drain analytics queue", "error", err)
			return
		}

		s.processor.Process(ctx, event)
	}
}
