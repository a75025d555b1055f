package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
	"streamlytics/pkg/tracing"

	"go.uber.org/zap"
)

const (
	// DefaultBufferCapacity bounds the in-process recent-event buffer.
	DefaultBufferCapacity = 1000

	insightWindow    = 100
	insightMinEvents = 10
	topUserLimit     = 10
	topToolLimit     = 5

	apiAnomalyWindow    = 50
	apiAnomalyThreshold = 20
	errAnomalyWindow    = 20
	errAnomalyThreshold = 5

	counterTTL = 24 * time.Hour
)

// EventProcessor runs the ingestion pipeline: buffer the event, bump running
// counters, persist, update the counter cache, derive insights and anomalies.
// Every step is fail-soft; a failing step degrades only its own output.
type EventProcessor struct {
	store  ports.EventRepository
	cache  ports.CounterCache
	logger *zap.SugaredLogger

	mu         sync.Mutex
	buffer     []*domain.Event
	capacity   int
	typeCounts map[domain.EventType]int64
}

func NewEventProcessor(store ports.EventRepository, cache ports.CounterCache, capacity int, logger *zap.SugaredLogger) *EventProcessor {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &EventProcessor{
		store:      store,
		cache:      cache,
		logger:     logger,
		capacity:   capacity,
		buffer:     make([]*domain.Event, 0, capacity),
		typeCounts: make(map[domain.EventType]int64),
	}
}

// Process ingests a single event and returns insights and anomalies derived
// from the recent buffer. It never returns an error; failures downgrade the
// result instead.
func (p *EventProcessor) Process(ctx context.Context, event *domain.Event) *domain.ProcessingResult {
	ctx, span := tracing.TraceEventProcessing(ctx, string(event.Type), event.UserID)
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.Lock()
	p.append(event)
	p.typeCounts[event.Type]++
	recent := p.snapshotBuffer()
	p.mu.Unlock()

	result := &domain.ProcessingResult{
		Processed: true,
		Anomalies: []domain.Anomaly{},
		Timestamp: time.Now(),
	}

	if err := p.store.InsertEvent(ctx, event); err != nil {
		p.logger.Errorw("failed to persist event", "event_type", event.Type, "error", err)
		tracing.RecordError(ctx, err)
		result.Error = err.Error()
	}

	p.updateCacheCounters(ctx, event)

	result.Insights = deriveInsights(recent)
	result.Anomalies = detectAnomalies(recent, event)

	return result
}

// BufferSize returns the number of buffered events.
func (p *EventProcessor) BufferSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// TypeCount returns the monotonic in-process counter for an event type.
func (p *EventProcessor) TypeCount(eventType domain.EventType) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typeCounts[eventType]
}

// append adds the event to the bounded buffer, dropping the oldest entries
// once the cap is exceeded.
func (p *EventProcessor) append(event *domain.Event) {
	p.buffer = append(p.buffer, event)
	if len(p.buffer) > p.capacity {
		overflow := len(p.buffer) - p.capacity
		p.buffer = append(p.buffer[:0], p.buffer[overflow:]...)
	}
}

func (p *EventProcessor) snapshotBuffer() []*domain.Event {
	out := make([]*domain.Event, len(p.buffer))
	copy(out, p.buffer)
	return out
}

func (p *EventProcessor) updateCacheCounters(ctx context.Context, event *domain.Event) {
	if err := p.cache.IncrementEventCounter(ctx, event.Type, counterTTL); err != nil {
		p.logger.Warnw("failed to increment event counter", "event_type", event.Type, "error", err)
	}
	if event.UserID != "" {
		if err := p.cache.IncrementUserCounter(ctx, event.UserID, counterTTL); err != nil {
			p.logger.Warnw("failed to increment user counter", "user_id", event.UserID, "error", err)
		}
	}
}

// deriveInsights summarizes the recent buffer: usage patterns by
// (event_type, hour-of-day), per-user behavior (top 10) and tool popularity
// (top 5). Requires more than insightMinEvents buffered events.
func deriveInsights(recent []*domain.Event) *domain.Insights {
	if len(recent) <= insightMinEvents {
		return &domain.Insights{Message: "insufficient data for insights"}
	}

	if len(recent) > insightWindow {
		recent = recent[len(recent)-insightWindow:]
	}

	patterns := make(map[domain.PatternKey]int)
	userEvents := make(map[string]map[domain.EventType]int)
	userTotals := make(map[string]int)
	toolCounts := make(map[string]int)

	for _, e := range recent {
		patterns[domain.PatternKey{EventType: e.Type, Hour: e.Timestamp.Hour()}]++

		if e.UserID != "" {
			if userEvents[e.UserID] == nil {
				userEvents[e.UserID] = make(map[domain.EventType]int)
			}
			userEvents[e.UserID][e.Type]++
			userTotals[e.UserID]++
		}

		if toolID := e.ToolID(); toolID != "" {
			toolCounts[toolID]++
		}
	}

	insights := &domain.Insights{
		UsagePatterns:  sortedPatterns(patterns),
		UserBehavior:   topUsers(userEvents, userTotals, topUserLimit),
		ToolPopularity: topTools(toolCounts, topToolLimit),
	}
	return insights
}

func sortedPatterns(patterns map[domain.PatternKey]int) []domain.PatternCount {
	out := make([]domain.PatternCount, 0, len(patterns))
	for k, v := range patterns {
		out = append(out, domain.PatternCount{EventType: k.EventType, Hour: k.Hour, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].EventType != out[j].EventType {
			return out[i].EventType < out[j].EventType
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func topUsers(userEvents map[string]map[domain.EventType]int, totals map[string]int, limit int) []domain.UserBehavior {
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if totals[ids[i]] != totals[ids[j]] {
			return totals[ids[i]] > totals[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.UserBehavior, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserBehavior{UserID: id, Events: userEvents[id]})
	}
	return out
}

func topTools(counts map[string]int, limit int) []domain.ToolCount {
	out := make([]domain.ToolCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, domain.ToolCount{ToolID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ToolID < out[j].ToolID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// detectAnomalies runs the two fixed heuristics over the recent buffer. The
// current event is already the last buffer entry.
func detectAnomalies(recent []*domain.Event, current *domain.Event) []domain.Anomaly {
	anomalies := []domain.Anomaly{}

	if current.Type == domain.EventAPICall && current.UserID != "" {
		window := tail(recent, apiAnomalyWindow)
		count := 0
		for _, e := range window {
			if e.Type == domain.EventAPICall && e.UserID == current.UserID {
				count++
			}
		}
		if count > apiAnomalyThreshold {
			anomalies = append(anomalies, domain.Anomaly{
				Type:     domain.AnomalyHighAPIUsage,
				UserID:   current.UserID,
				Count:    count,
				Severity: domain.SeverityHigh,
			})
		}
	}

	if current.Type == domain.EventError {
		window := tail(recent, errAnomalyWindow)
		count := 0
		for _, e := range window {
			if e.Type == domain.EventError {
				count++
			}
		}
		if count > errAnomalyThreshold {
			anomalies = append(anomalies, domain.Anomaly{
				Type:     domain.AnomalyErrorSpike,
				Count:    count,
				Severity: domain.SeverityMedium,
			})
		}
	}

	return anomalies
}

func tail(events []*domain.Event, n int) []*domain.Event {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}
