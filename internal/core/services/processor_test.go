package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"streamlytics/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newProcessor(t *testing.T, store *fakeStore, cache *fakeCache, capacity int) *EventProcessor {
	t.Helper()
	return NewEventProcessor(store, cache, capacity, zaptest.NewLogger(t).Sugar())
}

func TestProcess_PersistsAndCounts(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()
	p := newProcessor(t, store, cache, 0)

	result := p.Process(context.Background(), &domain.Event{
		Type:   domain.EventPageView,
		UserID: "user-1",
	})

	require.True(t, result.Processed)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, store.insertedCount())
	assert.Equal(t, 1, cache.eventIncrs[domain.EventPageView])
	assert.Equal(t, 1, cache.userIncrs["user-1"])
	assert.Equal(t, int64(1), p.TypeCount(domain.EventPageView))
	assert.Equal(t, 1, p.BufferSize())
}

func TestProcess_SetsTimestampWhenZero(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	event := &domain.Event{Type: domain.EventPageView}
	p.Process(context.Background(), event)

	assert.False(t, event.Timestamp.IsZero())
}

func TestProcess_StoreFailureIsFailSoft(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	p := newProcessor(t, store, newFakeCache(), 0)

	result := p.Process(context.Background(), &domain.Event{Type: domain.EventPageView})

	assert.True(t, result.Processed)
	assert.Equal(t, "disk full", result.Error)
	assert.Equal(t, 1, p.BufferSize())
}

func TestProcess_CacheFailureIsFailSoft(t *testing.T) {
	cache := newFakeCache()
	cache.incrErr = errors.New("connection refused")
	p := newProcessor(t, &fakeStore{}, cache, 0)

	result := p.Process(context.Background(), &domain.Event{Type: domain.EventPageView, UserID: "u"})

	assert.True(t, result.Processed)
	assert.Empty(t, result.Error)
}

func TestProcess_AnonymousEventSkipsUserCounter(t *testing.T) {
	cache := newFakeCache()
	p := newProcessor(t, &fakeStore{}, cache, 0)

	p.Process(context.Background(), &domain.Event{Type: domain.EventPageView})

	assert.Empty(t, cache.userIncrs)
	assert.Equal(t, 1, cache.eventIncrs[domain.EventPageView])
}

func TestBuffer_EvictsOldestBeyondCapacity(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 5)

	for i := 0; i < 8; i++ {
		p.Process(context.Background(), &domain.Event{
			Type:   domain.EventPageView,
			UserID: fmt.Sprintf("user-%d", i),
		})
	}

	assert.Equal(t, 5, p.BufferSize())
	// The monotonic counter is unaffected by eviction.
	assert.Equal(t, int64(8), p.TypeCount(domain.EventPageView))
}

func TestInsights_RequireMinimumEvents(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	var result *domain.ProcessingResult
	for i := 0; i < 10; i++ {
		result = p.Process(context.Background(), &domain.Event{Type: domain.EventPageView, UserID: "u"})
	}
	require.NotNil(t, result.Insights)
	assert.Equal(t, "insufficient data for insights", result.Insights.Message)

	// The 11th event crosses the threshold.
	result = p.Process(context.Background(), &domain.Event{Type: domain.EventPageView, UserID: "u"})
	assert.Empty(t, result.Insights.Message)
	assert.NotEmpty(t, result.Insights.UsagePatterns)
}

func TestInsights_TopToolsLimitedToFive(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	var result *domain.ProcessingResult
	for i := 0; i < 20; i++ {
		result = p.Process(context.Background(), &domain.Event{
			Type:   domain.EventToolUsage,
			UserID: "u",
			Data:   map[string]interface{}{"tool_id": fmt.Sprintf("tool-%d", i%7)},
		})
	}

	require.NotNil(t, result.Insights)
	assert.Len(t, result.Insights.ToolPopularity, 5)
}

func TestInsights_UserBehaviorLimitedToTen(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	var result *domain.ProcessingResult
	for i := 0; i < 30; i++ {
		result = p.Process(context.Background(), &domain.Event{
			Type:   domain.EventPageView,
			UserID: fmt.Sprintf("user-%d", i%15),
		})
	}

	require.NotNil(t, result.Insights)
	assert.Len(t, result.Insights.UserBehavior, 10)
}

func TestAnomalies_HighAPIUsageBoundary(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	// 20 api calls by the same user: count == threshold, no anomaly yet.
	var result *domain.ProcessingResult
	for i := 0; i < 20; i++ {
		result = p.Process(context.Background(), &domain.Event{Type: domain.EventAPICall, UserID: "hotspot"})
	}
	assert.Empty(t, result.Anomalies)

	// The 21st call crosses it.
	result = p.Process(context.Background(), &domain.Event{Type: domain.EventAPICall, UserID: "hotspot"})
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, domain.AnomalyHighAPIUsage, result.Anomalies[0].Type)
	assert.Equal(t, domain.SeverityHigh, result.Anomalies[0].Severity)
	assert.Equal(t, "hotspot", result.Anomalies[0].UserID)
	assert.Equal(t, 21, result.Anomalies[0].Count)
}

func TestAnomalies_APIUsageScopedToUser(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	// 25 api calls spread over two users never trip the per-user threshold.
	var result *domain.ProcessingResult
	for i := 0; i < 25; i++ {
		result = p.Process(context.Background(), &domain.Event{
			Type:   domain.EventAPICall,
			UserID: fmt.Sprintf("user-%d", i%2),
		})
	}
	assert.Empty(t, result.Anomalies)
}

func TestAnomalies_ErrorSpikeBoundary(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	var result *domain.ProcessingResult
	for i := 0; i < 5; i++ {
		result = p.Process(context.Background(), &domain.Event{Type: domain.EventError})
	}
	assert.Empty(t, result.Anomalies)

	result = p.Process(context.Background(), &domain.Event{Type: domain.EventError})
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, domain.AnomalyErrorSpike, result.Anomalies[0].Type)
	assert.Equal(t, domain.SeverityMedium, result.Anomalies[0].Severity)
	assert.Equal(t, 6, result.Anomalies[0].Count)
}

func TestAnomalies_DetectionGatedOnCurrentEventType(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	for i := 0; i < 30; i++ {
		p.Process(context.Background(), &domain.Event{Type: domain.EventAPICall, UserID: "hotspot"})
	}

	// A non-api event never reports the pending api anomaly.
	result := p.Process(context.Background(), &domain.Event{Type: domain.EventPageView, UserID: "hotspot"})
	assert.Empty(t, result.Anomalies)
}

func TestAnomalies_ErrorWindowSlides(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	// 6 errors, then enough filler to push them out of the trailing 20.
	for i := 0; i < 6; i++ {
		p.Process(context.Background(), &domain.Event{Type: domain.EventError})
	}
	for i := 0; i < 19; i++ {
		p.Process(context.Background(), &domain.Event{Type: domain.EventPageView})
	}

	result := p.Process(context.Background(), &domain.Event{Type: domain.EventError})
	assert.Empty(t, result.Anomalies)
}

func TestProcess_ResultTimestampSet(t *testing.T) {
	p := newProcessor(t, &fakeStore{}, newFakeCache(), 0)

	before := time.Now()
	result := p.Process(context.Background(), &domain.Event{Type: domain.EventPageView})

	assert.False(t, result.Timestamp.Before(before))
}
