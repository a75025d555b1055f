package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
	"streamlytics/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// promauto registers on the default registry, so the collector is shared
// across the test binary.
var testMetrics = monitoring.NewPrometheusCollector()

type stubProcessor struct {
	result    *domain.ProcessingResult
	lastEvent *domain.Event
	calls     int
}

func (p *stubProcessor) Process(ctx context.Context, event *domain.Event) *domain.ProcessingResult {
	p.calls++
	p.lastEvent = event
	if p.result != nil {
		return p.result
	}
	return &domain.ProcessingResult{Processed: true, Anomalies: []domain.Anomaly{}, Timestamp: time.Now()}
}

func (p *stubProcessor) BufferSize() int { return 3 }

type stubDashboard struct {
	snapshot *domain.DashboardSnapshot
	tool     *domain.ToolAnalytics
	revenue  *domain.RevenueSummary
	err      error
}

func (d *stubDashboard) Dashboard(ctx context.Context) (*domain.DashboardSnapshot, error) {
	return d.snapshot, d.err
}

func (d *stubDashboard) ToolAnalytics(ctx context.Context, toolID string) (*domain.ToolAnalytics, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.tool, nil
}

func (d *stubDashboard) RevenueSummary(ctx context.Context) (*domain.RevenueSummary, error) {
	return d.revenue, d.err
}

// stubStore overrides only the writes the HTTP surface performs.
type stubStore struct {
	ports.EventRepository

	toolUsages    []*domain.ToolUsage
	payments      []*domain.Payment
	subscriptions []*domain.SubscriptionRecord
	insertErr     error
}

func (s *stubStore) InsertToolUsage(ctx context.Context, usage *domain.ToolUsage) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.toolUsages = append(s.toolUsages, usage)
	return nil
}

func (s *stubStore) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.payments = append(s.payments, payment)
	return nil
}

func (s *stubStore) InsertSubscription(ctx context.Context, sub *domain.SubscriptionRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.subscriptions = append(s.subscriptions, sub)
	return nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }

type stubCache struct {
	ports.CounterCache

	queued     []*domain.Event
	enqueueErr error
}

func (c *stubCache) EnqueueEvent(ctx context.Context, event *domain.Event) error {
	if c.enqueueErr != nil {
		return c.enqueueErr
	}
	c.queued = append(c.queued, event)
	return nil
}

func (c *stubCache) Ping(ctx context.Context) error { return nil }

type broadcastCall struct {
	scope     string
	message   interface{}
	excludeID string
}

type stubHub struct {
	calls []broadcastCall
}

func (h *stubHub) Broadcast(scope string, message interface{}, excludeID string) {
	h.calls = append(h.calls, broadcastCall{scope: scope, message: message, excludeID: excludeID})
}

func (h *stubHub) SubscriberCount() int { return 2 }

type handlerFixture struct {
	router    *gin.Engine
	processor *stubProcessor
	dashboard *stubDashboard
	store     *stubStore
	cache     *stubCache
	hub       *stubHub
}

func newFixture(t *testing.T, queueing bool) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		processor: &stubProcessor{},
		dashboard: &stubDashboard{},
		store:     &stubStore{},
		cache:     &stubCache{},
		hub:       &stubHub{},
	}

	health := monitoring.NewHealthChecker()
	health.AddCheck("sqlite", f.store.Ping, time.Second)
	health.AddCheck("cache", f.cache.Ping, time.Second)

	handler := NewAnalyticsHandler(
		f.processor, f.dashboard, f.store, f.cache, f.hub,
		health, testMetrics, queueing,
		zaptest.NewLogger(t).Sugar(),
	)

	f.router = gin.New()
	handler.SetupRoutes(f.router)
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTrackEvent_ProcessedInline(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/events", gin.H{
		"event_type": "page_view",
		"user_id":    "user-1",
		"data":       gin.H{"page": "/pricing"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, true, body["processed"])

	require.NotNil(t, f.processor.lastEvent)
	assert.Equal(t, domain.EventPageView, f.processor.lastEvent.Type)
	assert.Equal(t, "user-1", f.processor.lastEvent.UserID)
	assert.False(t, f.processor.lastEvent.Timestamp.IsZero())
	assert.NotEmpty(t, f.processor.lastEvent.IPAddress)
}

func TestTrackEvent_QueuedWhenCacheAvailable(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/api/events", gin.H{
		"event_type": "api_call",
		"user_id":    "user-1",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "queued", decodeBody(t, w)["status"])
	assert.Zero(t, f.processor.calls)
	require.Len(t, f.cache.queued, 1)
	assert.Equal(t, domain.EventAPICall, f.cache.queued[0].Type)
}

func TestTrackEvent_FallsBackInlineWhenQueueFails(t *testing.T) {
	f := newFixture(t, true)
	f.cache.enqueueErr = errors.New("connection refused")

	w := f.do(t, http.MethodPost, "/api/events", gin.H{
		"event_type": "api_call",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "processed", decodeBody(t, w)["status"])
	assert.Equal(t, 1, f.processor.calls)
}

func TestTrackEvent_ReportsAnomalies(t *testing.T) {
	f := newFixture(t, false)
	f.processor.result = &domain.ProcessingResult{
		Processed: true,
		Anomalies: []domain.Anomaly{
			{Type: domain.AnomalyHighAPIUsage, UserID: "user-1", Count: 21, Severity: domain.SeverityHigh},
		},
	}

	w := f.do(t, http.MethodPost, "/api/events", gin.H{
		"event_type": "api_call",
		"user_id":    "user-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	anomalies, ok := body["anomalies"].([]interface{})
	require.True(t, ok)
	require.Len(t, anomalies, 1)
	first := anomalies[0].(map[string]interface{})
	assert.Equal(t, "high_api_usage", first["type"])
	assert.Equal(t, "high", first["severity"])
}

func TestTrackEvent_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing event type", gin.H{"user_id": "user-1"}},
		{"invalid event type", gin.H{"event_type": "bad type!"}},
		{"invalid user id", gin.H{"event_type": "page_view", "user_id": "no spaces allowed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)

			w := f.do(t, http.MethodPost, "/api/events", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, f.processor.calls)
		})
	}
}

func TestTrackToolUsage(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/tool-usage", gin.H{
		"tool_id":           "tool-a",
		"tool_name":         "Report Builder",
		"user_id":           "user-1",
		"execution_time_ms": 120,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.store.toolUsages, 1)
	usage := f.store.toolUsages[0]
	assert.Equal(t, "tool-a", usage.ToolID)
	assert.True(t, usage.Success, "success defaults to true when omitted")

	require.Len(t, f.hub.calls, 1)
	message := f.hub.calls[0].message.(gin.H)
	assert.Equal(t, "tool_usage", message["type"])
	assert.Equal(t, "", f.hub.calls[0].scope)
}

func TestTrackToolUsage_ExplicitFailure(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/tool-usage", gin.H{
		"tool_id":       "tool-a",
		"tool_name":     "Report Builder",
		"success":       false,
		"error_message": "timeout",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.store.toolUsages, 1)
	assert.False(t, f.store.toolUsages[0].Success)
	assert.Equal(t, "timeout", f.store.toolUsages[0].ErrorMessage)
}

func TestTrackToolUsage_StoreFailure(t *testing.T) {
	f := newFixture(t, false)
	f.store.insertErr = errors.New("disk full")

	w := f.do(t, http.MethodPost, "/api/tool-usage", gin.H{
		"tool_id":   "tool-a",
		"tool_name": "Report Builder",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, f.hub.calls)
}

func TestTrackPayment_DefaultsApplied(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/payments", gin.H{
		"user_id":        "user-1",
		"amount":         49.99,
		"transaction_id": "txn-001",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.store.payments, 1)
	payment := f.store.payments[0]
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "USD", payment.Currency)

	require.Len(t, f.hub.calls, 1)
	message := f.hub.calls[0].message.(gin.H)
	assert.Equal(t, "payment_received", message["type"])
	assert.Equal(t, 49.99, message["amount"])
}

func TestTrackPayment_RejectsInvalidAmount(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/payments", gin.H{
		"user_id":        "user-1",
		"amount":         -5.0,
		"transaction_id": "txn-001",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.payments)
}

func TestCreateSubscription(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/subscriptions", gin.H{
		"user_id":   "user-1",
		"plan_name": "pro",
		"amount":    29.99,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.store.subscriptions, 1)
	sub := f.store.subscriptions[0]
	assert.Equal(t, domain.BillingCycleMonthly, sub.BillingCycle)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.False(t, sub.StartDate.IsZero())
}

func TestCreateSubscription_RejectsUnknownBillingCycle(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/api/subscriptions", gin.H{
		"user_id":       "user-1",
		"plan_name":     "pro",
		"amount":        29.99,
		"billing_cycle": "weekly",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.subscriptions)
}

func TestGetDashboard(t *testing.T) {
	f := newFixture(t, false)
	f.dashboard.snapshot = &domain.DashboardSnapshot{
		Summary:      domain.DashboardSummary{TotalUsers: 12, TotalEvents: 340},
		SystemHealth: domain.HealthHealthy,
	}

	w := f.do(t, http.MethodGet, "/api/analytics/dashboard", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(12), summary["total_users"])
	assert.Equal(t, "healthy", body["system_health"])
}

func TestGetDashboard_Failure(t *testing.T) {
	f := newFixture(t, false)
	f.dashboard.err = errors.New("store down")

	w := f.do(t, http.MethodGet, "/api/analytics/dashboard", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetToolAnalytics(t *testing.T) {
	f := newFixture(t, false)
	f.dashboard.tool = &domain.ToolAnalytics{ToolID: "tool-a", UsageCount: 4, SuccessRate: 75.0}

	w := f.do(t, http.MethodGet, "/api/analytics/tools/tool-a", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "tool-a", body["tool_id"])
	assert.Equal(t, float64(4), body["usage_count"])
}

func TestGetToolAnalytics_RejectsInvalidID(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/analytics/tools/bad%20id", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRevenueSummary(t *testing.T) {
	f := newFixture(t, false)
	f.dashboard.revenue = &domain.RevenueSummary{TotalRevenue: 500, MRR: 50, ARR: 600, PaymentCount: 2, AvgPayment: 250}

	w := f.do(t, http.MethodGet, "/api/revenue/summary", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(600), body["arr"])
	assert.Equal(t, float64(250), body["avg_payment"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["sqlite"])
	assert.Equal(t, "healthy", checks["cache"])
	assert.Equal(t, float64(2), body["subscribers"])
	assert.Equal(t, float64(3), body["buffer_size"])
}

func TestHealth_DependencyFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		processor: &stubProcessor{},
		dashboard: &stubDashboard{},
		store:     &stubStore{},
		cache:     &stubCache{},
		hub:       &stubHub{},
	}

	health := monitoring.NewHealthChecker()
	health.AddCheck("sqlite", func(ctx context.Context) error { return errors.New("locked") }, time.Second)

	handler := NewAnalyticsHandler(
		f.processor, f.dashboard, f.store, f.cache, f.hub,
		health, testMetrics, false,
		zaptest.NewLogger(t).Sugar(),
	)
	f.router = gin.New()
	handler.SetupRoutes(f.router)

	w := f.do(t, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "unhealthy", body["status"])
}
