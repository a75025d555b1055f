package http

import (
	"net/http"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"
	"streamlytics/internal/infrastructure/monitoring"
	"streamlytics/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	processor ports.Processor
	dashboard ports.DashboardService
	store     ports.EventRepository
	cache     ports.CounterCache
	hub       ports.Broadcaster
	health    *monitoring.HealthChecker
	metrics   *monitoring.PrometheusCollector
	queueing  bool
	logger    *zap.SugaredLogger
}

func NewAnalyticsHandler(
	processor ports.Processor,
	dashboard ports.DashboardService,
	store ports.EventRepository,
	cache ports.CounterCache,
	hub ports.Broadcaster,
	health *monitoring.HealthChecker,
	metrics *monitoring.PrometheusCollector,
	queueing bool,
	logger *zap.SugaredLogger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		processor: processor,
		dashboard: dashboard,
		store:     store,
		cache:     cache,
		hub:       hub,
		health:    health,
		metrics:   metrics,
		queueing:  queueing,
		logger:    logger,
	}
}

func (h *AnalyticsHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/events", h.TrackEvent)
		api.POST("/tool-usage", h.TrackToolUsage)
		api.POST("/payments", h.TrackPayment)
		api.POST("/subscriptions", h.CreateSubscription)

		api.GET("/analytics/dashboard", h.GetDashboard)
		api.GET("/analytics/tools/:id", h.GetToolAnalytics)
		api.GET("/revenue/summary", h.GetRevenueSummary)

		api.GET("/health", h.Health)
	}
}

// TrackEvent accepts a raw analytics event. When the queue is available the
// event is accepted and drained asynchronously; otherwise it is processed
// inline before the response.
func (h *AnalyticsHandler) TrackEvent(c *gin.Context) {
	start := time.Now()

	var req struct {
		Type           domain.EventType       `json:"event_type" binding:"required"`
		UserID         string                 `json:"user_id"`
		OrganizationID string                 `json:"organization_id"`
		Data           map[string]interface{} `json:"data"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateEventType(string(req.Type)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID != "" {
		if err := validation.ValidateUserID(req.UserID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	event := &domain.Event{
		Type:           req.Type,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Data:           req.Data,
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		Timestamp:      time.Now().UTC(),
	}

	h.metrics.RecordEventIngested(event.Type)

	if h.queueing {
		if err := h.cache.EnqueueEvent(c.Request.Context(), event); err == nil {
			h.metrics.RecordIngest(time.Since(start))
			c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
			return
		}
		h.logger.Warnw("event queue unavailable, processing inline", "event_type", event.Type)
		h.metrics.RecordQueueFallback()
	}

	result := h.processor.Process(c.Request.Context(), event)
	for _, anomaly := range result.Anomalies {
		h.metrics.RecordAnomaly(anomaly.Type)
	}
	h.metrics.RecordIngest(time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"status":    "processed",
		"processed": result.Processed,
		"anomalies": result.Anomalies,
	})
}

func (h *AnalyticsHandler) TrackToolUsage(c *gin.Context) {
	var req struct {
		ToolID          string `json:"tool_id" binding:"required"`
		ToolName        string `json:"tool_name" binding:"required"`
		UserID          string `json:"user_id"`
		UsageType       string `json:"usage_type"`
		ExecutionTimeMS int64  `json:"execution_time_ms"`
		Success         *bool  `json:"success"`
		ErrorMessage    string `json:"error_message"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateToolID(req.ToolID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	usage := &domain.ToolUsage{
		ToolID:          req.ToolID,
		ToolName:        req.ToolName,
		UserID:          req.UserID,
		UsageType:       req.UsageType,
		ExecutionTimeMS: req.ExecutionTimeMS,
		Success:         req.Success == nil || *req.Success,
		ErrorMessage:    req.ErrorMessage,
		Timestamp:       time.Now().UTC(),
	}

	if err := h.store.InsertToolUsage(c.Request.Context(), usage); err != nil {
		h.logger.Errorw("failed to record tool usage", "tool_id", usage.ToolID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record tool usage"})
		return
	}

	h.hub.Broadcast("", gin.H{
		"type":      "tool_usage",
		"tool_id":   usage.ToolID,
		"tool_name": usage.ToolName,
		"timestamp": usage.Timestamp.Format(time.RFC3339),
	}, "")

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *AnalyticsHandler) TrackPayment(c *gin.Context) {
	var req struct {
		UserID           string                 `json:"user_id" binding:"required"`
		Amount           float64                `json:"amount" binding:"required"`
		Currency         string                 `json:"currency"`
		PaymentMethod    string                 `json:"payment_method"`
		TransactionID    string                 `json:"transaction_id" binding:"required"`
		SubscriptionPlan string                 `json:"subscription_plan"`
		Status           string                 `json:"status"`
		Metadata         map[string]interface{} `json:"metadata"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment := &domain.Payment{
		UserID:           req.UserID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentMethod:    req.PaymentMethod,
		TransactionID:    req.TransactionID,
		SubscriptionPlan: req.SubscriptionPlan,
		Status:           req.Status,
		Metadata:         req.Metadata,
		Timestamp:        time.Now().UTC(),
	}
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusCompleted
	}
	if payment.Currency == "" {
		payment.Currency = "USD"
	}

	if err := h.store.InsertPayment(c.Request.Context(), payment); err != nil {
		h.logger.Errorw("failed to record payment", "transaction_id", payment.TransactionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment"})
		return
	}

	h.hub.Broadcast("", gin.H{
		"type":      "payment_received",
		"amount":    payment.Amount,
		"currency":  payment.Currency,
		"timestamp": payment.Timestamp.Format(time.RFC3339),
	}, "")

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *AnalyticsHandler) CreateSubscription(c *gin.Context) {
	var req struct {
		UserID       string  `json:"user_id" binding:"required"`
		PlanName     string  `json:"plan_name" binding:"required"`
		Amount       float64 `json:"amount" binding:"required"`
		BillingCycle string  `json:"billing_cycle"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidatePlanName(req.PlanName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BillingCycle == "" {
		req.BillingCycle = domain.BillingCycleMonthly
	}
	if err := validation.ValidateBillingCycle(req.BillingCycle); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := &domain.SubscriptionRecord{
		UserID:       req.UserID,
		PlanName:     req.PlanName,
		Amount:       req.Amount,
		BillingCycle: req.BillingCycle,
		Status:       domain.SubscriptionActive,
		StartDate:    time.Now().UTC(),
	}

	if err := h.store.InsertSubscription(c.Request.Context(), sub); err != nil {
		h.logger.Errorw("failed to create subscription", "user_id", sub.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	snapshot, err := h.dashboard.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Errorw("dashboard query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build dashboard"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *AnalyticsHandler) GetToolAnalytics(c *gin.Context) {
	toolID := c.Param("id")
	if err := validation.ValidateToolID(toolID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analytics, err := h.dashboard.ToolAnalytics(c.Request.Context(), toolID)
	if err != nil {
		h.logger.Errorw("tool analytics query failed", "tool_id", toolID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query tool analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *AnalyticsHandler) GetRevenueSummary(c *gin.Context) {
	summary, err := h.dashboard.RevenueSummary(c.Request.Context())
	if err != nil {
		h.logger.Errorw("revenue summary query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query revenue"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Health reports dependency checks plus live pipeline gauges. Degraded
// dependencies do not fail the endpoint; their state shows in the body.
func (h *AnalyticsHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status.Status,
		"timestamp":   status.Timestamp,
		"checks":      status.Checks,
		"subscribers": h.hub.SubscriberCount(),
		"buffer_size": h.processor.BufferSize(),
		"queueing":    h.queueing,
	})
}
