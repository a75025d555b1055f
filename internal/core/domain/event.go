package domain

import (
	"strings"
	"time"
)

// EventType tags the known analytics event kinds. Unknown types are still
// accepted at the boundary; the tag only drives counter and anomaly logic.
type EventType string

const (
	EventPageView  EventType = "page_view"
	EventUserLogin EventType = "user_login"
	EventAPICall   EventType = "api_call"
	EventToolUsage EventType = "tool_usage"
	EventPayment   EventType = "payment"
	EventError     EventType = "error"
)

// IsAPICategory reports whether the event type counts toward API call metrics.
func (t EventType) IsAPICategory() bool {
	return strings.Contains(strings.ToLower(string(t)), "api")
}

// IsErrorCategory reports whether the event type counts toward error metrics.
func (t EventType) IsErrorCategory() bool {
	return strings.Contains(strings.ToLower(string(t)), "error")
}

// Event is a single raw analytics event. Immutable once stored.
type Event struct {
	ID             int64                  `json:"id,omitempty"`
	Type           EventType              `json:"event_type"`
	UserID         string                 `json:"user_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// ToolID extracts the tool identifier from the opaque payload, if present.
func (e *Event) ToolID() string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data["tool_id"].(string); ok {
		return v
	}
	return ""
}

// Amount extracts a monetary amount from the opaque payload, 0 if absent.
func (e *Event) Amount() float64 {
	if e.Data == nil {
		return 0
	}
	switch v := e.Data["amount"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// ToolUsage records a single tool invocation.
type ToolUsage struct {
	ID              int64     `json:"id,omitempty"`
	ToolID          string    `json:"tool_id"`
	ToolName        string    `json:"tool_name"`
	UserID          string    `json:"user_id,omitempty"`
	UsageType       string    `json:"usage_type"`
	ExecutionTimeMS int64     `json:"execution_time_ms,omitempty"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Payment records a payment transaction.
type Payment struct {
	ID               int64                  `json:"id,omitempty"`
	UserID           string                 `json:"user_id"`
	Amount           float64                `json:"amount"`
	Currency         string                 `json:"currency"`
	PaymentMethod    string                 `json:"payment_method"`
	TransactionID    string                 `json:"transaction_id"`
	SubscriptionPlan string                 `json:"subscription_plan,omitempty"`
	Status           string                 `json:"status"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}

// SubscriptionRecord is an active or lapsed billing subscription.
type SubscriptionRecord struct {
	ID           int64     `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	PlanName     string    `json:"plan_name"`
	Amount       float64   `json:"amount"`
	BillingCycle string    `json:"billing_cycle"`
	Status       string    `json:"status"`
	StartDate    time.Time `json:"start_date"`
}

const (
	PaymentStatusCompleted = "completed"
	SubscriptionActive     = "active"
	BillingCycleMonthly    = "monthly"
)
