package domain

import "time"

// AnomalyType identifies a detection heuristic.
type AnomalyType string

const (
	AnomalyHighAPIUsage AnomalyType = "high_api_usage"
	AnomalyErrorSpike   AnomalyType = "error_spike"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Anomaly flags suspicious activity detected over the recent event buffer.
type Anomaly struct {
	Type     AnomalyType `json:"type"`
	UserID   string      `json:"user_id,omitempty"`
	Count    int         `json:"count"`
	Severity Severity    `json:"severity"`
}

// PatternKey buckets events by type and hour of day.
type PatternKey struct {
	EventType EventType `json:"event_type"`
	Hour      int       `json:"hour"`
}

// PatternCount is one (event_type, hour-of-day) usage bucket.
type PatternCount struct {
	EventType EventType `json:"event_type"`
	Hour      int       `json:"hour"`
	Count     int       `json:"count"`
}

// UserBehavior is a per-user breakdown of event types.
type UserBehavior struct {
	UserID string            `json:"user_id"`
	Events map[EventType]int `json:"events"`
}

// ToolCount is a tool popularity entry.
type ToolCount struct {
	ToolID string `json:"tool_id"`
	Count  int    `json:"count"`
}

// Insights summarizes recent buffered events. Output lists are bounded
// (top 10 users, top 5 tools) to cap response size.
type Insights struct {
	Message        string         `json:"message,omitempty"`
	UsagePatterns  []PatternCount `json:"usage_patterns,omitempty"`
	UserBehavior   []UserBehavior `json:"user_behavior,omitempty"`
	ToolPopularity []ToolCount    `json:"tool_popularity,omitempty"`
}

// ProcessingResult is returned by the ingestion pipeline for each event.
type ProcessingResult struct {
	Processed bool      `json:"processed"`
	Insights  *Insights `json:"insights,omitempty"`
	Anomalies []Anomaly `json:"anomalies"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
