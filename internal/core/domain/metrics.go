package domain

import "time"

type SystemHealth string

const (
	HealthHealthy SystemHealth = "healthy"
	HealthWarning SystemHealth = "warning"
)

// MetricsSnapshot is a complete point-in-time metrics record. Each cycle
// replaces the previous snapshot wholesale; snapshots are never patched.
type MetricsSnapshot struct {
	Timestamp           time.Time    `json:"timestamp"`
	ActiveUsers         int          `json:"active_users"`
	APICallsPerMinute   float64      `json:"api_calls_per_minute"`
	ErrorRate           float64      `json:"error_rate"`
	CPUUsage            float64      `json:"cpu_usage"`
	MemoryUsage         float64      `json:"memory_usage"`
	ToolsUsedLastHour   int          `json:"tools_used_last_hour"`
	RevenueToday        float64      `json:"revenue_today"`
	TotalRevenue        float64      `json:"total_revenue"`
	MRR                 float64      `json:"mrr"`
	ARR                 float64      `json:"arr"`
	TotalEventsLastHour int          `json:"total_events_last_hour"`
	SystemHealth        SystemHealth `json:"system_health"`
}

// TrendPoint is one bucket of a daily or hourly event count series.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ToolStats aggregates usage of one tool over a trailing window.
type ToolStats struct {
	ToolName       string  `json:"tool_name"`
	UsageCount     int     `json:"usage_count"`
	SuccessRate    float64 `json:"success_rate"`
	AvgExecutionMS float64 `json:"avg_execution_time"`
}

// UserActivity summarizes per-user event volume.
type UserActivity struct {
	TotalUsers       int              `json:"total_users"`
	AvgEventsPerUser float64          `json:"avg_events_per_user"`
	MostActiveUsers  []UserEventCount `json:"most_active_users"`
}

type UserEventCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// DashboardSummary holds coarse totals over the dashboard window.
type DashboardSummary struct {
	TotalUsers     int `json:"total_users"`
	TotalEvents    int `json:"total_events"`
	TotalToolUsage int `json:"total_tool_usage"`
}

// DashboardSnapshot is the full dashboard query response.
type DashboardSnapshot struct {
	RealTimeMetrics *MetricsSnapshot `json:"real_time_metrics,omitempty"`
	Summary         DashboardSummary `json:"summary"`
	ToolStats       []ToolStats      `json:"tool_stats"`
	DailyTrends     []TrendPoint     `json:"daily_trends"`
	UserActivity    UserActivity     `json:"user_activity"`
	SystemHealth    SystemHealth     `json:"system_health"`
}

// ToolAnalytics is the per-tool drill-down response.
type ToolAnalytics struct {
	ToolID           string       `json:"tool_id"`
	UsageCount       int          `json:"usage_count"`
	SuccessRate      float64      `json:"success_rate"`
	AvgExecutionTime float64      `json:"avg_execution_time"`
	Trends           []TrendPoint `json:"trends"`
}

// RevenueSummary aggregates payment and subscription totals.
type RevenueSummary struct {
	RevenueToday float64 `json:"revenue_today"`
	TotalRevenue float64 `json:"total_revenue"`
	MRR          float64 `json:"mrr"`
	ARR          float64 `json:"arr"`
	PaymentCount int     `json:"payment_count"`
	AvgPayment   float64 `json:"avg_payment"`
}
