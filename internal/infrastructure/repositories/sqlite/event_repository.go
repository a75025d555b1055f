package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"streamlytics/internal/core/domain"
	"streamlytics/internal/core/ports"

	_ "github.com/mattn/go-sqlite3"
)

// EventRepository is the SQLite-backed durable event store.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository opens (or creates) the SQLite database at path and
// ensures the schema exists. Use ":memory:" for tests.
func NewEventRepository(path string) (*EventRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite handles a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	repo := &EventRepository{db: db}
	if err := repo.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return repo, nil
}

func (r *EventRepository) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		user_id TEXT,
		organization_id TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		data TEXT,
		ip_address TEXT,
		user_agent TEXT
	);

	CREATE TABLE IF NOT EXISTS tool_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool_id TEXT NOT NULL,
		tool_name TEXT,
		user_id TEXT,
		usage_type TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		execution_time_ms INTEGER,
		success BOOLEAN,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT DEFAULT 'USD',
		payment_method TEXT,
		transaction_id TEXT UNIQUE,
		subscription_plan TEXT,
		status TEXT DEFAULT 'completed',
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		metadata TEXT
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		plan_name TEXT NOT NULL,
		amount REAL NOT NULL,
		billing_cycle TEXT DEFAULT 'monthly',
		status TEXT DEFAULT 'active',
		start_date DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS system_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		cpu_usage REAL,
		memory_usage REAL,
		active_users INTEGER,
		api_calls_per_minute REAL,
		error_rate REAL
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id);
	CREATE INDEX IF NOT EXISTS idx_tool_usage_timestamp ON tool_usage(timestamp);
	CREATE INDEX IF NOT EXISTS idx_tool_usage_tool_id ON tool_usage(tool_id);
	CREATE INDEX IF NOT EXISTS idx_payments_timestamp ON payments(timestamp);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.Event) error {
	var data []byte
	var err error
	if event.Data != nil {
		data, err = json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (event_type, user_id, organization_id, timestamp, data, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(event.Type), nullable(event.UserID), nullable(event.OrganizationID),
		ts.UTC(), string(data), nullable(event.IPAddress), nullable(event.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

func (r *EventRepository) InsertToolUsage(ctx context.Context, usage *domain.ToolUsage) error {
	ts := usage.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_usage (tool_id, tool_name, user_id, usage_type, timestamp, execution_time_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.ToolID, usage.ToolName, nullable(usage.UserID), usage.UsageType,
		ts.UTC(), usage.ExecutionTimeMS, usage.Success, nullable(usage.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tool usage: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		usage.ID = id
	}
	return nil
}

func (r *EventRepository) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	var metadata []byte
	var err error
	if payment.Metadata != nil {
		metadata, err = json.Marshal(payment.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal payment metadata: %w", err)
		}
	}

	ts := payment.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	status := payment.Status
	if status == "" {
		status = domain.PaymentStatusCompleted
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (user_id, amount, currency, payment_method, transaction_id, subscription_plan, status, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.UserID, payment.Amount, payment.Currency, payment.PaymentMethod,
		nullable(payment.TransactionID), nullable(payment.SubscriptionPlan), status,
		ts.UTC(), string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		payment.ID = id
	}
	return nil
}

func (r *EventRepository) InsertSubscription(ctx context.Context, sub *domain.SubscriptionRecord) error {
	start := sub.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	status := sub.Status
	if status == "" {
		status = domain.SubscriptionActive
	}
	cycle := sub.BillingCycle
	if cycle == "" {
		cycle = domain.BillingCycleMonthly
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, plan_name, amount, billing_cycle, status, start_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.PlanName, sub.Amount, cycle, status, start.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		sub.ID = id
	}
	return nil
}

func (r *EventRepository) InsertSystemMetrics(ctx context.Context, snapshot *domain.MetricsSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_metrics (timestamp, cpu_usage, memory_usage, active_users, api_calls_per_minute, error_rate)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.Timestamp.UTC(), snapshot.CPUUsage, snapshot.MemoryUsage,
		snapshot.ActiveUsers, snapshot.APICallsPerMinute, snapshot.ErrorRate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert system metrics: %w", err)
	}
	return nil
}

func (r *EventRepository) DistinctActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM events
		WHERE timestamp > ? AND user_id IS NOT NULL`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return count, nil
}

func (r *EventRepository) CountEventsByCategory(ctx context.Context, since time.Time, category string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE timestamp > ? AND event_type LIKE ?`, since.UTC(), "%"+category+"%").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", category, err)
	}
	return count, nil
}

func (r *EventRepository) CountEvents(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE timestamp > ?`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) CountToolUsage(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tool_usage WHERE timestamp > ?`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tool usage: %w", err)
	}
	return count, nil
}

func (r *EventRepository) SumCompletedPayments(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE timestamp > ? AND status = ?`, since.UTC(), domain.PaymentStatusCompleted).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return sum, nil
}

func (r *EventRepository) SumAllCompletedPayments(ctx context.Context) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = ?`,
		domain.PaymentStatusCompleted).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum total payments: %w", err)
	}
	return sum, nil
}

func (r *EventRepository) CountCompletedPayments(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments WHERE status = ?`,
		domain.PaymentStatusCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *EventRepository) SumActiveMonthlySubscriptions(ctx context.Context) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM subscriptions
		WHERE status = ? AND billing_cycle = ?`,
		domain.SubscriptionActive, domain.BillingCycleMonthly).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum subscriptions: %w", err)
	}
	return sum, nil
}

func (r *EventRepository) DailyEventTrends(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DATE(timestamp) AS day, COUNT(*) FROM events
		WHERE timestamp > ?
		GROUP BY day ORDER BY day`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily trends: %w", err)
	}
	defer rows.Close()

	var trends []domain.TrendPoint
	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		trends = append(trends, p)
	}
	return trends, rows.Err()
}

func (r *EventRepository) TopUsersByEvents(ctx context.Context, since time.Time, limit int) ([]domain.UserEventCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS cnt FROM events
		WHERE timestamp > ? AND user_id IS NOT NULL
		GROUP BY user_id ORDER BY cnt DESC, user_id LIMIT ?`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserEventCount
	for rows.Next() {
		var u domain.UserEventCount
		if err := rows.Scan(&u.UserID, &u.Count); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *EventRepository) ToolStats(ctx context.Context, since time.Time) ([]domain.ToolStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tool_name, COUNT(*), AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END) * 100,
		       COALESCE(AVG(execution_time_ms), 0)
		FROM tool_usage
		WHERE timestamp > ?
		GROUP BY tool_name ORDER BY COUNT(*) DESC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query tool stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ToolStats
	for rows.Next() {
		var s domain.ToolStats
		if err := rows.Scan(&s.ToolName, &s.UsageCount, &s.SuccessRate, &s.AvgExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan tool stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *EventRepository) ToolAnalytics(ctx context.Context, toolID string, since time.Time) (*domain.ToolAnalytics, error) {
	analytics := &domain.ToolAnalytics{ToolID: toolID, Trends: []domain.TrendPoint{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END) * 100, 0),
		       COALESCE(AVG(execution_time_ms), 0)
		FROM tool_usage
		WHERE tool_id = ? AND timestamp > ?`, toolID, since.UTC()).
		Scan(&analytics.UsageCount, &analytics.SuccessRate, &analytics.AvgExecutionTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool analytics: %w", err)
	}

	if analytics.UsageCount == 0 {
		return analytics, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DATE(timestamp) AS day, COUNT(*) FROM tool_usage
		WHERE tool_id = ? AND timestamp > ?
		GROUP BY day ORDER BY day`, toolID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query tool trends: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tool trend: %w", err)
		}
		analytics.Trends = append(analytics.Trends, p)
	}
	return analytics, rows.Err()
}

func (r *EventRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *EventRepository) Close() error {
	return r.db.Close()
}

// nullable maps empty strings to SQL NULL so DISTINCT/NOT NULL aggregate
// filters behave like the schema expects.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ ports.EventRepository = (*EventRepository)(nil)
