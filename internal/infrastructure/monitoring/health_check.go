package monitoring

import (
	"context"
	"sync"
	"time"
)

type healthCheck struct {
	name    string
	probe   func(ctx context.Context) error
	timeout time.Duration
}

// HealthChecker aggregates dependency reachability probes (event store,
// counter cache) into a single report for the health endpoint.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []healthCheck
}

// HealthStatus is the health endpoint body: overall status plus a
// per-dependency breakdown.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, probe func(ctx context.Context) error, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, healthCheck{name: name, probe: probe, timeout: timeout})
}

// CheckAll runs every registered probe with its own timeout. One failure
// marks the overall status unhealthy; the remaining probes still run so the
// report is complete.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	for _, check := range h.checks {
		probeCtx, cancel := context.WithTimeout(ctx, check.timeout)
		err := check.probe(probeCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[check.name] = err.Error()
			continue
		}
		status.Checks[check.name] = "healthy"
	}

	return status
}
