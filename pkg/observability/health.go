package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the status of a component.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// HealthCheck is a function that checks a single dependency.
type HealthCheck func(ctx context.Context) error

// ComponentHealth is the result of one component's check.
type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency int64        `json:"latency_ms"`
}

// HealthReport aggregates all component checks.
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// HealthChecker runs registered checks against dependencies.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthChecker creates a health checker with a per-check timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
	}
}

// Register adds a named check.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs all registered checks and aggregates the result.
// A single failing component marks the overall report degraded; all
// components failing marks it down.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.RLock()
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	report := HealthReport{
		Status:     HealthStatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		CheckedAt:  time.Now().UTC(),
	}

	failed := 0
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := check(checkCtx)
		cancel()

		component := ComponentHealth{
			Status:  HealthStatusUp,
			Latency: time.Since(start).Milliseconds(),
		}
		if err != nil {
			component.Status = HealthStatusDown
			component.Error = err.Error()
			failed++
		}
		report.Components[name] = component
	}

	switch {
	case failed == 0:
	case failed == len(checks):
		report.Status = HealthStatusDown
	default:
		report.Status = HealthStatusDegraded
	}

	return report
}

// Handler returns an http.Handler serving the health report as JSON.
// Down maps to 503; up and degraded map to 200.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := h.Check(r.Context())

		status := http.StatusOK
		if report.Status == HealthStatusDown {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
