package http

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Check(ctx context.Context) HealthResponse
}

// HealthCheckFunc performs a single check and returns an error if it fails.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the overall state of the service.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Checks    []CheckResult `json:"checks,omitempty"`
	Uptime    string        `json:"uptime,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

type namedCheck struct {
	name     string
	critical bool
	fn       HealthCheckFunc
}

// CompositeHealthChecker runs registered checks concurrently. A failing
// critical check makes the service unhealthy, any other failure degraded.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    []namedCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker creates a new composite health checker.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		startTime: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

// SetTimeout sets the timeout for individual health checks.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// AddCheck registers a named check.
func (c *CompositeHealthChecker) AddCheck(name string, critical bool, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, critical: critical, fn: check})
}

// Check performs all health checks and returns the aggregated status.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthResponse {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check namedCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := check.fn(checkCtx)
			result := CheckResult{
				Name:     check.name,
				Healthy:  err == nil,
				Critical: check.critical,
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Message = err.Error()
			}
			results[i] = result
		}(i, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	for _, r := range results {
		if r.Healthy {
			continue
		}
		if r.Critical {
			resp.Status = HealthStatusUnhealthy
		} else if resp.Status == HealthStatusHealthy {
			resp.Status = HealthStatusDegraded
		}
	}
	resp.Checks = results
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMON HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything with a context-aware ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck turns a Pinger into a check.
func PingCheck(p Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
