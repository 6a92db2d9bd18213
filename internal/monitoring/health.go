package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`

	fn HealthCheckFunc
}

type healthChecker struct {
	mu     sync.RWMutex
	checks map[string]HealthCheck
}

var globalHealthChecker = &healthChecker{
	checks: make(map[string]HealthCheck),
}

// RegisterHealthCheck adds a named dependency probe run by the health
// and readiness endpoints.
func RegisterHealthCheck(name string, fn HealthCheckFunc) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks[name] = HealthCheck{Name: name, fn: fn}
}

// RunHealthChecks executes every registered probe with a short timeout.
func RunHealthChecks() map[string]HealthCheck {
	globalHealthChecker.mu.RLock()
	checks := make([]HealthCheck, 0, len(globalHealthChecker.checks))
	for _, check := range globalHealthChecker.checks {
		checks = append(checks, check)
	}
	globalHealthChecker.mu.RUnlock()

	results := make(map[string]HealthCheck, len(checks))
	for _, check := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := check.fn(ctx)
		cancel()

		result := HealthCheck{
			Name:      check.Name,
			Status:    "healthy",
			CheckedAt: time.Now(),
			fn:        check.fn,
		}
		if err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
		}
		results[check.Name] = result
	}
	return results
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()
		status := "healthy"
		code := http.StatusOK
		if !allHealthy(checks) {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()
		if !allHealthy(checks) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		globalMetrics.mu.RLock()
		start := globalMetrics.StartTime
		globalMetrics.mu.RUnlock()
		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
			"uptime": time.Since(start).String(),
		})
	}
}
