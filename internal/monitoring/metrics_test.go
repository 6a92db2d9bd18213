package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// The metrics and health registries are process globals, so every test
// starts from a clean slate.
func resetMetrics() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.RequestCount = 0
	globalMetrics.RequestDuration = 0
	globalMetrics.ActiveRequests = 0
	globalMetrics.ErrorCount = 0
	globalMetrics.StatusCodes = make(map[string]int64)
	globalMetrics.Endpoints = make(map[string]int64)
	globalMetrics.StartTime = time.Now()
	globalMetrics.LastRequest = time.Time{}
	globalMetrics.totalDuration = 0
}

func resetHealthChecks() {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks = make(map[string]HealthCheck)
}

// newMetricsRouter mounts the middleware in front of handlers shaped
// like the API's own routes: a list endpoint, a scoped lookup that
// reads as not found, and a failing write.
func newMetricsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/v1/tasks", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{})
	})
	r.GET("/api/v1/tasks/:id", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	})
	r.POST("/api/v1/projects", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
	return r
}

func hit(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMetricsMiddleware_CountsByStatusAndEndpoint(t *testing.T) {
	resetMetrics()
	router := newMetricsRouter()

	for i := 0; i < 3; i++ {
		hit(router, "GET", "/api/v1/tasks")
	}
	hit(router, "GET", "/api/v1/tasks/7")
	hit(router, "POST", "/api/v1/projects")

	m := GetMetrics()
	if m.RequestCount != 5 {
		t.Errorf("expected 5 requests, got %d", m.RequestCount)
	}
	if m.ActiveRequests != 0 {
		t.Errorf("expected no active requests after completion, got %d", m.ActiveRequests)
	}
	if m.StatusCodes["OK"] != 3 {
		t.Errorf("expected 3 OK responses, got %d", m.StatusCodes["OK"])
	}
	if m.StatusCodes["Not Found"] != 1 {
		t.Errorf("expected 1 Not Found response, got %d", m.StatusCodes["Not Found"])
	}
	if m.Endpoints["GET /api/v1/tasks"] != 3 {
		t.Errorf("expected 3 hits on the list route, got %d", m.Endpoints["GET /api/v1/tasks"])
	}
	// Parameterized routes aggregate under the pattern, not the raw path.
	if m.Endpoints["GET /api/v1/tasks/:id"] != 1 {
		t.Errorf("expected 1 hit on the lookup pattern, got %v", m.Endpoints)
	}
	if m.LastRequest.IsZero() {
		t.Error("expected last request time to be stamped")
	}
}

func TestMetricsMiddleware_ErrorsAreServerSideOnly(t *testing.T) {
	resetMetrics()
	router := newMetricsRouter()

	// A scoped lookup reading as 404 is normal operation, not an error.
	hit(router, "GET", "/api/v1/tasks/7")
	if m := GetMetrics(); m.ErrorCount != 0 {
		t.Errorf("expected 404 to leave error count at 0, got %d", m.ErrorCount)
	}

	hit(router, "POST", "/api/v1/projects")
	if m := GetMetrics(); m.ErrorCount != 1 {
		t.Errorf("expected 1 error after a 500, got %d", m.ErrorCount)
	}
}

func TestGetMetrics_SnapshotIsolated(t *testing.T) {
	resetMetrics()
	router := newMetricsRouter()
	hit(router, "GET", "/api/v1/tasks")

	snapshot := GetMetrics()
	snapshot.StatusCodes["OK"] = 999
	snapshot.Endpoints["GET /api/v1/tasks"] = 999

	if m := GetMetrics(); m.StatusCodes["OK"] != 1 || m.Endpoints["GET /api/v1/tasks"] != 1 {
		t.Errorf("mutating a snapshot must not touch the live counters, got %v %v", m.StatusCodes, m.Endpoints)
	}
}

func TestMetricsMiddleware_Concurrent(t *testing.T) {
	resetMetrics()
	router := newMetricsRouter()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hit(router, "GET", "/api/v1/tasks")
		}()
	}
	wg.Wait()

	m := GetMetrics()
	if m.RequestCount != 10 {
		t.Errorf("expected 10 requests, got %d", m.RequestCount)
	}
	if m.ActiveRequests != 0 {
		t.Errorf("expected no active requests, got %d", m.ActiveRequests)
	}
}

func TestGetSystemMetrics(t *testing.T) {
	m := GetSystemMetrics()
	if m.Uptime <= 0 {
		t.Error("expected positive uptime")
	}
	if m.GoroutineCount <= 0 {
		t.Error("expected positive goroutine count")
	}
	if m.GoVersion != runtime.Version() {
		t.Errorf("go version = %q, want %q", m.GoVersion, runtime.Version())
	}
	if got := bToMb(5 * 1024 * 1024); got != 5 {
		t.Errorf("bToMb(5MiB) = %d, want 5", got)
	}
}

func TestRunHealthChecks(t *testing.T) {
	resetHealthChecks()
	RegisterHealthCheck("database", func(ctx context.Context) error { return nil })
	RegisterHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	checks := RunHealthChecks()
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks["database"].Status != "healthy" {
		t.Errorf("database check = %q, want healthy", checks["database"].Status)
	}
	if checks["redis"].Status != "unhealthy" || checks["redis"].Message != "connection refused" {
		t.Errorf("redis check = %+v, want unhealthy with the dependency's message", checks["redis"])
	}
	if checks["database"].CheckedAt.IsZero() {
		t.Error("expected checks to be timestamped")
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler())

	resetHealthChecks()
	RegisterHealthCheck("database", func(ctx context.Context) error { return nil })

	w := hit(router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}

	// One failing dependency flips the whole endpoint.
	RegisterHealthCheck("redis", func(ctx context.Context) error { return errors.New("down") })
	w = hit(router, "GET", "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with a failing check, got %d", w.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ready", ReadinessHandler())

	resetHealthChecks()
	RegisterHealthCheck("database", func(ctx context.Context) error { return nil })

	w := hit(router, "GET", "/ready")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	RegisterHealthCheck("database", func(ctx context.Context) error { return errors.New("not ready") })
	w = hit(router, "GET", "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/live", LivenessHandler())

	w := hit(router, "GET", "/live")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("status = %v, want alive", body["status"])
	}
	if body["uptime"] == nil {
		t.Error("expected an uptime field")
	}
}

func TestMetricsHandler(t *testing.T) {
	resetMetrics()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/api/v1/tasks", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	router.GET("/metrics", MetricsHandler())

	hit(router, "GET", "/api/v1/tasks")

	w := hit(router, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Application MetricsSnapshot        `json:"application"`
		System      map[string]interface{} `json:"system"`
		Timestamp   string                 `json:"timestamp"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Application.RequestCount < 1 {
		t.Errorf("expected at least 1 counted request, got %d", body.Application.RequestCount)
	}
	if body.Application.Endpoints["GET /api/v1/tasks"] != 1 {
		t.Errorf("expected the tasks route in the snapshot, got %v", body.Application.Endpoints)
	}
	if body.System["go_version"] == nil {
		t.Error("expected system metrics in the response")
	}
	if body.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}
