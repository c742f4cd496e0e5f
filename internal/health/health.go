// Package health provides health check endpoints for the document store.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/store"
)

// HealthCheck manages health check functionality.
type HealthCheck struct {
	objects       store.ObjectStore
	metrics       *metrics.Metrics
	logger        *zap.Logger
	mu            sync.RWMutex
	ready         bool
	lastCheck     time.Time
	checkInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewHealthCheck creates a new HealthCheck instance. A nil object store
// means the service runs without durable storage and is always ready.
func NewHealthCheck(objects store.ObjectStore, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	hc := &HealthCheck{
		objects:       objects,
		metrics:       m,
		logger:        logger,
		ready:         objects == nil,
		checkInterval: 5 * time.Second,
		stop:          make(chan struct{}),
	}

	// Start background health check
	if objects != nil {
		go hc.backgroundCheck()
	}

	return hc
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK if the service can handle requests.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if hc.objects == nil {
		resp := ReadinessResponse{
			Status: "ready",
			Checks: map[string]string{
				"durable_storage": "disabled",
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
		return
	}

	hc.mu.RLock()
	isReady := hc.ready
	hc.mu.RUnlock()

	if isReady {
		resp := ReadinessResponse{
			Status: "ready",
			Checks: map[string]string{
				"durable_storage": "healthy",
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
		return
	}

	// Perform a fresh check if not ready
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := hc.objects.Ping(ctx); err != nil {
		resp := ReadinessResponse{
			Status: "not_ready",
			Checks: map[string]string{
				"durable_storage": "unhealthy",
			},
			Error: err.Error(),
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(resp)
		return
	}

	// Update ready status
	hc.mu.Lock()
	hc.ready = true
	hc.lastCheck = time.Now()
	hc.mu.Unlock()
	hc.metrics.SetHealthStatus(true)

	resp := ReadinessResponse{
		Status: "ready",
		Checks: map[string]string{
			"durable_storage": "healthy",
		},
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// backgroundCheck performs periodic health checks until Stop is called.
func (hc *HealthCheck) backgroundCheck() {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := hc.objects.Ping(ctx)
		cancel()

		hc.mu.Lock()
		if err != nil {
			hc.ready = false
			hc.logger.Warn("durable storage health check failed", zap.Error(err))
		} else {
			hc.ready = true
		}
		hc.lastCheck = time.Now()
		hc.mu.Unlock()
		hc.metrics.SetHealthStatus(err == nil)
	}
}

// Stop ends the background check goroutine. Safe to call more than once.
func (hc *HealthCheck) Stop() {
	hc.stopOnce.Do(func() { close(hc.stop) })
}

// IsReady returns the current readiness status.
func (hc *HealthCheck) IsReady() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.ready
}

// SetReady sets the readiness status (for testing).
func (hc *HealthCheck) SetReady(ready bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ready = ready
}
