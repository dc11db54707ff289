// Package server provides the operational HTTP surface: health probes,
// reconciliation status and metrics, plus graceful shutdown plumbing.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/talentsync/talentsync/internal/reconcile"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// SyncStatus reports the reconciliation state for the /syncz endpoint.
type SyncStatus struct {
	Running     bool               `json:"running"`
	LastOutcome *reconcile.Outcome `json:"last_outcome,omitempty"`
}

// SyncReporter exposes reconciliation state. *reconcile.Engine satisfies it.
type SyncReporter interface {
	IsRunning() bool
	LastOutcome() *reconcile.Outcome
}

// HealthChecker is a function that performs a health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer provides the operational HTTP endpoints.
type HealthServer struct {
	mu           sync.RWMutex
	checks       map[string]HealthChecker
	version      string
	ready        bool
	live         bool
	sync         SyncReporter
	metrics      http.Handler
	shutdownChan chan struct{}
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
	// Sync, when set, enables the /syncz endpoint.
	Sync SyncReporter
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

// NewHealthServer creates a new health server.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{
		checks:       make(map[string]HealthChecker),
		ready:        false,
		live:         true,
		shutdownChan: make(chan struct{}),
	}
	if config != nil {
		s.version = config.Version
		s.sync = config.Sync
		s.metrics = config.Metrics
	}
	return s
}

// RegisterCheck adds a health check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns an http.Handler for the operational endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/livez", s.handleLive)
	mux.HandleFunc("/syncz", s.handleSync)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ListenAndServe starts the health server.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-s.shutdownChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.ListenAndServe()
}

// Shutdown gracefully stops the health server.
func (s *HealthServer) Shutdown() {
	close(s.shutdownChan)
}

// handleHealth runs every registered check and reports the worst status.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(checks)),
	}

	for name, checker := range checks {
		check := checker(ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
			response.Status = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, statusCode, response)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if !ready {
		response.Status = HealthStatusUnhealthy
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	live := s.live
	s.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if !live {
		response.Status = HealthStatusUnhealthy
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSync reports whether a reconciliation sweep is running and the last
// completed outcome.
func (s *HealthServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, SyncStatus{
		Running:     s.sync.IsRunning(),
		LastOutcome: s.sync.LastOutcome(),
	})
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Common health checkers

// RecordStoreHealthChecker reports Neo4j connectivity.
func RecordStoreHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "record store connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "record store connection OK",
		}
	}
}

// VectorIndexHealthChecker reports Qdrant connectivity.
func VectorIndexHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "vector index connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "vector index connection OK",
		}
	}
}

// TemporalHealthChecker reports Temporal connectivity.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "temporal connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "temporal connection OK",
		}
	}
}

// LLMHealthChecker reports language-model provider availability. The service
// degrades rather than fails without its provider, so a failing check is
// degraded, not unhealthy.
func LLMHealthChecker(providerName string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if checkFn == nil {
			return HealthCheck{
				Status:  HealthStatusHealthy,
				Message: "LLM provider configured: " + providerName,
			}
		}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "LLM provider degraded: " + err.Error(),
				Details: map[string]string{"provider": providerName},
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "LLM provider OK",
			Details: map[string]string{"provider": providerName},
		}
	}
}
