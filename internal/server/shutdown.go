package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ShutdownHandler manages graceful shutdown of services.
type ShutdownHandler struct {
	mu           sync.Mutex
	hooks        []ShutdownHook
	timeout      time.Duration
	signals      []os.Signal
	logger       *slog.Logger
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	started      bool
	shutdownOnce sync.Once
	doneOnce     sync.Once
}

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int // Lower priority runs first
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout for graceful shutdown (default: 30s)
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT)
	Signals []os.Signal
	Logger  *slog.Logger
}

// DefaultShutdownConfig returns default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// NewShutdownHandler creates a new shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ShutdownHandler{
		timeout:    config.Timeout,
		signals:    config.Signals,
		logger:     logger,
		shutdownCh: make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a shutdown hook.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, ShutdownHook{
		Name:     name,
		Priority: priority,
		Fn:       fn,
	})
	sort.SliceStable(s.hooks, func(i, j int) bool {
		return s.hooks[i].Priority < s.hooks[j].Priority
	})
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			signal.Stop(sigCh)
			s.logger.Info("shutdown signal received", "signal", sig.String())
			s.shutdown()
		case <-s.shutdownCh:
			signal.Stop(sigCh)
			s.shutdown()
		}
	}()
}

// Shutdown triggers a manual shutdown.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Wait blocks until shutdown is complete.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// WaitWithTimeout blocks until shutdown is complete or timeout.
func (s *ShutdownHandler) WaitWithTimeout(timeout time.Duration) bool {
	select {
	case <-s.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns a channel that closes when shutdown is complete.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

// ShutdownCh returns a channel that receives when shutdown starts.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

func (s *ShutdownHandler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
		}
	}

	s.doneOnce.Do(func() {
		close(s.doneCh)
	})
}

// GracefulServer combines the operational endpoints with shutdown handling.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer creates a server with health checks and graceful shutdown.
func NewGracefulServer(healthConfig *HealthConfig, shutdownConfig *ShutdownConfig) *GracefulServer {
	health := NewHealthServer(healthConfig)
	shutdown := NewShutdownHandler(shutdownConfig)

	shutdown.RegisterHook("health-server", 5, func(ctx context.Context) error {
		health.Shutdown()
		return nil
	})

	// Fail the readiness probe as soon as shutdown starts.
	go func() {
		<-shutdown.ShutdownCh()
		health.SetReady(false)
	}()

	return &GracefulServer{
		Health:   health,
		Shutdown: shutdown,
	}
}

// Start starts the health server and shutdown handler.
func (g *GracefulServer) Start(addr string) error {
	g.Shutdown.Start()

	go func() {
		g.Health.ListenAndServe(addr)
	}()

	g.Health.SetReady(true)
	return nil
}

// Wait waits for shutdown to complete.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}

// RegisterHook adds a shutdown hook.
func (g *GracefulServer) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	g.Shutdown.RegisterHook(name, priority, fn)
}
