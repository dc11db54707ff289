package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestShutdownHooksRunInPriorityOrder(t *testing.T) {
	s := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	s.RegisterHook("late", 90, record("late"))
	s.RegisterHook("early", 10, record("early"))
	s.RegisterHook("middle", 50, record("middle"))

	s.Start()
	s.Shutdown()
	if !s.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}

	want := []string{"early", "middle", "late"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestShutdownContinuesPastFailingHook(t *testing.T) {
	s := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})

	ran := false
	s.RegisterHook("failing", 10, func(ctx context.Context) error {
		return errors.New("boom")
	})
	s.RegisterHook("after", 20, func(ctx context.Context) error {
		ran = true
		return nil
	})

	s.Start()
	s.Shutdown()
	if !s.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}
	if !ran {
		t.Error("expected later hook to run despite earlier failure")
	}
}

func TestShutdownBeforeStartIsNoop(t *testing.T) {
	s := NewShutdownHandler(nil)
	s.Shutdown() // must not panic or close anything

	select {
	case <-s.Done():
		t.Error("shutdown must not complete before Start")
	default:
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	s := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})
	s.Start()
	s.Shutdown()
	s.Shutdown()
	if !s.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}
}

func TestGracefulServer_ReadinessDropsOnShutdown(t *testing.T) {
	g := NewGracefulServer(nil, &ShutdownConfig{Timeout: time.Second})
	g.Shutdown.Start()
	g.Health.SetReady(true)

	g.Shutdown.Shutdown()
	if !g.Shutdown.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}

	// Readiness flips asynchronously off the shutdown channel.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		g.Health.mu.RLock()
		ready := g.Health.ready
		g.Health.mu.RUnlock()
		if !ready {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected readiness to drop after shutdown")
}
