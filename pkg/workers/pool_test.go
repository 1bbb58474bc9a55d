package workers

import (
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPool() *Pool {
	return NewPool(&Config{Logger: zerolog.Nop(), GracePeriod: 500 * time.Millisecond})
}

func TestPool_LaunchAndKillAll(t *testing.T) {
	p := newTestPool()

	w, err := p.Launch("sleeper", "sleep", "60")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if w.PID <= 0 {
		t.Errorf("Expected a valid pid, got %d", w.PID)
	}
	if p.Len() != 1 {
		t.Fatalf("Expected 1 tracked worker, got %d", p.Len())
	}

	if err := p.KillAll(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Expected no tracked workers after KillAll, got %d", p.Len())
	}
}

func TestPool_KillAllIsIdempotent(t *testing.T) {
	p := newTestPool()

	if _, err := p.Launch("sleeper", "sleep", "60"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := p.KillAll(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := p.KillAll(); err != nil {
		t.Fatalf("Expected a second KillAll to be a no-op, got: %v", err)
	}
}

func TestPool_ClosedPoolRejectsNewWorkers(t *testing.T) {
	p := newTestPool()
	if err := p.KillAll(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := p.Launch("late", "sleep", "60"); err == nil {
		t.Error("Expected Launch on a closed pool to fail")
	}
	if _, err := p.Adopt("late", 1); err == nil {
		t.Error("Expected Adopt on a closed pool to fail")
	}
}

func TestPool_KillAllSurvivesAlreadyExitedWorker(t *testing.T) {
	p := newTestPool()

	w, err := p.Launch("flash", "true")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// Give the process time to exit and be reaped.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.process.Signal(syscall.Signal(0)) != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := p.KillAll(); err != nil {
		t.Fatalf("Expected KillAll to tolerate an exited worker, got: %v", err)
	}
}
