// Package workers manages long-lived helper processes spawned by tasks.
//
// Tasks may launch background workers (compiler daemons, watchers) that
// outlive a single task invocation. The pool tracks them so the runner can
// terminate every worker when a run finishes or is interrupted.
package workers

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Worker is one tracked helper process.
type Worker struct {
	Name string
	PID  int

	process *os.Process
}

// Config contains pool configuration options.
type Config struct {
	Logger zerolog.Logger
	// GracePeriod is how long KillAll waits after SIGTERM before
	// escalating to SIGKILL.
	GracePeriod time.Duration
}

// Pool tracks worker processes for the duration of a run.
type Pool struct {
	logger zerolog.Logger
	grace  time.Duration

	mu      sync.Mutex
	workers map[int]*Worker
	closed  bool
}

// NewPool creates an empty worker pool.
func NewPool(cfg *Config) *Pool {
	grace := cfg.GracePeriod
	if grace == 0 {
		grace = 3 * time.Second
	}
	return &Pool{
		logger:  cfg.Logger,
		grace:   grace,
		workers: make(map[int]*Worker),
	}
}

// Launch starts a new worker process and registers it with the pool.
func (p *Pool) Launch(name, path string, args ...string) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("worker pool is closed")
	}

	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to launch worker %s: %w", name, err)
	}
	// Reap the child when it exits on its own so it does not linger as
	// a zombie until KillAll.
	go func() { _ = cmd.Wait() }()

	w := &Worker{
		Name:    name,
		PID:     cmd.Process.Pid,
		process: cmd.Process,
	}
	p.workers[w.PID] = w
	p.logger.Debug().Str("worker", name).Int("pid", w.PID).Msg("Worker launched")
	return w, nil
}

// Adopt registers an already-running process with the pool.
func (p *Pool) Adopt(name string, pid int) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("worker pool is closed")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to adopt worker %s (pid %d): %w", name, pid, err)
	}

	w := &Worker{
		Name:    name,
		PID:     pid,
		process: proc,
	}
	p.workers[pid] = w
	p.logger.Debug().Str("worker", name).Int("pid", pid).Msg("Worker adopted")
	return w, nil
}

// Len returns the number of tracked workers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// KillAll terminates every tracked worker and closes the pool. Workers get
// SIGTERM first and SIGKILL after the grace period. KillAll is idempotent.
func (p *Pool) KillAll() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.workers = make(map[int]*Worker)
	p.mu.Unlock()

	if len(workers) == 0 {
		return nil
	}

	var errs []error
	for _, w := range workers {
		if err := w.process.Signal(syscall.SIGTERM); err != nil {
			// Already gone.
			continue
		}
	}

	deadline := time.After(p.grace)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	remaining := workers
	for len(remaining) > 0 {
		select {
		case <-deadline:
			for _, w := range remaining {
				if err := w.process.Kill(); err != nil && !isProcessDone(err) {
					errs = append(errs, fmt.Errorf("failed to kill worker %s (pid %d): %w", w.Name, w.PID, err))
				} else {
					p.logger.Warn().Str("worker", w.Name).Int("pid", w.PID).Msg("Worker force killed")
				}
			}
			remaining = nil
		case <-ticker.C:
			alive := remaining[:0]
			for _, w := range remaining {
				if w.process.Signal(syscall.Signal(0)) == nil {
					alive = append(alive, w)
				} else {
					p.logger.Debug().Str("worker", w.Name).Int("pid", w.PID).Msg("Worker exited")
				}
			}
			remaining = alive
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during worker shutdown: %v", errs)
	}
	return nil
}

func isProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
