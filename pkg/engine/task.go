package engine

import (
	"context"
)

// Product names a type of artifact a task produces or consumes, for example
// "jars" or "classfiles". Product dependencies, not declaration order, drive
// scheduling across goals.
type Product string

// TaskFunc is the body of a task. It receives the cancellation context and
// the shared run context. A non-nil return records the task as failed; it
// does not by itself abort independent later tasks.
type TaskFunc func(ctx context.Context, rc *Context) error

// Task is the smallest schedulable unit of work.
type Task struct {
	// Name identifies the task within its goal.
	Name string

	// Produces lists the product types this task makes available.
	Produces []Product

	// Requires lists the product types this task consumes. Every required
	// product must be produced by some scheduled task.
	Requires []Product

	// Quiet marks the task as quiet-capable: requesting a goal containing
	// a quiet task puts the run in quiet mode unless overridden.
	Quiet bool

	// Run is the task body. A nil body is a no-op that always succeeds.
	Run TaskFunc
}

func (t *Task) run(ctx context.Context, rc *Context) error {
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx, rc)
}

// TaskStatus is the terminal execution state of a scheduled task.
type TaskStatus string

const (
	// TaskPending means the task has not been attempted yet.
	TaskPending TaskStatus = "pending"

	// TaskSucceeded means the task body returned nil.
	TaskSucceeded TaskStatus = "succeeded"

	// TaskFailed means the task body returned an error.
	TaskFailed TaskStatus = "failed"

	// TaskSkipped means a producer the task depends on failed or was
	// itself skipped, so the task was never attempted.
	TaskSkipped TaskStatus = "skipped"
)
