package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass classifies an engine error for propagation policy: usage and
// scheduling errors are raised before any task runs, resolution errors abort
// setup, execution errors record a failed outcome, and interrupts are
// re-propagated after cleanup.
type ErrorClass string

const (
	// ErrorClassUsage indicates a configuration or usage error: unsupported
	// spec kinds, unknown goal names. Detected before any work begins.
	ErrorClassUsage ErrorClass = "usage"

	// ErrorClassResolution indicates a spec or dependency that could not be
	// resolved against the build graph.
	ErrorClassResolution ErrorClass = "resolution"

	// ErrorClassScheduling indicates the task set cannot be ordered, for
	// example a cyclic product dependency or a missing producer.
	ErrorClassScheduling ErrorClass = "scheduling"

	// ErrorClassExecution indicates a hard failure escaping task execution,
	// as opposed to an ordinary task failure recorded in the run outcome.
	ErrorClassExecution ErrorClass = "execution"

	// ErrorClassInterrupted indicates the run was cancelled by the user.
	// Interrupt errors surface only after worker teardown has completed.
	ErrorClassInterrupted ErrorClass = "interrupted"
)

// EngineError is a classified error with goal/task context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Goal is the goal being processed when the error occurred.
	Goal string `json:"goal,omitempty"`

	// Task is the task being processed when the error occurred.
	Task string `json:"task,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	scope := ""
	switch {
	case e.Goal != "" && e.Task != "":
		scope = fmt.Sprintf(" (goal=%s, task=%s)", e.Goal, e.Task)
	case e.Goal != "":
		scope = fmt.Sprintf(" (goal=%s)", e.Goal)
	case e.Task != "":
		scope = fmt.Sprintf(" (task=%s)", e.Task)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s%s: %s", e.Class, e.Message, scope, e.Err)
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, scope)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// NewUsageError creates a new usage error.
func NewUsageError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassUsage, Message: message, Err: err}
}

// NewResolutionError creates a new resolution error.
func NewResolutionError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassResolution, Message: message, Err: err}
}

// NewSchedulingError creates a new scheduling error.
func NewSchedulingError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassScheduling, Message: message, Err: err}
}

// NewExecutionError creates a new execution error.
func NewExecutionError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassExecution, Message: message, Err: err}
}

// NewInterruptedError creates a new interrupted error.
func NewInterruptedError(err error) *EngineError {
	return &EngineError{Class: ErrorClassInterrupted, Message: "run interrupted", Err: err}
}

// WithGoal adds goal context to an error.
func (e *EngineError) WithGoal(goal string) *EngineError {
	e.Goal = goal
	return e
}

// WithTask adds task context to an error.
func (e *EngineError) WithTask(task string) *EngineError {
	e.Task = task
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// IsUsage returns true if the error is classified as a usage error.
func IsUsage(err error) bool {
	return classOf(err) == ErrorClassUsage
}

// IsResolution returns true if the error is classified as a resolution error.
func IsResolution(err error) bool {
	return classOf(err) == ErrorClassResolution
}

// IsScheduling returns true if the error is classified as a scheduling error.
func IsScheduling(err error) bool {
	return classOf(err) == ErrorClassScheduling
}

// IsInterrupted returns true if the error is an interrupt, either a
// classified EngineError or a raw context cancellation.
func IsInterrupted(err error) bool {
	if classOf(err) == ErrorClassInterrupted {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func classOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeUnknownGoal      = "UNKNOWN_GOAL"
	ErrCodeUnsupportedSpecs = "UNSUPPORTED_SPECS"
	ErrCodeTaskCycle        = "TASK_CYCLE"
	ErrCodeMissingProduct   = "MISSING_PRODUCT"
	ErrCodePolicy           = "POLICY_VIOLATION"
	ErrCodeInternal         = "INTERNAL_ERROR"
)
