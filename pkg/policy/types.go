package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block execution.
	SeverityError Severity = "error"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Target is the address of the target that violated the policy.
	Target string `json:"target,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the outcome of evaluating all policies over the graph.
type Result struct {
	// Allowed indicates whether the run may proceed.
	Allowed bool `json:"allowed"`

	// Violations lists error-severity violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations below error severity.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// TargetInput is the shape of one target the policies see under
// input.targets.
type TargetInput struct {
	Address      string   `json:"address"`
	Dependencies []string `json:"dependencies"`
	Tags         []string `json:"tags"`
	Sources      []string `json:"sources"`
}

// Input is the document handed to every policy as input.
type Input struct {
	// Targets are the resolved targets in the closure being built.
	Targets []TargetInput `json:"targets"`

	// Goals are the goal names requested on the command line.
	Goals []string `json:"goals"`
}
