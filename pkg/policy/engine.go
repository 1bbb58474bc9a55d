package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/graph"
)

// Engine compiles Rego policies and evaluates them against target graphs.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
}

// compiledPolicy pairs a policy with its prepared query.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a policy engine preloaded with the built-in policies.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range GetBuiltinPolicies() {
		if err := e.compileAndStore(context.Background(), &p); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
	}

	return e, nil
}

// LoadPolicies loads and compiles policy files from the given paths.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if err := e.compileAndStore(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded")
	return nil
}

// EvaluateGraph evaluates every enabled policy against the target closure.
// The run is allowed unless some policy produced an error-severity
// violation.
func (e *Engine) EvaluateGraph(ctx context.Context, targets []*graph.Target, goals []string) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := buildInput(targets, goals)

	var violations, warnings []Violation
	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}

		found, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			return nil, fmt.Errorf("policy %s evaluation failed: %w", cp.policy.Name, err)
		}
		for _, v := range found {
			if v.Severity == SeverityError {
				violations = append(violations, v)
			} else {
				warnings = append(warnings, v)
			}
		}
	}

	for _, w := range warnings {
		e.logger.Warn().
			Str("policy", w.Policy).
			Str("target", w.Target).
			Msg(w.Message)
	}

	return &Result{
		Allowed:     len(violations) == 0,
		Violations:  violations,
		Warnings:    warnings,
		EvaluatedAt: time.Now(),
	}, nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	return policies
}

func buildInput(targets []*graph.Target, goals []string) *Input {
	in := &Input{Goals: goals}
	for _, t := range targets {
		deps := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = d.String()
		}
		in.Targets = append(in.Targets, TargetInput{
			Address:      t.Address.String(),
			Dependencies: deps,
			Tags:         t.Tags,
			Sources:      t.Sources,
		})
	}
	return in
}

func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	packageName := extractPackageName(cp.policy.Rego)
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, e.toViolation(cp.policy, d))
			}
		}
	}
	return violations, nil
}

func (e *Engine) toViolation(policy *Policy, result interface{}) Violation {
	v := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch val := result.(type) {
	case string:
		v.Message = val
	case map[string]interface{}:
		if msg, ok := val["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := val["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if target, ok := val["target"].(string); ok {
			v.Target = target
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "anvil.policies"
}

func (e *Engine) compileAndStore(ctx context.Context, policy *Policy) error {
	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query("data"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled")
	return nil
}
