package engine

import (
	"fmt"
	"sync"
)

// Goal is a named, user-requestable unit of work composed of ordered tasks.
type Goal struct {
	// Name is the goal's registered name, unique per registry.
	Name string

	// Description is shown by goal listings.
	Description string

	// Tasks are the goal's task descriptors in declaration order.
	Tasks []*Task
}

// HasQuietTask reports whether any of the goal's tasks is quiet-capable.
func (g *Goal) HasQuietTask() bool {
	for _, t := range g.Tasks {
		if t.Quiet {
			return true
		}
	}
	return false
}

// Registry maps goal names to their canonical Goal instances. It is built at
// process startup and passed by reference; name resolution is a pure lookup.
type Registry struct {
	mu    sync.RWMutex
	goals map[string]*Goal
	order []string
}

// NewRegistry creates an empty goal registry.
func NewRegistry() *Registry {
	return &Registry{goals: make(map[string]*Goal)}
}

// Register adds a goal. Registering two goals with the same name, or a goal
// with duplicate task names, is a programming error and is rejected.
func (r *Registry) Register(g *Goal) error {
	if g == nil || g.Name == "" {
		return NewUsageError("goal must have a name", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.goals[g.Name]; exists {
		return NewUsageError(fmt.Sprintf("goal %q is already registered", g.Name), nil).WithGoal(g.Name)
	}
	seen := make(map[string]struct{}, len(g.Tasks))
	for _, t := range g.Tasks {
		if t.Name == "" {
			return NewUsageError(fmt.Sprintf("goal %q has a task with no name", g.Name), nil).WithGoal(g.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return NewUsageError(fmt.Sprintf("goal %q declares task %q twice", g.Name, t.Name), nil).
				WithGoal(g.Name).WithTask(t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	r.goals[g.Name] = g
	r.order = append(r.order, g.Name)
	return nil
}

// ByName resolves a goal name to its canonical instance. Unknown names are
// usage errors surfaced before any work begins.
func (r *Registry) ByName(name string) (*Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.goals[name]
	if !ok {
		return nil, NewUsageError(fmt.Sprintf("unknown goal: %q", name), nil).
			WithGoal(name).WithCode(ErrCodeUnknownGoal)
	}
	return g, nil
}

// Names returns registered goal names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
