package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/specs"
)

// ResolutionError reports a spec or dependency that could not be resolved
// against the declared targets. It is fatal to the run.
type ResolutionError struct {
	// Spec is the offending raw spec or dependency string.
	Spec string

	// Reason describes why resolution failed.
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Spec, e.Reason)
}

// ErrTargetNotInjected is returned by GetTarget for addresses outside the
// injected closure.
var ErrTargetNotInjected = errors.New("target not injected into build graph")

// BuildGraph is the narrow interface the run engine consumes. Implementations
// own target storage; the engine only injects roots and reads targets back.
type BuildGraph interface {
	// InjectRootsClosure resolves the address specs, materializes the matched
	// targets plus their full transitive dependency closure, and returns the
	// root addresses in match order. With failFast set the first resolution
	// error aborts; otherwise errors are collected and returned joined.
	InjectRootsClosure(ctx context.Context, addressSpecs []specs.AddressSpec, failFast bool) ([]Address, error)

	// GetTarget returns an injected target by address.
	GetTarget(addr Address) (*Target, error)
}

// Graph is the in-memory BuildGraph backed by an AddressMapper over parsed
// target declarations.
type Graph struct {
	mapper  *AddressMapper
	targets map[string]*Target
	logger  zerolog.Logger
}

// NewGraph creates an empty graph over the given declarations.
func NewGraph(mapper *AddressMapper, logger zerolog.Logger) *Graph {
	return &Graph{
		mapper:  mapper,
		targets: make(map[string]*Target),
		logger:  logger.With().Str("component", "build-graph").Logger(),
	}
}

// InjectRootsClosure implements BuildGraph.
func (g *Graph) InjectRootsClosure(ctx context.Context, addressSpecs []specs.AddressSpec, failFast bool) ([]Address, error) {
	var roots []Address
	var errs []error

	for _, sp := range addressSpecs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched, err := g.mapper.Matches(sp)
		if err != nil {
			if failFast {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		for _, addr := range matched {
			if err := g.inject(addr, nil); err != nil {
				if failFast {
					return nil, err
				}
				errs = append(errs, err)
				continue
			}
			roots = append(roots, addr)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.logger.Debug().
		Int("roots", len(roots)).
		Int("targets", len(g.targets)).
		Msg("injected roots closure")
	return roots, nil
}

// inject materializes addr and, recursively, its dependencies. The chain
// argument tracks the path from the root for dependency-cycle reporting.
func (g *Graph) inject(addr Address, chain []Address) error {
	key := addr.String()
	for _, seen := range chain {
		if seen == addr {
			return &ResolutionError{
				Spec:   key,
				Reason: fmt.Sprintf("dependency cycle via %s", formatChain(append(chain, addr))),
			}
		}
	}
	if _, done := g.targets[key]; done {
		return nil
	}

	decl, ok := g.mapper.Declaration(addr)
	if !ok {
		return &ResolutionError{Spec: key, Reason: "target not declared in any build file"}
	}

	target := &Target{
		Address: addr,
		Tags:    decl.Tags,
		Sources: decl.Sources,
	}
	// Insert before recursing so diamond dependencies resolve once.
	g.targets[key] = target

	for _, rawDep := range decl.Dependencies {
		depAddr, err := ParseAddress(rawDep)
		if err != nil {
			delete(g.targets, key)
			return &ResolutionError{Spec: rawDep, Reason: fmt.Sprintf("declared by %s: %v", key, err)}
		}
		if err := g.inject(depAddr, append(chain, addr)); err != nil {
			delete(g.targets, key)
			return err
		}
		target.Dependencies = append(target.Dependencies, depAddr)
	}
	return nil
}

// GetTarget implements BuildGraph.
func (g *Graph) GetTarget(addr Address) (*Target, error) {
	t, ok := g.targets[addr.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, ErrTargetNotInjected)
	}
	return t, nil
}

// Len returns the number of injected targets.
func (g *Graph) Len() int {
	return len(g.targets)
}

// Targets returns every injected target. Order is not specified.
func (g *Graph) Targets() []*Target {
	out := make([]*Target, 0, len(g.targets))
	for _, t := range g.targets {
		out = append(out, t)
	}
	return out
}

func formatChain(chain []Address) string {
	s := ""
	for i, a := range chain {
		if i > 0 {
			s += " -> "
		}
		s += a.String()
	}
	return s
}
