package graph

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/anvilbuild/anvil/pkg/specs"
)

// AddressMapper resolves address spec patterns against the set of declared
// target addresses. It does not resolve dependencies; that is the graph's
// job during closure injection.
type AddressMapper struct {
	// byAddress indexes declarations by canonical address string.
	byAddress map[string]TargetDeclaration

	// ordered preserves declaration order for deterministic matching.
	ordered []Address
}

// NewAddressMapper indexes the given declarations. Duplicate addresses are
// a build-file authoring error and are rejected.
func NewAddressMapper(decls []TargetDeclaration) (*AddressMapper, error) {
	m := &AddressMapper{
		byAddress: make(map[string]TargetDeclaration, len(decls)),
		ordered:   make([]Address, 0, len(decls)),
	}
	for _, d := range decls {
		key := d.Address.String()
		if _, exists := m.byAddress[key]; exists {
			return nil, fmt.Errorf("target %s is declared more than once", key)
		}
		m.byAddress[key] = d
		m.ordered = append(m.ordered, d.Address)
	}
	return m, nil
}

// Declaration returns the declaration at the given address.
func (m *AddressMapper) Declaration(addr Address) (TargetDeclaration, bool) {
	d, ok := m.byAddress[addr.String()]
	return d, ok
}

// Matches resolves one address spec pattern to the declared addresses it
// covers, in declaration order. A pattern that matches nothing is a
// resolution error tagged with the offending spec.
func (m *AddressMapper) Matches(sp specs.AddressSpec) ([]Address, error) {
	raw := sp.Spec

	switch {
	case strings.HasSuffix(raw, "::"):
		root := path.Clean(strings.TrimSuffix(raw, "::"))
		if root == "." {
			root = ""
		}
		matched := m.under(root, true)
		if len(matched) == 0 {
			return nil, &ResolutionError{Spec: raw, Reason: "no targets found under directory"}
		}
		return matched, nil

	case strings.HasSuffix(raw, ":"):
		dir := path.Clean(strings.TrimSuffix(raw, ":"))
		if dir == "." {
			dir = ""
		}
		matched := m.under(dir, false)
		if len(matched) == 0 {
			return nil, &ResolutionError{Spec: raw, Reason: "no targets found in directory"}
		}
		return matched, nil

	default:
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, &ResolutionError{Spec: raw, Reason: err.Error()}
		}
		if _, ok := m.byAddress[addr.String()]; !ok {
			return nil, &ResolutionError{Spec: raw, Reason: "target not declared in any build file"}
		}
		return []Address{addr}, nil
	}
}

// under returns declared addresses in dir, or under dir when recursive.
func (m *AddressMapper) under(dir string, recursive bool) []Address {
	var out []Address
	for _, addr := range m.ordered {
		if addr.Path == dir {
			out = append(out, addr)
			continue
		}
		if recursive && (dir == "" || strings.HasPrefix(addr.Path, dir+"/")) {
			out = append(out, addr)
		}
	}
	return out
}

// Addresses returns every declared address, sorted canonically.
func (m *AddressMapper) Addresses() []Address {
	out := make([]Address, len(m.ordered))
	copy(out, m.ordered)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
