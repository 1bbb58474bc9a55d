// Package graph provides the build graph: addressable targets, their
// dependency edges, and transitive closure injection from address specs.
// The goal engine consumes it through the BuildGraph interface only.
package graph

import (
	"fmt"
	"path"
	"strings"
)

// Address uniquely identifies a target: a workspace-relative directory path
// plus a target name, rendered as "path/to/dir:name".
type Address struct {
	// Path is the workspace-relative directory containing the declaration.
	Path string `json:"path"`

	// Name is the target name within that directory.
	Name string `json:"name"`
}

// ParseAddress parses a concrete (non-wildcard) address of the form
// "path/to/dir:name". A bare "path/to/dir" addresses the default target,
// named after the directory's basename.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("address must not be empty")
	}
	if strings.Contains(s, "::") || strings.HasSuffix(s, ":") {
		return Address{}, fmt.Errorf("address %q is a pattern, not a concrete address", s)
	}
	dir, name, found := strings.Cut(s, ":")
	dir = path.Clean(dir)
	if dir == "." {
		dir = ""
	}
	if !found || name == "" {
		name = path.Base(dir)
	}
	if name == "" || name == "." {
		return Address{}, fmt.Errorf("address %q has no target name", s)
	}
	return Address{Path: dir, Name: name}, nil
}

// String renders the canonical "path:name" form.
func (a Address) String() string {
	return a.Path + ":" + a.Name
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a.Path == "" && a.Name == ""
}
