// Package specs defines the user-supplied target spec types and the
// validation gate that rejects spec kinds the goal engine cannot run.
package specs

import (
	"strings"
)

// AddressSpec identifies targets by build-graph address pattern.
// Supported forms: "path/to/dir:name", "path/to/dir:" (all targets in the
// directory) and "path/to/dir::" (all targets under the directory,
// recursively).
type AddressSpec struct {
	// Spec is the raw address pattern as typed by the user.
	Spec string `json:"spec"`
}

// FilesystemSpec identifies targets by the files they own, via a file path
// or glob pattern such as "src/jvm/**/*.java".
type FilesystemSpec struct {
	// Glob is the raw file path or glob pattern as typed by the user.
	Glob string `json:"glob"`
}

// HasWildcard reports whether the glob contains a wildcard character.
func (f FilesystemSpec) HasWildcard() bool {
	return strings.ContainsAny(f.Glob, "*?")
}

// Specs holds the ordered collections of both spec kinds for a run.
// Specs values are immutable once parsed.
type Specs struct {
	AddressSpecs    []AddressSpec    `json:"address_specs,omitempty"`
	FilesystemSpecs []FilesystemSpec `json:"filesystem_specs,omitempty"`
}

// Empty reports whether no specs of either kind were provided.
func (s Specs) Empty() bool {
	return len(s.AddressSpecs) == 0 && len(s.FilesystemSpecs) == 0
}

// Parse classifies raw command-line spec arguments into address and
// filesystem specs. Arguments containing a colon are address patterns;
// everything else is treated as a file path or glob.
func Parse(args []string) Specs {
	var out Specs
	for _, arg := range args {
		if arg == "" {
			continue
		}
		if strings.Contains(arg, ":") {
			out.AddressSpecs = append(out.AddressSpecs, AddressSpec{Spec: arg})
		} else {
			out.FilesystemSpecs = append(out.FilesystemSpecs, FilesystemSpec{Glob: arg})
		}
	}
	return out
}
