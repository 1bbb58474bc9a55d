package graph

// TargetDeclaration is a raw target as produced by a build-file parser,
// before addresses are resolved against the graph. Dependencies are kept as
// the raw strings from the declaration so resolution errors can name them.
type TargetDeclaration struct {
	// Address is the declared address of the target.
	Address Address `json:"address"`

	// Dependencies are raw dependency addresses as written in the build file.
	Dependencies []string `json:"dependencies,omitempty"`

	// Tags are free-form labels attached to the target.
	Tags []string `json:"tags,omitempty"`

	// Sources are the source file patterns owned by the target.
	Sources []string `json:"sources,omitempty"`
}

// Target is a resolved, addressable build unit. Targets are created during
// closure injection and live for the remainder of the run.
type Target struct {
	// Address is the target's identity in the graph.
	Address Address `json:"address"`

	// Dependencies are the resolved addresses of direct dependencies.
	Dependencies []Address `json:"dependencies,omitempty"`

	// Tags are free-form labels attached to the target.
	Tags []string `json:"tags,omitempty"`

	// Sources are the source file patterns owned by the target.
	Sources []string `json:"sources,omitempty"`
}

// HasTag reports whether the target carries the given tag.
func (t *Target) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}
