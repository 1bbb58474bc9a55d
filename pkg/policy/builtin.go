package policy

// GetBuiltinPolicies returns the policies compiled into the binary. They
// are always loaded; workspace policies from --policy-paths are layered on
// top.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		{
			Name:        "no-deprecated-deps",
			Description: "Targets must not depend on targets tagged 'deprecated' unless they are deprecated themselves.",
			Severity:    SeverityWarning,
			Enabled:     true,
			Rego: `package anvil.policies.deprecated

deny[result] {
	t := input.targets[_]
	not has_tag(t, "deprecated")
	dep := t.dependencies[_]
	other := input.targets[_]
	other.address == dep
	has_tag(other, "deprecated")
	result := {
		"message": sprintf("%s depends on deprecated target %s", [t.address, dep]),
		"target": t.address,
		"severity": "warning",
	}
}

has_tag(t, tag) {
	t.tags[_] == tag
}
`,
		},
		{
			Name:        "no-self-dependency",
			Description: "A target must not list itself as a dependency.",
			Severity:    SeverityError,
			Enabled:     true,
			Rego: `package anvil.policies.selfdep

deny[result] {
	t := input.targets[_]
	dep := t.dependencies[_]
	dep == t.address
	result := {
		"message": sprintf("%s depends on itself", [t.address]),
		"target": t.address,
		"severity": "error",
	}
}
`,
		},
	}
}
