package specs

import (
	"strings"
	"testing"
)

func TestParse_SplitsAddressAndFilesystemSpecs(t *testing.T) {
	sp := Parse([]string{"src/core:lib", "src/jvm/Example.java", "src::", "docs/*.md"})

	if len(sp.AddressSpecs) != 2 {
		t.Fatalf("Expected 2 address specs, got %d", len(sp.AddressSpecs))
	}
	if len(sp.FilesystemSpecs) != 2 {
		t.Fatalf("Expected 2 filesystem specs, got %d", len(sp.FilesystemSpecs))
	}
	if sp.AddressSpecs[0].Spec != "src/core:lib" {
		t.Errorf("Expected first address spec src/core:lib, got %s", sp.AddressSpecs[0].Spec)
	}
	if sp.FilesystemSpecs[0].Glob != "src/jvm/Example.java" {
		t.Errorf("Expected first filesystem spec src/jvm/Example.java, got %s", sp.FilesystemSpecs[0].Glob)
	}
}

func TestValidate_AddressSpecsOnly(t *testing.T) {
	sp := Parse([]string{"src/core:lib", "src::"})

	if err := Validate(sp, []string{"compile"}, "anvil"); err != nil {
		t.Fatalf("Expected no error for address specs, got: %v", err)
	}
}

func TestValidate_FilesystemSpecsRejected(t *testing.T) {
	sp := Parse([]string{"src/jvm/Example.java", "src/jvm/Other.java"})

	err := Validate(sp, []string{"compile", "test"}, "anvil")
	if err == nil {
		t.Fatal("Expected an error for filesystem specs")
	}

	msg := err.Error()
	for _, goal := range []string{"compile", "test"} {
		if !strings.Contains(msg, goal) {
			t.Errorf("Expected error message to contain goal %q, got: %s", goal, msg)
		}
	}
	for _, glob := range []string{"src/jvm/Example.java", "src/jvm/Other.java"} {
		if !strings.Contains(msg, glob) {
			t.Errorf("Expected error message to contain glob %q, got: %s", glob, msg)
		}
	}
	if !strings.Contains(msg, "--owner-of=src/jvm/Example.java") {
		t.Errorf("Expected corrected command with --owner-of, got: %s", msg)
	}
}

func TestValidate_WildcardGlobDemandsEnumeration(t *testing.T) {
	sp := Parse([]string{"src/**/*.java"})

	err := Validate(sp, []string{"compile"}, "anvil")
	if err == nil {
		t.Fatal("Expected an error for wildcard filesystem specs")
	}
	if !strings.Contains(err.Error(), "explicitly enumerate every file") {
		t.Errorf("Expected wildcard enumeration warning, got: %s", err.Error())
	}
}

func TestFilesystemSpec_HasWildcard(t *testing.T) {
	cases := []struct {
		glob string
		want bool
	}{
		{"src/jvm/Example.java", false},
		{"src/*.java", true},
		{"src/?.java", true},
	}
	for _, c := range cases {
		fs := FilesystemSpec{Glob: c.glob}
		if fs.HasWildcard() != c.want {
			t.Errorf("HasWildcard(%q) = %v, want %v", c.glob, fs.HasWildcard(), c.want)
		}
	}
}

func TestSpecs_Empty(t *testing.T) {
	if !Parse(nil).Empty() {
		t.Error("Expected empty specs for no args")
	}
	if Parse([]string{"src::"}).Empty() {
		t.Error("Expected non-empty specs")
	}
}
