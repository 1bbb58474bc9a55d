package buildfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/graph"
	"github.com/anvilbuild/anvil/pkg/specs"
)

func writeBuildFile(t *testing.T, root, dir, name, src string) {
	t.Helper()
	full := filepath.Join(root, dir)
	if err := os.MkdirAll(full, 0755); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := os.WriteFile(filepath.Join(full, name), []byte(src), 0644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestWorkspace_ScanDeclarations(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, "", BuildFileName, `target(name = "root")`)
	writeBuildFile(t, root, "src/app", BuildFileName, `target(name = "app", deps = ["src/lib:lib"])`)
	writeBuildFile(t, root, "src/lib", BuildFileName, `target(name = "lib")`)

	// Neither hidden directories nor the work directory are scanned.
	writeBuildFile(t, root, ".git", BuildFileName, `target(name = "ignored")`)
	writeBuildFile(t, root, "build/.anvil.d", BuildFileName, `target(name = "ignored")`)

	ws := NewWorkspace(root, nil, zerolog.Nop())
	decls, err := ws.ScanDeclarations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(decls) != 3 {
		t.Fatalf("Expected 3 declarations, got %d: %v", len(decls), decls)
	}
	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		seen[d.Address.String()] = true
	}
	for _, want := range []string{":root", "src/app:app", "src/lib:lib"} {
		if !seen[want] {
			t.Errorf("Expected declaration %s, got %v", want, decls)
		}
	}
}

func TestWorkspace_CustomBuildFileName(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, "src/app", "ANVIL", `target(name = "app")`)
	writeBuildFile(t, root, "src/lib", BuildFileName, `target(name = "lib")`)

	ws := NewWorkspace(root, nil, zerolog.Nop())
	ws.SetBuildFileName("ANVIL")

	decls, err := ws.ScanDeclarations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(decls) != 1 || decls[0].Address.String() != "src/app:app" {
		t.Errorf("Expected only the ANVIL declaration, got %v", decls)
	}
}

func TestWorkspace_CreateBuildGraph(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, "src/app", BuildFileName, `target(name = "app", deps = ["src/lib:lib"])`)
	writeBuildFile(t, root, "src/lib", BuildFileName, `target(name = "lib")`)

	ws := NewWorkspace(root, nil, zerolog.Nop())
	bg, mapper, err := ws.CreateBuildGraph(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if mapper == nil {
		t.Fatal("Expected an address mapper")
	}

	roots, err := bg.InjectRootsClosure(context.Background(), []specs.AddressSpec{{Spec: "src/app:app"}}, false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("Expected one root, got %v", roots)
	}
	if _, err := bg.GetTarget(graph.Address{Path: "src/lib", Name: "lib"}); err != nil {
		t.Errorf("Expected the dependency to be injected, got: %v", err)
	}
}

func TestWorkspace_PropagatesEvaluationErrors(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, "src/app", BuildFileName, `target(name =`)

	ws := NewWorkspace(root, nil, zerolog.Nop())
	if _, err := ws.ScanDeclarations(context.Background()); err == nil {
		t.Fatal("Expected an error for an invalid BUILD file")
	}
}
