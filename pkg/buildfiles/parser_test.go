package buildfiles

import (
	"context"
	"testing"
	"time"

	"github.com/anvilbuild/anvil/pkg/graph"
)

func parseOne(t *testing.T, dir, src string) []graph.TargetDeclaration {
	t.Helper()
	decls, err := NewParser(0).ParseFile(context.Background(), dir, []byte(src))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return decls
}

func TestParseFile_DeclaresTargets(t *testing.T) {
	decls := parseOne(t, "src/app", `
target(
    name = "app",
    deps = ["src/lib:lib", ":gen"],
    tags = ["binary"],
    sources = glob("*.go"),
)

target(name = "gen")
`)

	if len(decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d", len(decls))
	}
	app := decls[0]
	if app.Address.String() != "src/app:app" {
		t.Errorf("Expected address src/app:app, got %s", app.Address)
	}
	if len(app.Dependencies) != 2 || app.Dependencies[0] != "src/lib:lib" || app.Dependencies[1] != ":gen" {
		t.Errorf("Expected both deps, got %v", app.Dependencies)
	}
	if len(app.Tags) != 1 || app.Tags[0] != "binary" {
		t.Errorf("Expected tag binary, got %v", app.Tags)
	}
	if len(app.Sources) != 1 || app.Sources[0] != "*.go" {
		t.Errorf("Expected the glob pattern verbatim, got %v", app.Sources)
	}
	if decls[1].Address.String() != "src/app:gen" {
		t.Errorf("Expected address src/app:gen, got %s", decls[1].Address)
	}
}

func TestParseFile_StarlarkLogic(t *testing.T) {
	decls := parseOne(t, "src/svc", `
services = ["auth", "billing"]

for svc in services:
    target(name = svc, tags = ["service"])
`)

	if len(decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Address.Name != "auth" || decls[1].Address.Name != "billing" {
		t.Errorf("Expected auth and billing, got %v", decls)
	}
}

func TestParseFile_RejectsEmptyName(t *testing.T) {
	_, err := NewParser(0).ParseFile(context.Background(), "src/app", []byte(`target(name = "")`))
	if err == nil {
		t.Fatal("Expected an error for an empty target name")
	}
}

func TestParseFile_RejectsDuplicateName(t *testing.T) {
	_, err := NewParser(0).ParseFile(context.Background(), "src/app", []byte(`
target(name = "app")
target(name = "app")
`))
	if err == nil {
		t.Fatal("Expected an error for a duplicate target name")
	}
}

func TestParseFile_RejectsNonStringDeps(t *testing.T) {
	_, err := NewParser(0).ParseFile(context.Background(), "src/app", []byte(`
target(name = "app", deps = [1, 2])
`))
	if err == nil {
		t.Fatal("Expected an error for non-string deps")
	}
}

func TestParseFile_SyntaxError(t *testing.T) {
	_, err := NewParser(0).ParseFile(context.Background(), "src/app", []byte(`target(name =`))
	if err == nil {
		t.Fatal("Expected an error for invalid Starlark")
	}
}

func TestParseFile_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser(time.Second)
	src := `
x = [0]
for _ in range(1000000):
    x[0] = x[0] + 1
target(name = "app")
`
	if _, err := p.ParseFile(ctx, "src/app", []byte(src)); err == nil {
		t.Fatal("Expected an error for a cancelled context")
	}
}
