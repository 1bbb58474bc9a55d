package options

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anvil.cue")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Expected no error writing config, got: %v", err)
	}
	return path
}

func TestLoadWorkspaceConfig_MissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadWorkspaceConfig(filepath.Join(t.TempDir(), "anvil.cue"))
	if err != nil {
		t.Fatalf("Expected no error for a missing config, got: %v", err)
	}
	if cfg.Workdir != "" || cfg.Quiet != nil {
		t.Errorf("Expected an empty config, got %+v", cfg)
	}
}

func TestLoadWorkspaceConfig_ParsesValues(t *testing.T) {
	path := writeConfig(t, `
workdir:   "build/.anvil.d"
quiet:     true
fail_fast: true
v2_goals: ["lint"]
`)

	cfg, err := LoadWorkspaceConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Workdir != "build/.anvil.d" {
		t.Errorf("Expected workdir build/.anvil.d, got %q", cfg.Workdir)
	}
	if cfg.Quiet == nil || !*cfg.Quiet {
		t.Errorf("Expected quiet true, got %v", cfg.Quiet)
	}
	if !cfg.FailFast {
		t.Error("Expected fail_fast true")
	}
	if len(cfg.V2Goals) != 1 || cfg.V2Goals[0] != "lint" {
		t.Errorf("Expected v2_goals [lint], got %v", cfg.V2Goals)
	}
}

func TestLoadWorkspaceConfig_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `work_dir: "build/.anvil.d"`)

	if _, err := LoadWorkspaceConfig(path); err == nil {
		t.Fatal("Expected an error for an unknown config field")
	}
}

func TestLoadWorkspaceConfig_RejectsBadWorkdir(t *testing.T) {
	path := writeConfig(t, `workdir: "build/output"`)

	if _, err := LoadWorkspaceConfig(path); err == nil {
		t.Fatal("Expected an error for a workdir without the required suffix")
	}
}

func TestWorkspaceConfig_ApplyTo_RespectsFlagRank(t *testing.T) {
	quiet := true
	cfg := &WorkspaceConfig{Workdir: "cfg/.anvil.d", Quiet: &quiet}

	var g GlobalOptions
	g.Workdir = "flag/.anvil.d"
	g.SetRank("workdir", RankFlag)

	cfg.ApplyTo(&g)

	if g.Workdir != "flag/.anvil.d" {
		t.Errorf("Expected the flag-ranked workdir to win, got %q", g.Workdir)
	}
	if !g.Quiet || g.GetRank("quiet") != RankConfig {
		t.Errorf("Expected quiet applied at config rank, got quiet=%v rank=%v", g.Quiet, g.GetRank("quiet"))
	}
}
