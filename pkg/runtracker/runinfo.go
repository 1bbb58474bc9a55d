package runtracker

import (
	"os/exec"
	"strings"
	"sync"
)

// RunInfo is an append-only key/value record of run metadata: requested
// goals, SCM state, machine info.
type RunInfo struct {
	mu   sync.Mutex
	info map[string]string
}

func newRunInfo() *RunInfo {
	return &RunInfo{info: make(map[string]string)}
}

// Add records one metadata entry.
func (ri *RunInfo) Add(key, value string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.info[key] = value
}

// Get returns the value for key, or the empty string.
func (ri *RunInfo) Get(key string) string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.info[key]
}

// Snapshot returns a copy of all recorded metadata.
func (ri *RunInfo) Snapshot() map[string]string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	out := make(map[string]string, len(ri.info))
	for k, v := range ri.info {
		out[k] = v
	}
	return out
}

// AddSCMInfo detects git metadata for the workspace rooted at rootDir and
// records it. Called after build-file parsing succeeds, since parsing is
// what establishes the workspace root. A workspace outside source control
// is not an error.
func (ri *RunInfo) AddSCMInfo(rootDir string) {
	if branch, ok := gitOutput(rootDir, "rev-parse", "--abbrev-ref", "HEAD"); ok {
		ri.Add("branch", branch)
	}
	if commit, ok := gitOutput(rootDir, "rev-parse", "HEAD"); ok {
		ri.Add("commit", commit)
	}
}

func gitOutput(dir string, args ...string) (string, bool) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}
