package reporting

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// InvalidationEntry records one stale/fresh decision for a target.
type InvalidationEntry struct {
	Target    string    `yaml:"target"`
	Stale     bool      `yaml:"stale"`
	Reason    string    `yaml:"reason,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// InvalidationReport is an append-only record of which targets were
// considered stale or fresh during the run. It is flushed exactly once,
// after all goals have executed; later Flush calls are no-ops.
type InvalidationReport struct {
	runID string
	path  string

	mu      sync.Mutex
	entries []InvalidationEntry
	flushed bool
}

// NewInvalidationReport creates a report that flushes to the given path.
func NewInvalidationReport(runID, path string) *InvalidationReport {
	return &InvalidationReport{runID: runID, path: path}
}

// Add appends one decision. Appending after the report was flushed is a
// programming error and is dropped.
func (ir *InvalidationReport) Add(target string, stale bool, reason string) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	if ir.flushed {
		return
	}
	ir.entries = append(ir.entries, InvalidationEntry{
		Target:    target,
		Stale:     stale,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// Len returns the number of recorded entries.
func (ir *InvalidationReport) Len() int {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return len(ir.entries)
}

// Flushed reports whether the report has been finalized.
func (ir *InvalidationReport) Flushed() bool {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return ir.flushed
}

// Flush writes the report as a YAML document and seals it. Only the first
// call writes; every later call returns nil without touching the file.
func (ir *InvalidationReport) Flush() error {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	if ir.flushed {
		return nil
	}
	ir.flushed = true

	doc := struct {
		RunID   string              `yaml:"run_id"`
		Entries []InvalidationEntry `yaml:"entries"`
	}{
		RunID:   ir.runID,
		Entries: ir.entries,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation report: %w", err)
	}
	if err := os.WriteFile(ir.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write invalidation report: %w", err)
	}
	return nil
}
