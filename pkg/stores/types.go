package stores

import (
	"time"
)

// RunRow is one persisted run.
type RunRow struct {
	ID          string     `json:"id"`
	Goals       string     `json:"goals"` // space-joined requested goal names
	Outcome     string     `json:"outcome"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Branch      string     `json:"branch,omitempty"`
	Commit      string     `json:"commit,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WorkUnitRow is one persisted workunit belonging to a run.
type WorkUnitRow struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	Labels     string    `json:"labels"` // comma-joined label names
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}
