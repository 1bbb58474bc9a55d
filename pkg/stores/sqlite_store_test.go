package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "anvil.db"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Expected no error initializing store, got: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, started time.Time) RunRow {
	completed := started.Add(2 * time.Second)
	return RunRow{
		ID:          id,
		Goals:       "compile test",
		Outcome:     "success",
		StartedAt:   started,
		CompletedAt: &completed,
		Branch:      "main",
		Commit:      "abc123",
		CreatedAt:   started,
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Fatal("Expected an error for an empty path")
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC().Truncate(time.Second))
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Goals != run.Goals || got.Outcome != run.Outcome || got.Branch != run.Branch || got.Commit != run.Commit {
		t.Errorf("Expected the saved run back, got %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("Expected a completion timestamp")
	}

	if _, err := store.GetRun(ctx, "nope"); err == nil {
		t.Error("Expected an error for an unknown run ID")
	}
}

func TestSQLiteStore_SaveRunIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	run.Outcome = "failure"
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Outcome != "failure" {
		t.Errorf("Expected the updated outcome, got %s", got.Outcome)
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		if err := store.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Errorf("Expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestSQLiteStore_WorkUnitsForRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	if err := store.SaveRun(ctx, sampleRun("run-1", started)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rows := []WorkUnitRow{
		{ID: "wu-1", RunID: "run-1", Name: "setup", Labels: "setup", Outcome: "success", StartedAt: started, DurationMS: 12},
		{ID: "wu-2", RunID: "run-1", Name: "compile", Labels: "goal", Outcome: "failure", StartedAt: started.Add(time.Second), DurationMS: 480},
	}
	if err := store.SaveWorkUnits(ctx, rows); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := store.SaveWorkUnits(ctx, nil); err != nil {
		t.Fatalf("Expected an empty batch to be a no-op, got: %v", err)
	}

	got, err := store.WorkUnitsForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 workunits, got %d", len(got))
	}
	if got[0].Name != "setup" || got[1].Name != "compile" {
		t.Errorf("Expected start order, got %s then %s", got[0].Name, got[1].Name)
	}
	if got[1].Outcome != "failure" || got[1].DurationMS != 480 {
		t.Errorf("Expected the compile row back intact, got %+v", got[1])
	}
}
