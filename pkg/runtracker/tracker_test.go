package runtracker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/stores"
)

// captureStore records what the tracker persists at run end.
type captureStore struct {
	runs      []stores.RunRow
	workunits [][]stores.WorkUnitRow
}

func (s *captureStore) SaveRun(ctx context.Context, run stores.RunRow) error {
	s.runs = append(s.runs, run)
	return nil
}

func (s *captureStore) SaveWorkUnits(ctx context.Context, rows []stores.WorkUnitRow) error {
	s.workunits = append(s.workunits, rows)
	return nil
}

func TestRunTracker_OutcomeIsSticky(t *testing.T) {
	rt := New(Params{Logger: zerolog.Nop()})

	if got := rt.RootOutcome(); got != OutcomeSuccess {
		t.Fatalf("Expected the initial outcome to be %s, got %s", OutcomeSuccess, got)
	}

	rt.SetRootOutcome(OutcomeFailure)
	rt.SetRootOutcome(OutcomeSuccess)
	if got := rt.RootOutcome(); got != OutcomeFailure {
		t.Errorf("Expected failure to stick, got %s", got)
	}
}

func TestRunTracker_StartIsIdempotent(t *testing.T) {
	rt := New(Params{Logger: zerolog.Nop()})

	ctx := rt.Start(context.Background(), []string{"compile"})
	again := rt.Start(ctx, []string{"test"})
	if again != ctx {
		t.Error("Expected a repeated Start to return the same context")
	}
}

func TestRunTracker_EndIsIdempotentAndPersistsOnce(t *testing.T) {
	store := &captureStore{}
	rt := New(Params{Logger: zerolog.Nop(), Store: store})
	ctx := rt.Start(context.Background(), []string{"compile", "test"})

	_, wu := rt.NewWorkUnit(ctx, "setup", LabelSetup)
	wu.SetOutcome(OutcomeSuccess)
	wu.End()
	wu.End()

	rt.SetRootOutcome(OutcomeFailure)
	if err := rt.End(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := rt.End(ctx); err != nil {
		t.Fatalf("Expected a second End to be a no-op, got: %v", err)
	}

	if len(store.runs) != 1 {
		t.Fatalf("Expected exactly one persisted run, got %d", len(store.runs))
	}
	run := store.runs[0]
	if run.ID != rt.RunID() {
		t.Errorf("Expected run ID %s, got %s", rt.RunID(), run.ID)
	}
	if run.Goals != "compile test" {
		t.Errorf("Expected goals %q, got %q", "compile test", run.Goals)
	}
	if run.Outcome != "failure" {
		t.Errorf("Expected outcome failure, got %s", run.Outcome)
	}
	if run.CompletedAt == nil {
		t.Error("Expected a completion timestamp")
	}

	if len(store.workunits) != 1 || len(store.workunits[0]) != 1 {
		t.Fatalf("Expected one batch with one workunit row, got %v", store.workunits)
	}
	row := store.workunits[0][0]
	if row.Name != "setup" || row.RunID != rt.RunID() {
		t.Errorf("Expected the setup workunit for this run, got %+v", row)
	}
	if row.Labels != "setup" {
		t.Errorf("Expected label setup, got %q", row.Labels)
	}
}

func TestRunTracker_EndBeforeStartIsNoop(t *testing.T) {
	store := &captureStore{}
	rt := New(Params{Logger: zerolog.Nop(), Store: store})

	if err := rt.End(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.runs) != 0 {
		t.Errorf("Expected nothing persisted for an unstarted run, got %d runs", len(store.runs))
	}
}

func TestRunTracker_SortedGoalInfos(t *testing.T) {
	rt := New(Params{Logger: zerolog.Nop()})

	if infos := rt.SortedGoalInfos(); infos != nil {
		t.Fatalf("Expected no schedule before sorting, got %v", infos)
	}

	published := []GoalInfo{
		{Goal: "resolve", Tasks: []string{"resolve"}},
		{Goal: "compile", Tasks: []string{"compile"}},
	}
	rt.SetSortedGoalInfos(published)

	infos := rt.SortedGoalInfos()
	if len(infos) != 2 || infos[0].Goal != "resolve" || infos[1].Goal != "compile" {
		t.Errorf("Expected the published schedule back, got %v", infos)
	}
}

func TestWorkUnit_FailureIsSticky(t *testing.T) {
	rt := New(Params{Logger: zerolog.Nop()})
	ctx := rt.Start(context.Background(), []string{"compile"})

	_, wu := rt.NewWorkUnit(ctx, "parse", LabelSetup)
	wu.SetOutcome(OutcomeFailure)
	wu.SetOutcome(OutcomeSuccess)
	wu.End()

	rt.mu.Lock()
	rows := rt.workunits
	rt.mu.Unlock()
	if len(rows) != 1 {
		t.Fatalf("Expected one workunit row, got %d", len(rows))
	}
	if rows[0].Outcome != "failure" {
		t.Errorf("Expected the workunit failure to stick, got %s", rows[0].Outcome)
	}
}
