package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/mpc"
)

func newTestStore(t *testing.T) (*Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(t.TempDir(), WithClock(mock))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func sampleResult() *dynamo.Result {
	return &dynamo.Result{
		States: []dynamo.State{
			{1.0, 0.0},
			{0.9, -0.1},
			{0.79, -0.12},
		},
		Controls: []dynamo.Control{
			{0.5},
			{-0.25},
		},
		Times: []float64{0.0, 0.01, 0.02},
		Metrics: map[string]float64{
			"cost":      1.5,
			"stability": math.Inf(1),
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	runID, err := st.Save(ctx, RunMetadata{
		Kind: KindSolve, Model: "rocket", Integrator: "exact", Preset: "nominal",
		Seed: 42, Dt: 0.01, Duration: 0.02, Knots: 3, Status: "succeeded",
	}, sampleResult(), nil)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if len(runID) != 26 {
		t.Errorf("expected a ULID, got %q", runID)
	}

	meta, err := st.Load(ctx, runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Model != "rocket" || meta.Preset != "nominal" || meta.Kind != KindSolve {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Metrics["cost"] != 1.5 {
		t.Errorf("expected cost 1.5, got %f", meta.Metrics["cost"])
	}
	if _, ok := meta.Metrics["stability"]; ok {
		t.Error("non-finite metric should not be stored")
	}
	if !meta.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", meta.Timestamp)
	}

	_, result, err := st.LoadResult(ctx, runID)
	if err != nil {
		t.Fatalf("load result failed: %v", err)
	}
	want := sampleResult()
	if len(result.States) != 3 || len(result.Controls) != 2 {
		t.Fatalf("got %d states and %d controls", len(result.States), len(result.Controls))
	}
	for k := range want.States {
		for i := range want.States[k] {
			if result.States[k][i] != want.States[k][i] {
				t.Errorf("state %d[%d] = %g, want %g", k, i, result.States[k][i], want.States[k][i])
			}
		}
	}
	if result.Controls[1][0] != -0.25 || result.Times[2] != 0.02 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Load(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	st, mock := newTestStore(t)

	first, err := st.Save(ctx, RunMetadata{Kind: KindSolve, Model: "rocket", Integrator: "exact", Status: "succeeded"}, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}
	mock.Add(time.Minute)
	second, err := st.Save(ctx, RunMetadata{Kind: KindMPC, Model: "rocket", Integrator: "rk4", Status: "succeeded"}, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := st.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("unexpected order %+v", runs)
	}

	mpcRuns, err := st.List(ctx, KindMPC)
	if err != nil {
		t.Fatal(err)
	}
	if len(mpcRuns) != 1 || mpcRuns[0].Integrator != "rk4" {
		t.Errorf("unexpected mpc runs %+v", mpcRuns)
	}
}

func TestStoreSteps(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	records := StepRecords([]mpc.Step{
		{Iteration: 0, Time: 0.05, Status: altro.Succeeded, Iterations: 3, SolveTime: 2 * time.Millisecond, TrackingError: 0.1},
		{Iteration: 1, Time: 0.10, Status: altro.MaxIterations, Iterations: 1, SolveTime: time.Millisecond, TrackingError: 0.2},
	})
	runID, err := st.Save(ctx, RunMetadata{Kind: KindMPC, Model: "rocket", Integrator: "exact", Status: "done"}, sampleResult(), records)
	if err != nil {
		t.Fatal(err)
	}

	steps, err := st.Steps(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].SolveMs != 2 || steps[1].Status != "max iterations" || steps[1].TrackingError != 0.2 {
		t.Errorf("unexpected steps %+v", steps)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	runID, err := st.Save(ctx, RunMetadata{Kind: KindSolve, Model: "rocket", Integrator: "exact", Status: "succeeded"}, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, runID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(st.Dir(), runID)); !os.IsNotExist(err) {
		t.Error("run directory should be removed")
	}
	if err := st.Delete(ctx, runID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := RunMetadata{ID: "run", Kind: KindSolve, Model: "rocket", Status: "succeeded"}
	if err := ExportJSON(&buf, meta, sampleResult(), nil); err != nil {
		t.Fatal(err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["model"] != "rocket" || got["steps"] != float64(3) {
		t.Errorf("unexpected export %v", got)
	}
	if states := got["states"].([]interface{}); len(states) != 3 {
		t.Errorf("expected 3 states, got %d", len(states))
	}
	if _, ok := got["mpc_steps"]; ok {
		t.Error("mpc_steps should be omitted for a solve")
	}
}

func TestReadCSVRejectsBadHeader(t *testing.T) {
	if _, err := ReadCSV(bytes.NewBufferString("t,x0\n0,1\n")); err == nil {
		t.Error("expected header error")
	}
}

func TestStoreIDsFollowClock(t *testing.T) {
	ctx := context.Background()
	meta := RunMetadata{Kind: KindSolve, Model: "rocket", Integrator: "exact", Status: "succeeded"}

	a, _ := newTestStore(t)
	b, _ := newTestStore(t)
	idA, err := a.Save(ctx, meta, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}
	idB, err := b.Save(ctx, meta, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if idA != idB {
		t.Errorf("stores on the same clock gave ids %s and %s", idA, idB)
	}
}

func TestStoreLoadBadTimestamp(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	runID, err := st.Save(ctx, RunMetadata{Kind: KindSolve, Model: "rocket", Integrator: "exact", Status: "succeeded"}, sampleResult(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.db.ExecContext(ctx, `UPDATE runs SET created_at = 'yesterday' WHERE id = ?`, runID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx, runID); err == nil {
		t.Error("expected an error for an unparsable created_at")
	}
	if _, err := st.List(ctx, ""); err == nil {
		t.Error("expected List to surface the bad row")
	}
}
