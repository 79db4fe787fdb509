package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/swerve/internal/sim"
)

func testResult() *sim.Result {
	return &sim.Result{
		States: []sim.State{
			{0.1, 0, 0, 0, -0.2, 0, 0, 0},
			{0.09, -1, 0.001, 0.5, -0.18, 2, 0.002, 1},
		},
		Controls: []sim.Control{
			{-0.2, 0.05, 0.4, 0.05},
		},
		Times:      []float64{0, 0.002},
		StepsTaken: 1,
		Metrics: map[string]float64{
			"steering_error": 0.15,
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Name:       "square",
		Seed:       42,
		Rate:       500,
		Duration:   0.002,
		Integrator: "rk4",
		Limiter:    "budget",
		Modules:    []string{"back_left", "front_left"},
	}
	runID, err := st.Save(meta, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "square_") {
		t.Errorf("unexpected run id %q", runID)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Seed != 42 || loaded.Integrator != "rk4" || loaded.Steps != 1 {
		t.Errorf("metadata mismatch: %+v", loaded)
	}
	if loaded.Metrics["steering_error"] != 0.15 {
		t.Errorf("expected steering_error 0.15, got %f", loaded.Metrics["steering_error"])
	}

	trace, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	if len(trace.Times) != 2 || len(trace.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(trace.Rows))
	}
	if len(trace.Header) != 1+8+4 {
		t.Fatalf("unexpected header %v", trace.Header)
	}

	pivot := trace.Column("front_left.pivot_angle")
	if pivot == nil || pivot[1] != -0.18 {
		t.Errorf("front_left.pivot_angle = %v", pivot)
	}
	// The final row repeats the last control.
	cmd := trace.Column("front_left.pivot_cmd")
	if cmd == nil || cmd[0] != 0.4 || cmd[1] != 0.4 {
		t.Errorf("front_left.pivot_cmd = %v", cmd)
	}
	if trace.Column("nope") != nil {
		t.Error("expected nil for a missing column")
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("empty store: %v, %v", runs, err)
	}

	for _, name := range []string{"a", "b"} {
		if _, err := st.Save(RunMetadata{Name: name}, testResult()); err != nil {
			t.Fatal(err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Name != "a" || runs[1].Name != "b" {
		t.Errorf("expected oldest first, got %s, %s", runs[0].Name, runs[1].Name)
	}
}

func TestStoreNotFound(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Load: expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadTrace("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LoadTrace: expected ErrRunNotFound, got %v", err)
	}
}

func TestStoreRecordsErrors(t *testing.T) {
	st := New(t.TempDir())
	result := testResult()
	result.Errors = []error{sim.SimError{Time: 0.002, Step: 1, Message: "invalid state (NaN/Inf)"}}

	id, err := st.Save(RunMetadata{Name: "bad"}, result)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := st.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", meta.Errors)
	}
}

func TestTraceHeaderFallback(t *testing.T) {
	header := TraceHeader(nil, 4, 2)
	want := []string{"time", "m0.pivot_angle", "m0.pivot_rate", "m0.wheel_angle", "m0.wheel_rate", "m0.pivot_cmd", "m0.wheel_cmd"}
	if strings.Join(header, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", header, want)
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	id, err := st.Save(RunMetadata{Name: "x", Modules: []string{"a", "b"}}, testResult())
	if err != nil {
		t.Fatal(err)
	}
	meta, _ := st.Load(id)
	trace, _ := st.LoadTrace(id)

	var buf bytes.Buffer
	if err := ExportJSON(&buf, meta, trace); err != nil {
		t.Fatal(err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Run.ID != id || len(data.Rows) != 2 {
		t.Errorf("unexpected export %+v", data)
	}

	buf.Reset()
	if err := ExportCSV(&buf, trace, []string{"b.wheel_rate", "missing"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if lines[0] != "time,b.wheel_rate" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "0.002000,1" {
		t.Errorf("row = %q", lines[2])
	}
}
