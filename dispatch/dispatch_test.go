package dispatch

import (
	"context"
	"testing"

	"github.com/Alivebyte/ShaderCompile/combo"
	"github.com/Alivebyte/ShaderCompile/diag"
	"github.com/Alivebyte/ShaderCompile/exec"
	"github.com/Alivebyte/ShaderCompile/pack"
	"github.com/Alivebyte/ShaderCompile/store"
)

func mustEnumerator(t *testing.T, descs []combo.EntryDescription) *combo.Enumerator {
	t.Helper()
	entries, err := combo.Describe(descs)
	if err != nil {
		t.Fatalf("combo.Describe: %v", err)
	}
	return combo.NewEnumerator(entries)
}

func countPacked(t *testing.T, st *store.Store, shader string, staticID uint64) int {
	t.Helper()
	packed, ok := st.TakePacked(shader, staticID)
	if !ok {
		return 0
	}
	blocks, err := pack.Decode(packed)
	if err != nil {
		t.Fatalf("pack.Decode: %v", err)
	}
	return len(blocks)
}

func TestRangeSingleThreadedSingleCombo(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "Trivial",
		ShaderVersion: "ps_2_0",
		StaticAxes:    []combo.Axis{{Name: "A", Min: 0, Max: 0}},
		DynamicAxes:   []combo.Axis{{Name: "B", Min: 0, Max: 0}},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	fake := exec.NewFake()
	r.Run(context.Background(), 1, fake, 0, nil, false)
	r.RangeFinished()

	if st.HadError("Trivial") {
		t.Fatal("unexpected error")
	}
	if n := countPacked(t, st, "Trivial", 0); n != 1 {
		t.Errorf("packed dynamics for static 0 = %d, want 1", n)
	}
	if fake.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", fake.CallCount())
	}
}

func TestRangeMultiThreadedManyCombos(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "Many",
		ShaderVersion: "ps_3_0",
		StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 3}},
		DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 9}},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	fake := exec.NewFake()
	r.Run(context.Background(), 4, fake, 0, nil, false)
	r.RangeFinished()

	if st.HadError("Many") {
		t.Fatal("unexpected error")
	}
	for staticID := uint64(0); staticID < 4; staticID++ {
		if n := countPacked(t, st, "Many", staticID); n != 10 {
			t.Errorf("static %d: packed dynamics = %d, want 10", staticID, n)
		}
	}
	if got := enum.Total(); fake.CallCount() != int(got) {
		t.Errorf("CallCount = %d, want %d", fake.CallCount(), got)
	}
}

func TestRangeSkipReducesCommands(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "Skippy",
		ShaderVersion: "ps_2_0",
		StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 1}},
		DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 3}},
		Skips:         []combo.Expr{combo.Eq("D", 3)},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	fake := exec.NewFake()
	r.Run(context.Background(), 2, fake, 0, nil, false)
	r.RangeFinished()

	// Each static combo has 3 surviving dynamic combos (D in 0..2).
	for staticID := uint64(0); staticID < 2; staticID++ {
		if n := countPacked(t, st, "Skippy", staticID); n != 3 {
			t.Errorf("static %d: packed dynamics = %d, want 3", staticID, n)
		}
	}
	if fake.CallCount() != 6 {
		t.Errorf("CallCount = %d, want 6", fake.CallCount())
	}
}

func TestRangeFailureMarksShaderAndReportsDiagnostics(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "Failing",
		ShaderVersion: "ps_2_0",
		StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 0}},
		DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 2}},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	cur := enum.NewCursor(1)
	failHandle := cur.Next(enum.Total())
	failCmd := failHandle.FormatCommand()
	combo.Release(failHandle)

	fake := exec.NewFake()
	fake.FailCommands = map[string]bool{failCmd: true}

	agg := diag.New()
	r.Run(context.Background(), 1, fake, 0, agg, false)
	r.RangeFinished()

	if !st.HadError("Failing") {
		t.Fatal("expected HadError to be true")
	}
	_, errCount := agg.Totals()
	if errCount == 0 {
		t.Error("expected at least one error recorded in the diagnostics aggregator")
	}
	// The two surviving dynamic combos still packaged.
	if n := countPacked(t, st, "Failing", 0); n != 2 {
		t.Errorf("packed dynamics = %d, want 2", n)
	}
}

func TestRangeFastFailStopsEarly(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "FastFail",
		ShaderVersion: "ps_2_0",
		StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 0}},
		DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 99}},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	cur := enum.NewCursor(0)
	firstHandle := cur.Next(enum.Total())
	failCmd := firstHandle.FormatCommand()
	combo.Release(firstHandle)

	fake := exec.NewFake()
	fake.FailCommands = map[string]bool{failCmd: true}

	r.Run(context.Background(), 1, fake, 0, nil, true)

	if !r.Stopped() {
		t.Error("expected range to be stopped after a fast-fail")
	}
	if fake.CallCount() >= 100 {
		t.Errorf("CallCount = %d, expected fast-fail to stop well short of the full range", fake.CallCount())
	}
}

func TestRangeContextCancellationStops(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{{
		Name:          "Cancelled",
		ShaderVersion: "ps_2_0",
		StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 0}},
		DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 99}},
	}})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := exec.NewFake()
	r.Run(ctx, 1, fake, 0, nil, false)

	if !r.Stopped() {
		t.Error("expected range to be stopped once ctx is already cancelled before Run")
	}
}

func TestRangeMultipleEntriesPackageIndependently(t *testing.T) {
	enum := mustEnumerator(t, []combo.EntryDescription{
		{
			Name:          "First",
			ShaderVersion: "ps_2_0",
			StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 1}},
			DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 1}},
		},
		{
			Name:          "Second",
			ShaderVersion: "ps_2_0",
			StaticAxes:    []combo.Axis{{Name: "S", Min: 0, Max: 1}},
			DynamicAxes:   []combo.Axis{{Name: "D", Min: 0, Max: 1}},
		},
	})
	st := store.New()
	r := NewRange(enum, st, 0, enum.Total())

	fake := exec.NewFake()
	r.Run(context.Background(), 3, fake, 0, nil, false)
	r.RangeFinished()

	for _, shader := range []string{"First", "Second"} {
		for staticID := uint64(0); staticID < 2; staticID++ {
			if n := countPacked(t, st, shader, staticID); n != 2 {
				t.Errorf("%s static %d: packed dynamics = %d, want 2", shader, staticID, n)
			}
		}
	}
}

func TestResolveThreads(t *testing.T) {
	if got := ResolveThreads(0); got <= 0 {
		t.Errorf("ResolveThreads(0) = %d, want > 0", got)
	}
	if got := ResolveThreads(1); got != 1 {
		t.Errorf("ResolveThreads(1) = %d, want 1", got)
	}
	if got := ResolveThreads(1 << 30); got <= 0 {
		t.Errorf("ResolveThreads(huge) = %d, want a clamped positive value", got)
	}
}
