package recalc

import (
	"context"
	"math"
	"testing"
)

func TestCompileLastAssignmentWinsPerCell(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("kappa", edgeDim("a", "b", "c")))

	// First pin a and b, then free b again. Per cell the latest covering
	// assignment decides, so a stays constant while b and c are free.
	if err := ds.Assign("kappa", Assignment{Scope: Scope{"edge": {"a", "b"}}, Value: fptr(2), Const: true}); err != nil {
		t.Fatalf("assign const: %v", err)
	}
	if err := ds.Assign("kappa", Assignment{Scope: Scope{"edge": {"b"}}}); err != nil {
		t.Fatalf("assign free: %v", err)
	}

	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 2 {
		t.Fatalf("expected 2 free slots, got %d", calc.Size())
	}

	if err := calc.Apply([]float64{3, 4}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := mustFloat(t, ds, "kappa", map[string]string{"edge": "a"}); got != 2 {
		t.Fatalf("edge a = %v, want constant 2", got)
	}
	if got := mustFloat(t, ds, "kappa", map[string]string{"edge": "b"}); got != 3 {
		t.Fatalf("edge b = %v, want 3", got)
	}
	if got := mustFloat(t, ds, "kappa", map[string]string{"edge": "c"}); got != 4 {
		t.Fatalf("edge c = %v, want 4", got)
	}
}

func TestCompileGroupsSharedAssignment(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("kappa", edgeDim("a", "b", "c")))

	if err := ds.Assign("kappa", Assignment{Value: fptr(0.5), Independent: bptr(false)}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 1 {
		t.Fatalf("shared assignment should compile to 1 slot, got %d", calc.Size())
	}

	if err := calc.Apply([]float64{0.7}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := mustFloat(t, ds, "kappa", nil); got != 0.7 {
		t.Fatalf("shared value = %v, want 0.7", got)
	}
}

func TestCompileIndependentSplitsIntoCells(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("kappa", edgeDim("a", "b", "c")))

	if err := ds.Assign("kappa", Assignment{Value: fptr(0.5), Independent: bptr(true)}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 3 {
		t.Fatalf("independent assignment should compile to 3 slots, got %d", calc.Size())
	}
}

func TestCompileGroupInitialisesAtMean(t *testing.T) {
	ds := mustDefnSet(t, Defn{Name: "length", Kind: KindScalar, Dims: []Dimension{edgeDim("a", "b", "c")}, Init: 1, Lower: 0, Upper: 10})

	for edge, v := range map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3} {
		if err := ds.Assign("length", Assignment{Scope: Scope{"edge": {edge}}, Value: fptr(v)}); err != nil {
			t.Fatalf("assign %s: %v", edge, err)
		}
	}
	if err := ds.Assign("length", Assignment{Independent: bptr(false)}); err != nil {
		t.Fatalf("assign group: %v", err)
	}

	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 1 {
		t.Fatalf("expected 1 slot, got %d", calc.Size())
	}
	init := calc.InitialVector()
	if math.Abs(init[0]-0.2) > 1e-12 {
		t.Fatalf("group init = %v, want mean 0.2", init[0])
	}
}

func TestCompileTotalPreservesSum(t *testing.T) {
	ds := mustDefnSet(t, Defn{Name: "length", Kind: KindScalar, Dims: []Dimension{edgeDim("a", "b", "c")}, Init: 1, Lower: 0, Upper: 10})

	for edge, v := range map[string]float64{"a": 1, "b": 2, "c": 3} {
		if err := ds.Assign("length", Assignment{Scope: Scope{"edge": {edge}}, Value: fptr(v)}); err != nil {
			t.Fatalf("assign %s: %v", edge, err)
		}
	}
	if err := ds.Assign("length", Assignment{Total: fptr(6)}); err != nil {
		t.Fatalf("assign total: %v", err)
	}

	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 3 {
		t.Fatalf("expected 3 weight slots, got %d", calc.Size())
	}

	if err := calc.Apply([]float64{0.5, 0.25, 0.25}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	sum := 0.0
	for _, edge := range []string{"a", "b", "c"} {
		sum += mustFloat(t, ds, "length", map[string]string{"edge": edge})
	}
	if math.Abs(sum-6) > 1e-12 {
		t.Fatalf("lengths sum to %v after apply, want 6", sum)
	}
	if got := mustFloat(t, ds, "length", map[string]string{"edge": "a"}); math.Abs(got-3) > 1e-12 {
		t.Fatalf("edge a = %v, want 3", got)
	}
}

func TestCompileSimplexNormalisesOnApply(t *testing.T) {
	ds := mustDefnSet(t, Defn{Name: "mprobs", Kind: KindSimplex, SimplexLen: 4, Independent: true})

	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 4 {
		t.Fatalf("expected 4 weight slots, got %d", calc.Size())
	}

	if err := calc.Apply([]float64{0.8, 0.4, 0.4, 0.4}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	probs, err := ds.View().Simplex("mprobs", nil)
	if err != nil {
		t.Fatalf("simplex: %v", err)
	}
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("probs sum to %v, want 1", sum)
	}
	if math.Abs(probs[0]-0.4) > 1e-12 {
		t.Fatalf("probs[0] = %v, want 0.4", probs[0])
	}
}

func TestCompileBoundsFromAssignment(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("kappa", edgeDim("a")))

	if err := ds.Assign("kappa", Assignment{Lower: fptr(2), Upper: fptr(5)}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	lower, upper := calc.Bounds()
	if lower[0] != 2 || upper[0] != 5 {
		t.Fatalf("bounds = [%v, %v], want [2, 5]", lower[0], upper[0])
	}
	if init := calc.InitialVector(); init[0] != 2 {
		t.Fatalf("init = %v, want clamped to lower bound 2", init[0])
	}
}

func TestCompileRejectsConflictingBounds(t *testing.T) {
	ds := mustDefnSet(t, Defn{Name: "length", Kind: KindScalar, Dims: []Dimension{edgeDim("a")}, Init: 1, Lower: 0, Upper: 10})

	// Raising only the lower bound above the defn's upper bound surfaces
	// at compile time, once the effective pair is known.
	if err := ds.Assign("length", Assignment{Lower: fptr(20)}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := ds.Compile(); err == nil {
		t.Fatal("expected bounds conflict error")
	}
}

func TestEvaluateRunsObjective(t *testing.T) {
	ds := mustDefnSet(t, Defn{Name: "x", Kind: KindScalar, Init: 1, Lower: -10, Upper: 10})

	ds.SetEvaluator(func(ctx context.Context, view *View) (float64, error) {
		x, err := view.Float("x", nil)
		if err != nil {
			return 0, err
		}
		return -(x - 3) * (x - 3), nil
	})

	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := calc.Evaluate(context.Background(), []float64{3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != 0 {
		t.Fatalf("objective at optimum = %v, want 0", got)
	}
	if v := mustFloat(t, ds, "x", nil); v != 3 {
		t.Fatalf("evaluate should apply the vector, x = %v", v)
	}
}

func TestEvaluateWithoutObjectiveFails(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("x"))
	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := calc.Evaluate(context.Background(), calc.InitialVector()); err == nil {
		t.Fatal("expected missing evaluator error")
	}
}

func TestApplyRejectsWrongLength(t *testing.T) {
	ds := mustDefnSet(t, scalarDefn("kappa", edgeDim("a", "b")))
	calc, err := ds.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if calc.Size() != 1 {
		t.Fatalf("expected 1 shared slot, got %d", calc.Size())
	}
	if err := calc.Apply([]float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
