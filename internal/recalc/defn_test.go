package recalc

import (
	"reflect"
	"testing"
)

func edgeDim(labels ...string) Dimension {
	return Dimension{Name: "edge", Labels: labels}
}

func scalarDefn(name string, dims ...Dimension) Defn {
	return Defn{Name: name, Kind: KindScalar, Dims: dims, Init: 1, Lower: 1e-6, Upper: 1e6}
}

func TestNewDefnSetValidation(t *testing.T) {
	cases := []struct {
		name string
		defn Defn
	}{
		{"empty name", Defn{Kind: KindScalar, Upper: 1}},
		{"unknown kind", Defn{Name: "x", Kind: Kind("matrix")}},
		{"bounds inverted", Defn{Name: "x", Kind: KindScalar, Lower: 2, Upper: 1}},
		{"init outside bounds", Defn{Name: "x", Kind: KindScalar, Init: 5, Lower: 0, Upper: 1}},
		{"simplex too small", Defn{Name: "x", Kind: KindSimplex, SimplexLen: 1}},
		{"opaque must be const", Defn{Name: "x", Kind: KindOpaque}},
		{"empty dimension name", scalarDefn("x", Dimension{Labels: []string{"a"}})},
		{"dimension without labels", scalarDefn("x", Dimension{Name: "edge"})},
		{"empty label", scalarDefn("x", edgeDim("a", ""))},
		{"repeated label", scalarDefn("x", edgeDim("a", "a"))},
		{"repeated dimension", scalarDefn("x", edgeDim("a"), edgeDim("b"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDefnSet(tc.defn); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestNewDefnSetRejectsDuplicateParam(t *testing.T) {
	_, err := NewDefnSet(scalarDefn("kappa"), scalarDefn("kappa"))
	if err == nil {
		t.Fatal("expected duplicate parameter error")
	}
}

func TestParamsKeepDeclarationOrder(t *testing.T) {
	ds, err := NewDefnSet(scalarDefn("length"), scalarDefn("kappa"), scalarDefn("omega"))
	if err != nil {
		t.Fatalf("new defn set: %v", err)
	}
	want := []string{"length", "kappa", "omega"}
	if got := ds.Params(); !reflect.DeepEqual(got, want) {
		t.Fatalf("params = %v, want %v", got, want)
	}
}

func TestDefnReturnsDetachedCopy(t *testing.T) {
	ds, err := NewDefnSet(scalarDefn("kappa", edgeDim("a", "b")))
	if err != nil {
		t.Fatalf("new defn set: %v", err)
	}
	spec, err := ds.Defn("kappa")
	if err != nil {
		t.Fatalf("defn: %v", err)
	}
	spec.Dims[0].Name = "mutated"

	again, err := ds.Defn("kappa")
	if err != nil {
		t.Fatalf("defn: %v", err)
	}
	if again.Dims[0].Name != "edge" {
		t.Fatal("returned defn shares dimension storage with the set")
	}
}

func TestZeroDimensionDefnHasOneCell(t *testing.T) {
	ds, err := NewDefnSet(scalarDefn("rate"))
	if err != nil {
		t.Fatalf("new defn set: %v", err)
	}
	values, err := ds.CellValues("rate")
	if err != nil {
		t.Fatalf("cell values: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("expected a single cell, got %d", len(values))
	}
	if values[0].Value != 1 || values[0].Const {
		t.Fatalf("unexpected initial cell: %+v", values[0])
	}
}
