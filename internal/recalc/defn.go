// Package recalc maintains named model parameters that vary over declared
// dimensions. Parameters are assigned values over scopes, read back through
// coordinate lookups, and compiled into a flat vector for optimisation.
package recalc

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups against undeclared names.
var (
	ErrUnknownParam = errors.New("unknown parameter")
	ErrUnknownLabel = errors.New("unknown dimension label")
)

// Kind distinguishes the value shape a parameter holds per cell.
type Kind string

const (
	// KindScalar parameters hold one float per cell.
	KindScalar Kind = "scalar"
	// KindSimplex parameters hold a probability vector per cell.
	KindSimplex Kind = "simplex"
	// KindOpaque parameters hold arbitrary constant data per cell.
	KindOpaque Kind = "opaque"
)

// Dimension is one axis a parameter varies over, such as tree edges or
// alignment loci.
type Dimension struct {
	Name   string
	Labels []string
}

// Defn declares a parameter: its kind, the dimensions it varies over, and
// the starting state of its cells. A Defn with Const false starts with every
// cell free between Lower and Upper at Init. Independent controls whether
// free cells optimise separately by default or share one value.
type Defn struct {
	Name        string
	Kind        Kind
	Dims        []Dimension
	Init        float64
	Lower       float64
	Upper       float64
	Const       bool
	Independent bool
	SimplexLen  int
}

type cell struct {
	value  float64
	vector []float64
	data   any
}

type defnState struct {
	spec    Defn
	strides []int
	cells   []cell
	assigns []*assignment
}

// DefnSet holds a group of parameter definitions and their assignments.
type DefnSet struct {
	defns     []*defnState
	byName    map[string]*defnState
	evaluator Evaluator
}

// NewDefnSet validates the definitions and initialises every cell from its
// defn's starting state.
func NewDefnSet(defns ...Defn) (*DefnSet, error) {
	ds := &DefnSet{byName: make(map[string]*defnState, len(defns))}
	for _, spec := range defns {
		state, err := newDefnState(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := ds.byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %s", spec.Name)
		}
		ds.defns = append(ds.defns, state)
		ds.byName[spec.Name] = state
	}
	return ds, nil
}

func newDefnState(spec Defn) (*defnState, error) {
	if spec.Name == "" {
		return nil, errors.New("parameter name must not be empty")
	}
	switch spec.Kind {
	case KindScalar:
		if spec.Lower > spec.Upper {
			return nil, fmt.Errorf("parameter %s: lower bound %v exceeds upper bound %v", spec.Name, spec.Lower, spec.Upper)
		}
		if spec.Init < spec.Lower || spec.Init > spec.Upper {
			return nil, fmt.Errorf("parameter %s: initial value %v outside bounds [%v, %v]", spec.Name, spec.Init, spec.Lower, spec.Upper)
		}
	case KindSimplex:
		if spec.SimplexLen < 2 {
			return nil, fmt.Errorf("parameter %s: simplex needs at least 2 entries", spec.Name)
		}
	case KindOpaque:
		if !spec.Const {
			return nil, fmt.Errorf("parameter %s: opaque parameters must be constant", spec.Name)
		}
	default:
		return nil, fmt.Errorf("parameter %s: unknown kind %q", spec.Name, spec.Kind)
	}

	seenDims := make(map[string]bool, len(spec.Dims))
	size := 1
	for _, dim := range spec.Dims {
		if dim.Name == "" {
			return nil, fmt.Errorf("parameter %s: dimension name must not be empty", spec.Name)
		}
		if seenDims[dim.Name] {
			return nil, fmt.Errorf("parameter %s: duplicate dimension %s", spec.Name, dim.Name)
		}
		seenDims[dim.Name] = true
		if len(dim.Labels) == 0 {
			return nil, fmt.Errorf("parameter %s: dimension %s has no labels", spec.Name, dim.Name)
		}
		seenLabels := make(map[string]bool, len(dim.Labels))
		for _, label := range dim.Labels {
			if label == "" {
				return nil, fmt.Errorf("parameter %s: dimension %s has an empty label", spec.Name, dim.Name)
			}
			if seenLabels[label] {
				return nil, fmt.Errorf("parameter %s: dimension %s repeats label %q", spec.Name, dim.Name, label)
			}
			seenLabels[label] = true
		}
		size *= len(dim.Labels)
	}

	state := &defnState{
		spec:    spec,
		strides: make([]int, len(spec.Dims)),
		cells:   make([]cell, size),
	}
	stride := 1
	for d := len(spec.Dims) - 1; d >= 0; d-- {
		state.strides[d] = stride
		stride *= len(spec.Dims[d].Labels)
	}
	for i := range state.cells {
		switch spec.Kind {
		case KindScalar:
			state.cells[i].value = spec.Init
		case KindSimplex:
			state.cells[i].vector = uniformSimplex(spec.SimplexLen)
		}
	}

	// The whole-scope starting assignment keeps winner resolution uniform:
	// every cell is always covered by at least one assignment.
	state.assigns = append(state.assigns, &assignment{
		perDim:      coverAll(spec.Dims),
		konst:       spec.Const,
		independent: spec.Independent,
	})
	return state, nil
}

func uniformSimplex(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0 / float64(n)
	}
	return v
}

func coverAll(dims []Dimension) [][]bool {
	perDim := make([][]bool, len(dims))
	for d, dim := range dims {
		perDim[d] = make([]bool, len(dim.Labels))
		for i := range perDim[d] {
			perDim[d][i] = true
		}
	}
	return perDim
}

// Params returns the parameter names in declaration order.
func (ds *DefnSet) Params() []string {
	names := make([]string, len(ds.defns))
	for i, d := range ds.defns {
		names[i] = d.spec.Name
	}
	return names
}

// Defn returns a copy of the named parameter's definition.
func (ds *DefnSet) Defn(param string) (Defn, error) {
	state, err := ds.lookup(param)
	if err != nil {
		return Defn{}, err
	}
	spec := state.spec
	spec.Dims = append([]Dimension(nil), state.spec.Dims...)
	return spec, nil
}

func (ds *DefnSet) lookup(param string) (*defnState, error) {
	state, ok := ds.byName[param]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, param)
	}
	return state, nil
}

func (d *defnState) flatten(idx []int) int {
	flat := 0
	for i, v := range idx {
		flat += v * d.strides[i]
	}
	return flat
}

func (d *defnState) indices(flat int) []int {
	idx := make([]int, len(d.spec.Dims))
	for i, stride := range d.strides {
		idx[i] = flat / stride
		flat %= stride
	}
	return idx
}

// winner returns the latest assignment covering the cell. Assignments apply
// in order, so the last covering one decides the cell's fate.
func (d *defnState) winner(flat int) (int, *assignment) {
	idx := d.indices(flat)
	for a := len(d.assigns) - 1; a >= 0; a-- {
		if d.assigns[a].covers(idx) {
			return a, d.assigns[a]
		}
	}
	// Unreachable: assignment 0 covers everything.
	return 0, d.assigns[0]
}
