package recalc

import (
	"fmt"
	"strings"
)

// View reads current parameter values. Coordinates name one label per
// dimension; a dimension may be left out when every cell it spans holds the
// same value, so a globally scoped parameter reads back without coordinates.
type View struct {
	ds *DefnSet
}

// View returns a read handle over the current cell values.
func (ds *DefnSet) View() *View {
	return &View{ds: ds}
}

// Float returns the value of a scalar parameter at the given coordinates.
func (v *View) Float(param string, coords map[string]string) (float64, error) {
	state, err := v.ds.lookup(param)
	if err != nil {
		return 0, err
	}
	if state.spec.Kind != KindScalar {
		return 0, fmt.Errorf("parameter %s is not scalar", param)
	}
	cells, free, err := state.resolveCoords(coords)
	if err != nil {
		return 0, err
	}
	first := state.cells[cells[0]].value
	for _, c := range cells[1:] {
		if state.cells[c].value != first {
			return 0, ambiguousErr(param, free)
		}
	}
	return first, nil
}

// Simplex returns the probability vector of a simplex parameter at the given
// coordinates.
func (v *View) Simplex(param string, coords map[string]string) ([]float64, error) {
	state, err := v.ds.lookup(param)
	if err != nil {
		return nil, err
	}
	if state.spec.Kind != KindSimplex {
		return nil, fmt.Errorf("parameter %s is not a simplex", param)
	}
	cells, free, err := state.resolveCoords(coords)
	if err != nil {
		return nil, err
	}
	first := state.cells[cells[0]].vector
	for _, c := range cells[1:] {
		other := state.cells[c].vector
		for i := range first {
			if other[i] != first[i] {
				return nil, ambiguousErr(param, free)
			}
		}
	}
	return append([]float64(nil), first...), nil
}

// Data returns the opaque payload of a parameter. The coordinates must pin
// down exactly one cell.
func (v *View) Data(param string, coords map[string]string) (any, error) {
	state, err := v.ds.lookup(param)
	if err != nil {
		return nil, err
	}
	if state.spec.Kind != KindOpaque {
		return nil, fmt.Errorf("parameter %s is not opaque", param)
	}
	cells, free, err := state.resolveCoords(coords)
	if err != nil {
		return nil, err
	}
	if len(cells) > 1 {
		return nil, ambiguousErr(param, free)
	}
	return state.cells[cells[0]].data, nil
}

// CellValue is one scalar cell with its full coordinates.
type CellValue struct {
	Coords map[string]string
	Value  float64
	Const  bool
}

// CellValues enumerates every cell of a scalar parameter in row-major order.
func (ds *DefnSet) CellValues(param string) ([]CellValue, error) {
	state, err := ds.lookup(param)
	if err != nil {
		return nil, err
	}
	if state.spec.Kind != KindScalar {
		return nil, fmt.Errorf("parameter %s is not scalar", param)
	}
	out := make([]CellValue, len(state.cells))
	for flat := range state.cells {
		idx := state.indices(flat)
		coords := make(map[string]string, len(idx))
		for d, v := range idx {
			coords[state.spec.Dims[d].Name] = state.spec.Dims[d].Labels[v]
		}
		_, win := state.winner(flat)
		out[flat] = CellValue{Coords: coords, Value: state.cells[flat].value, Const: win.konst}
	}
	return out, nil
}

// resolveCoords maps partial coordinates to the flat cells they select. The
// returned free list names multi-label dimensions the coordinates left open.
func (d *defnState) resolveCoords(coords map[string]string) ([]int, []string, error) {
	for name := range coords {
		found := false
		for _, dim := range d.spec.Dims {
			if dim.Name == name {
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("parameter %s has no dimension %s", d.spec.Name, name)
		}
	}

	choices := make([][]int, len(d.spec.Dims))
	var free []string
	for i, dim := range d.spec.Dims {
		label, fixed := coords[dim.Name]
		if !fixed {
			all := make([]int, len(dim.Labels))
			for j := range all {
				all[j] = j
			}
			choices[i] = all
			if len(dim.Labels) > 1 {
				free = append(free, dim.Name)
			}
			continue
		}
		found := -1
		for j, candidate := range dim.Labels {
			if candidate == label {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, nil, fmt.Errorf("%w: %q is not a %s of %s", ErrUnknownLabel, label, dim.Name, d.spec.Name)
		}
		choices[i] = []int{found}
	}

	cells := []int{0}
	for i, options := range choices {
		next := make([]int, 0, len(cells)*len(options))
		for _, base := range cells {
			for _, opt := range options {
				next = append(next, base+opt*d.strides[i])
			}
		}
		cells = next
	}
	return cells, free, nil
}

func ambiguousErr(param string, free []string) error {
	return fmt.Errorf("parameter %s varies within the given scope; specify %s", param, strings.Join(free, " and "))
}
