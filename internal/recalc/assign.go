package recalc

import "fmt"

// Scope restricts an assignment to a subset of labels per dimension. A
// missing dimension means all of its labels.
type Scope map[string][]string

// Assignment describes one change to a parameter over a scope. Exactly one
// value form applies per kind: Value for scalars, Vector for simplexes, Data
// for opaque parameters. Total rescales the covered scalar cells so they
// keep their proportions but sum to Total, and at compile time they optimise
// as one group that preserves that sum.
type Assignment struct {
	Scope       Scope
	Value       *float64
	Vector      []float64
	Data        any
	Const       bool
	Independent *bool
	Total       *float64
	Lower       *float64
	Upper       *float64
}

type assignment struct {
	perDim      [][]bool
	konst       bool
	independent bool
	hasValue    bool
	value       float64
	vector      []float64
	data        any
	total       *float64
	lower       *float64
	upper       *float64
}

func (a *assignment) covers(idx []int) bool {
	for d, v := range idx {
		if !a.perDim[d][v] {
			return false
		}
	}
	return true
}

// Assign records the assignment for the named parameter and applies its
// value to the covered cells immediately. Validation is eager: a bad scope
// or an inconsistent assignment fails here, not at compile time.
func (ds *DefnSet) Assign(param string, a Assignment) error {
	state, err := ds.lookup(param)
	if err != nil {
		return err
	}
	perDim, err := state.resolveScope(a.Scope)
	if err != nil {
		return err
	}
	if err := state.checkAssignment(a); err != nil {
		return err
	}

	independent := state.spec.Independent
	if a.Independent != nil {
		independent = *a.Independent
	}
	rec := &assignment{
		perDim:      perDim,
		konst:       a.Const,
		independent: independent,
		total:       a.Total,
		lower:       a.Lower,
		upper:       a.Upper,
		data:        a.Data,
	}
	if a.Value != nil {
		rec.hasValue = true
		rec.value = *a.Value
	}
	if a.Vector != nil {
		rec.vector = append([]float64(nil), a.Vector...)
	}
	if state.spec.Kind == KindOpaque {
		rec.konst = true
	}

	state.assigns = append(state.assigns, rec)
	state.apply(rec)
	return nil
}

func (d *defnState) resolveScope(scope Scope) ([][]bool, error) {
	perDim := coverAll(d.spec.Dims)
	for name, labels := range scope {
		dimIdx := -1
		for i, dim := range d.spec.Dims {
			if dim.Name == name {
				dimIdx = i
				break
			}
		}
		if dimIdx < 0 {
			return nil, fmt.Errorf("parameter %s has no dimension %s", d.spec.Name, name)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("empty scope for dimension %s of %s", name, d.spec.Name)
		}
		mask := make([]bool, len(d.spec.Dims[dimIdx].Labels))
		for _, label := range labels {
			found := -1
			for i, candidate := range d.spec.Dims[dimIdx].Labels {
				if candidate == label {
					found = i
					break
				}
			}
			if found < 0 {
				return nil, fmt.Errorf("%w: %q is not a %s of %s", ErrUnknownLabel, label, name, d.spec.Name)
			}
			mask[found] = true
		}
		perDim[dimIdx] = mask
	}
	return perDim, nil
}

func (d *defnState) checkAssignment(a Assignment) error {
	name := d.spec.Name
	switch d.spec.Kind {
	case KindScalar:
		if a.Vector != nil {
			return fmt.Errorf("parameter %s is scalar and cannot take a vector", name)
		}
		if a.Data != nil {
			return fmt.Errorf("parameter %s is scalar and cannot take opaque data", name)
		}
	case KindSimplex:
		if a.Value != nil || a.Total != nil || a.Lower != nil || a.Upper != nil {
			return fmt.Errorf("parameter %s takes probability vectors only", name)
		}
		if a.Data != nil {
			return fmt.Errorf("parameter %s is a simplex and cannot take opaque data", name)
		}
		if a.Vector != nil && len(a.Vector) != d.spec.SimplexLen {
			return fmt.Errorf("parameter %s expects %d values, got %d", name, d.spec.SimplexLen, len(a.Vector))
		}
	case KindOpaque:
		if a.Value != nil || a.Vector != nil || a.Total != nil || a.Lower != nil || a.Upper != nil {
			return fmt.Errorf("parameter %s accepts only constant data assignments", name)
		}
		if a.Data == nil {
			return fmt.Errorf("parameter %s: opaque assignment carries no data", name)
		}
	}
	if a.Total != nil {
		if a.Value != nil {
			return fmt.Errorf("parameter %s: cannot combine total with an explicit value", name)
		}
		if *a.Total <= 0 {
			return fmt.Errorf("parameter %s: total must be positive, got %v", name, *a.Total)
		}
	}
	if a.Lower != nil && a.Upper != nil && *a.Lower > *a.Upper {
		return fmt.Errorf("parameter %s: lower bound %v exceeds upper bound %v", name, *a.Lower, *a.Upper)
	}
	if d.spec.Kind == KindScalar && !a.Const && a.Value != nil {
		lower, upper := d.spec.Lower, d.spec.Upper
		if a.Lower != nil {
			lower = *a.Lower
		}
		if a.Upper != nil {
			upper = *a.Upper
		}
		if *a.Value < lower || *a.Value > upper {
			return fmt.Errorf("parameter %s: value %v outside bounds [%v, %v]", name, *a.Value, lower, upper)
		}
	}
	return nil
}

// apply writes the assignment's value into every covered cell. Assignments
// without a value leave cell values alone, so freeing or freezing a scope
// keeps whatever was last set.
func (d *defnState) apply(rec *assignment) {
	covered := d.coveredCells(rec)
	switch {
	case rec.total != nil:
		sum := 0.0
		for _, c := range covered {
			sum += d.cells[c].value
		}
		if sum > 0 {
			scale := *rec.total / sum
			for _, c := range covered {
				d.cells[c].value *= scale
			}
		} else {
			share := *rec.total / float64(len(covered))
			for _, c := range covered {
				d.cells[c].value = share
			}
		}
	case rec.hasValue:
		for _, c := range covered {
			d.cells[c].value = rec.value
		}
	case rec.vector != nil:
		for _, c := range covered {
			d.cells[c].vector = append([]float64(nil), rec.vector...)
		}
	case rec.data != nil:
		for _, c := range covered {
			d.cells[c].data = rec.data
		}
	}
}

// Update re-establishes derived invariants after cells were mutated outside
// Assign: simplex vectors are renormalised to sum 1 and the cells of a
// winning total assignment are rescaled back onto their sum.
func (ds *DefnSet) Update() error {
	for _, state := range ds.defns {
		switch state.spec.Kind {
		case KindSimplex:
			for i := range state.cells {
				vec := state.cells[i].vector
				sum := 0.0
				for _, p := range vec {
					sum += p
				}
				if sum <= 0 {
					return fmt.Errorf("parameter %s: simplex cell sums to %v", state.spec.Name, sum)
				}
				for j := range vec {
					vec[j] /= sum
				}
			}
		case KindScalar:
			order, groups := state.partition()
			for _, aIdx := range order {
				win := state.assigns[aIdx]
				if win.total == nil {
					continue
				}
				cells := groups[aIdx]
				sum := 0.0
				for _, flat := range cells {
					sum += state.cells[flat].value
				}
				if sum > 0 {
					scale := *win.total / sum
					for _, flat := range cells {
						state.cells[flat].value *= scale
					}
				} else {
					share := *win.total / float64(len(cells))
					for _, flat := range cells {
						state.cells[flat].value = share
					}
				}
			}
		}
	}
	return nil
}

func (d *defnState) coveredCells(rec *assignment) []int {
	var covered []int
	for flat := range d.cells {
		if rec.covers(d.indices(flat)) {
			covered = append(covered, flat)
		}
	}
	return covered
}
