package recalc

import (
	"context"
	"errors"
	"fmt"
)

// weightFloor keeps simplex and total weights strictly positive so their
// normalising sums never vanish.
const weightFloor = 1e-6

// Evaluator computes the objective function over the current cell values.
type Evaluator func(ctx context.Context, view *View) (float64, error)

// SetEvaluator installs the objective used by Calculator.Evaluate.
func (ds *DefnSet) SetEvaluator(fn Evaluator) {
	ds.evaluator = fn
}

// EvaluateCurrent runs the evaluator over the values as they stand, with no
// free-vector bookkeeping involved.
func (ds *DefnSet) EvaluateCurrent(ctx context.Context) (float64, error) {
	if ds.evaluator == nil {
		return 0, errors.New("no evaluator configured")
	}
	return ds.evaluator(ctx, ds.View())
}

type entryKind int

const (
	entryScalar entryKind = iota
	entryTotal
	entrySimplex
)

type calcEntry struct {
	state  *defnState
	cells  []int
	offset int
	size   int
	kind   entryKind
	total  float64
}

// Calculator is the flat optimisable picture of a DefnSet: one slot per free
// scalar group, one weight per member of a sum-preserving group, and one
// weight per simplex entry. Applying a vector writes the values back into
// the cells.
type Calculator struct {
	ds      *DefnSet
	entries []calcEntry
	init    []float64
	lower   []float64
	upper   []float64
}

// Compile partitions every cell by the latest assignment covering it and
// lays the free partitions out as a vector. Constant cells take no slots.
func (ds *DefnSet) Compile() (*Calculator, error) {
	c := &Calculator{ds: ds}
	for _, state := range ds.defns {
		if state.spec.Kind == KindOpaque {
			continue
		}
		order, groups := state.partition()
		for _, aIdx := range order {
			win := state.assigns[aIdx]
			if win.konst {
				continue
			}
			if err := c.addGroup(state, win, groups[aIdx]); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// partition groups cells by their winning assignment, in first-seen order.
func (d *defnState) partition() ([]int, map[int][]int) {
	var order []int
	groups := make(map[int][]int)
	for flat := range d.cells {
		aIdx, _ := d.winner(flat)
		if _, seen := groups[aIdx]; !seen {
			order = append(order, aIdx)
		}
		groups[aIdx] = append(groups[aIdx], flat)
	}
	return order, groups
}

func (c *Calculator) addGroup(state *defnState, win *assignment, cells []int) error {
	switch {
	case win.total != nil:
		weights := make([]float64, len(cells))
		sum := 0.0
		for _, flat := range cells {
			sum += state.cells[flat].value
		}
		for i, flat := range cells {
			if sum > 0 {
				weights[i] = clamp(state.cells[flat].value/sum, weightFloor, 1)
			} else {
				weights[i] = 1.0 / float64(len(cells))
			}
		}
		c.push(calcEntry{state: state, cells: cells, kind: entryTotal, total: *win.total}, weights, weightFloor, 1)

	case state.spec.Kind == KindSimplex:
		if win.independent {
			for _, flat := range cells {
				weights := clampAll(state.cells[flat].vector, weightFloor, 1)
				c.push(calcEntry{state: state, cells: []int{flat}, kind: entrySimplex}, weights, weightFloor, 1)
			}
			return nil
		}
		mean := make([]float64, state.spec.SimplexLen)
		for _, flat := range cells {
			for i, p := range state.cells[flat].vector {
				mean[i] += p / float64(len(cells))
			}
		}
		c.push(calcEntry{state: state, cells: cells, kind: entrySimplex}, clampAll(mean, weightFloor, 1), weightFloor, 1)

	default:
		lower := state.spec.Lower
		if win.lower != nil {
			lower = *win.lower
		}
		upper := state.spec.Upper
		if win.upper != nil {
			upper = *win.upper
		}
		if lower > upper {
			return fmt.Errorf("parameter %s: lower bound %v exceeds upper bound %v", state.spec.Name, lower, upper)
		}
		if win.independent {
			for _, flat := range cells {
				init := clamp(state.cells[flat].value, lower, upper)
				c.push(calcEntry{state: state, cells: []int{flat}, kind: entryScalar}, []float64{init}, lower, upper)
			}
			return nil
		}
		mean := 0.0
		for _, flat := range cells {
			mean += state.cells[flat].value / float64(len(cells))
		}
		c.push(calcEntry{state: state, cells: cells, kind: entryScalar}, []float64{clamp(mean, lower, upper)}, lower, upper)
	}
	return nil
}

func (c *Calculator) push(e calcEntry, init []float64, lower, upper float64) {
	e.offset = len(c.init)
	e.size = len(init)
	c.entries = append(c.entries, e)
	c.init = append(c.init, init...)
	for range init {
		c.lower = append(c.lower, lower)
		c.upper = append(c.upper, upper)
	}
}

// Size is the number of optimisable slots.
func (c *Calculator) Size() int { return len(c.init) }

// InitialVector returns the starting point derived from current cell values.
func (c *Calculator) InitialVector() []float64 {
	return append([]float64(nil), c.init...)
}

// Bounds returns the per-slot lower and upper limits.
func (c *Calculator) Bounds() (lower, upper []float64) {
	return append([]float64(nil), c.lower...), append([]float64(nil), c.upper...)
}

// Apply writes a candidate vector back into the underlying cells.
func (c *Calculator) Apply(x []float64) error {
	if len(x) != len(c.init) {
		return fmt.Errorf("vector length %d, expected %d", len(x), len(c.init))
	}
	for _, e := range c.entries {
		slots := x[e.offset : e.offset+e.size]
		switch e.kind {
		case entryScalar:
			for _, flat := range e.cells {
				e.state.cells[flat].value = slots[0]
			}
		case entryTotal:
			sum := 0.0
			for _, w := range slots {
				sum += w
			}
			for i, flat := range e.cells {
				e.state.cells[flat].value = e.total * slots[i] / sum
			}
		case entrySimplex:
			sum := 0.0
			for _, w := range slots {
				sum += w
			}
			normalized := make([]float64, len(slots))
			for i, w := range slots {
				normalized[i] = w / sum
			}
			for _, flat := range e.cells {
				e.state.cells[flat].vector = append([]float64(nil), normalized...)
			}
		}
	}
	return nil
}

// Evaluate applies the candidate vector and runs the installed objective.
func (c *Calculator) Evaluate(ctx context.Context, x []float64) (float64, error) {
	if c.ds.evaluator == nil {
		return 0, errors.New("no evaluator configured")
	}
	if err := c.Apply(x); err != nil {
		return 0, err
	}
	return c.ds.evaluator(ctx, c.ds.View())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampAll(values []float64, lo, hi float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = clamp(v, lo, hi)
	}
	return out
}
