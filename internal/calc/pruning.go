// Package calc holds the numeric likelihood kernels: Felsenstein pruning
// over an alignment and a pair hidden Markov model over two unaligned
// sequences. Both work on motif codes, with -1 standing for any motif.
package calc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"klados/internal/phylo"
)

// BinComponent is one rate class of a mixture: its prior weight, the motif
// probabilities at the root, and a transition matrix per edge.
type BinComponent struct {
	Prior     float64
	RootProbs []float64
	Psubs     map[string][][]float64
}

// PruneRequest carries everything one log-likelihood evaluation needs.
// Leaves maps tip names to motif codes per column. FixedMotif conditions the
// root on a single motif when non-negative. Workers bounds the number of
// goroutines evaluating column patterns.
type PruneRequest struct {
	Tree       *phylo.Tree
	Leaves     map[string][]int
	NumMotifs  int
	Bins       []BinComponent
	FixedMotif int
	Workers    int
}

type prunePlan struct {
	nodes     []*phylo.Node
	children  [][]int
	leaf      [][]int
	psubs     [][][][]float64 // bin, node
	numMotifs int
	bins      []BinComponent
	fixed     int
	columns   int
}

// PruneLogLikelihood computes the log-likelihood of the leaf columns under
// the mixture, summing identical columns once with a multiplicity weight.
func PruneLogLikelihood(ctx context.Context, req PruneRequest) (float64, error) {
	plan, err := newPrunePlan(req)
	if err != nil {
		return 0, err
	}

	keys, weights := plan.patterns()
	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(keys) {
		workers = len(keys)
	}

	if workers == 1 {
		return plan.sumRange(ctx, keys, weights, 0, len(keys))
	}

	partials := make([]float64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	chunk := (len(keys) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			partials[w], errs[w] = plan.sumRange(ctx, keys, weights, start, end)
		}(w, start, end)
	}
	wg.Wait()

	total := 0.0
	for w := range partials {
		if errs[w] != nil {
			return 0, errs[w]
		}
		total += partials[w]
	}
	return total, nil
}

func newPrunePlan(req PruneRequest) (*prunePlan, error) {
	if req.Tree == nil {
		return nil, errors.New("pruning needs a tree")
	}
	if req.NumMotifs < 2 {
		return nil, fmt.Errorf("pruning needs at least 2 motifs, got %d", req.NumMotifs)
	}
	if len(req.Bins) == 0 {
		return nil, errors.New("pruning needs at least one bin component")
	}
	if req.FixedMotif >= req.NumMotifs {
		return nil, fmt.Errorf("fixed motif %d outside alphabet of size %d", req.FixedMotif, req.NumMotifs)
	}

	plan := &prunePlan{
		nodes:     req.Tree.Edges(true),
		numMotifs: req.NumMotifs,
		bins:      req.Bins,
		fixed:     req.FixedMotif,
		columns:   -1,
	}
	index := make(map[*phylo.Node]int, len(plan.nodes))
	for i, node := range plan.nodes {
		index[node] = i
	}

	plan.children = make([][]int, len(plan.nodes))
	plan.leaf = make([][]int, len(plan.nodes))
	for i, node := range plan.nodes {
		for _, child := range node.Children {
			plan.children[i] = append(plan.children[i], index[child])
		}
		if !node.IsTip() {
			continue
		}
		codes, ok := req.Leaves[node.Name]
		if !ok {
			return nil, fmt.Errorf("no leaf data for tip %s", node.Name)
		}
		if plan.columns < 0 {
			plan.columns = len(codes)
		} else if len(codes) != plan.columns {
			return nil, fmt.Errorf("tip %s has %d columns, expected %d", node.Name, len(codes), plan.columns)
		}
		plan.leaf[i] = codes
	}
	if plan.columns <= 0 {
		return nil, errors.New("alignment has no columns")
	}

	root := plan.nodes[len(plan.nodes)-1]
	plan.psubs = make([][][][]float64, len(req.Bins))
	for b, bin := range req.Bins {
		if len(bin.RootProbs) != req.NumMotifs {
			return nil, fmt.Errorf("bin %d root probabilities have length %d, expected %d", b, len(bin.RootProbs), req.NumMotifs)
		}
		plan.psubs[b] = make([][][]float64, len(plan.nodes))
		for i, node := range plan.nodes {
			if node == root {
				continue
			}
			P, ok := bin.Psubs[node.Name]
			if !ok {
				return nil, fmt.Errorf("bin %d has no transition matrix for edge %s", b, node.Name)
			}
			if len(P) != req.NumMotifs {
				return nil, fmt.Errorf("bin %d edge %s matrix has %d rows, expected %d", b, node.Name, len(P), req.NumMotifs)
			}
			plan.psubs[b][i] = P
		}
	}
	return plan, nil
}

// patterns collapses identical columns, returning exemplar column indices
// and their multiplicities in first-seen order.
func (p *prunePlan) patterns() (exemplars []int, weights []float64) {
	seen := make(map[string]int)
	key := make([]byte, 0, len(p.nodes))
	for col := 0; col < p.columns; col++ {
		key = key[:0]
		for i := range p.nodes {
			if p.leaf[i] != nil {
				key = append(key, byte(p.leaf[i][col]+1))
			}
		}
		if at, ok := seen[string(key)]; ok {
			weights[at]++
			continue
		}
		seen[string(key)] = len(exemplars)
		exemplars = append(exemplars, col)
		weights = append(weights, 1)
	}
	return exemplars, weights
}

func (p *prunePlan) sumRange(ctx context.Context, exemplars []int, weights []float64, start, end int) (float64, error) {
	scratch := make([][]float64, len(p.nodes))
	for i := range scratch {
		scratch[i] = make([]float64, p.numMotifs)
	}

	total := 0.0
	for at := start; at < end; at++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		col := exemplars[at]
		lik := 0.0
		for b := range p.bins {
			lik += p.bins[b].Prior * p.siteLikelihood(b, col, scratch)
		}
		total += weights[at] * math.Log(lik)
	}
	return total, nil
}

// siteLikelihood runs a post-order pass for one column under one bin. The
// node list is post-order with the root last, so children are always ready.
func (p *prunePlan) siteLikelihood(bin, col int, scratch [][]float64) float64 {
	for i := range p.nodes {
		vec := scratch[i]
		if p.leaf[i] != nil {
			code := p.leaf[i][col]
			for m := range vec {
				if code < 0 || code == m {
					vec[m] = 1
				} else {
					vec[m] = 0
				}
			}
			continue
		}
		for m := range vec {
			vec[m] = 1
		}
		for _, c := range p.children[i] {
			P := p.psubs[bin][c]
			child := scratch[c]
			for m := range vec {
				sum := 0.0
				for n, pn := range P[m] {
					sum += pn * child[n]
				}
				vec[m] *= sum
			}
		}
	}

	rootVec := scratch[len(p.nodes)-1]
	probs := p.bins[bin].RootProbs
	if p.fixed >= 0 {
		return probs[p.fixed] * rootVec[p.fixed]
	}
	lik := 0.0
	for m, prob := range probs {
		lik += prob * rootVec[m]
	}
	return lik
}
