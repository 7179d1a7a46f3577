package likelihood

import (
	"context"
	"fmt"
	"sort"

	"klados/internal/calc"
	"klados/internal/recalc"
	"klados/internal/seqio"
)

// AlignmentStrategy scores one alignment per locus by Felsenstein pruning
// over the whole tree, optionally mixed over rate bins.
type AlignmentStrategy struct{}

func (s *AlignmentStrategy) makeLikelihoodDefns(lf *Controller) ([]recalc.Defn, error) {
	defns, err := lf.baseDefns()
	if err != nil {
		return nil, err
	}
	numMotifs := len(lf.model.Alphabet())
	defns = append(defns,
		recalc.Defn{
			Name:  "alignment",
			Kind:  recalc.KindOpaque,
			Dims:  []recalc.Dimension{lf.locusDim()},
			Const: true,
		},
		recalc.Defn{
			Name:  "leaf",
			Kind:  recalc.KindOpaque,
			Dims:  []recalc.Dimension{lf.tipDim(), lf.locusDim()},
			Const: true,
		},
		recalc.Defn{
			Name:        "fixed_motif",
			Kind:        recalc.KindScalar,
			Dims:        []recalc.Dimension{lf.locusDim()},
			Init:        -1,
			Lower:       -1,
			Upper:       float64(numMotifs - 1),
			Const:       true,
			Independent: true,
		},
		recalc.Defn{
			Name:  "parallel_context",
			Kind:  recalc.KindOpaque,
			Const: true,
		},
	)
	return defns, nil
}

func (s *AlignmentStrategy) setDefaultParamRules(lf *Controller) error {
	err := lf.engine.Assign("parallel_context", recalc.Assignment{Data: lf.workers})
	if err != nil {
		return err
	}
	return lf.setFixedMotifDefault()
}

func (s *AlignmentStrategy) bindAlignments(lf *Controller, alns []*seqio.Alignment) error {
	if len(alns) != len(lf.loci) {
		return fmt.Errorf("%w: %d alignments for %d loci", ErrDimension, len(alns), len(lf.loci))
	}
	tips := append([]string(nil), lf.tree.TipNames()...)
	sort.Strings(tips)

	for i, aln := range alns {
		locus := lf.loci[i]
		if aln == nil {
			return fmt.Errorf("%w: no alignment for locus %s", ErrConfiguration, locus)
		}
		names := aln.Names()
		for _, name := range names {
			if name == "root" {
				return fmt.Errorf("%w: root is reserved and cannot name a sequence", ErrConfiguration)
			}
		}
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		if !sameNames(sorted, tips) {
			return fmt.Errorf("%w: alignment names %v do not match the tree tips %v", ErrConfiguration, sorted, tips)
		}

		for _, name := range names {
			data, _ := aln.Seq(name)
			coded, err := lf.model.ConvertSequence(data, name)
			if err != nil {
				return err
			}
			err = lf.engine.Assign("leaf", recalc.Assignment{
				Scope: recalc.Scope{"edge": []string{name}, "locus": []string{locus}},
				Data:  coded,
			})
			if err != nil {
				return err
			}
		}
		err := lf.engine.Assign("alignment", recalc.Assignment{
			Scope: recalc.Scope{"locus": []string{locus}},
			Data:  aln,
		})
		if err != nil {
			return err
		}
		if lf.mprobsFromData {
			if err := lf.SetMotifProbsFromData(aln, MotifProbOptions{Locus: locus, auto: true}); err != nil {
				return err
			}
		}
	}

	lf.dataBound = true
	lf.engine.SetEvaluator(s.evaluator(lf))
	return nil
}

func (s *AlignmentStrategy) evaluator(lf *Controller) recalc.Evaluator {
	tips := lf.tree.TipNames()
	edges := lf.tree.EdgeNames(false)
	params := lf.model.ParamList()
	numMotifs := len(lf.model.Alphabet())

	return func(ctx context.Context, view *recalc.View) (float64, error) {
		workersAny, err := view.Data("parallel_context", nil)
		if err != nil {
			return 0, err
		}
		workers, ok := workersAny.(int)
		if !ok {
			return 0, fmt.Errorf("parallel context holds %T, want int", workersAny)
		}

		total := 0.0
		for _, locus := range lf.loci {
			lnL, err := s.locusLogLikelihood(ctx, lf, view, locus, tips, edges, params, numMotifs, workers)
			if err != nil {
				return 0, err
			}
			total += lnL
		}
		return total, nil
	}
}

func (s *AlignmentStrategy) locusLogLikelihood(ctx context.Context, lf *Controller, view *recalc.View, locus string, tips, edges, params []string, numMotifs, workers int) (float64, error) {
	leaves := make(map[string][]int, len(tips))
	for _, tip := range tips {
		data, err := view.Data("leaf", map[string]string{"edge": tip, "locus": locus})
		if err != nil {
			return 0, err
		}
		coded, ok := data.([]int)
		if !ok {
			return 0, fmt.Errorf("leaf %s of %s holds %T, want motif codes", tip, locus, data)
		}
		leaves[tip] = coded
	}

	var binWeights []float64
	if len(lf.bins) > 1 {
		w, err := view.Simplex("bprobs", map[string]string{"locus": locus})
		if err != nil {
			return 0, err
		}
		binWeights = w
	}

	bins := make([]calc.BinComponent, 0, len(lf.bins))
	for i, bin := range lf.bins {
		prior := 1.0
		if binWeights != nil {
			prior = binWeights[i]
		}
		mprobs, err := view.Simplex("mprobs", map[string]string{"bin": bin, "locus": locus})
		if err != nil {
			return 0, err
		}
		psubs := make(map[string][][]float64, len(edges))
		for _, edge := range edges {
			length, err := view.Float("length", map[string]string{"edge": edge})
			if err != nil {
				return 0, err
			}
			rates := make(map[string]float64, len(params))
			for _, param := range params {
				v, err := view.Float(param, map[string]string{"edge": edge, "bin": bin, "locus": locus})
				if err != nil {
					return 0, err
				}
				rates[param] = v
			}
			P, err := lf.model.Psubs(rates, mprobs, length)
			if err != nil {
				return 0, err
			}
			psubs[edge] = P
		}
		bins = append(bins, calc.BinComponent{Prior: prior, RootProbs: mprobs, Psubs: psubs})
	}

	fixedMotif, err := view.Float("fixed_motif", map[string]string{"locus": locus})
	if err != nil {
		return 0, err
	}

	return calc.PruneLogLikelihood(ctx, calc.PruneRequest{
		Tree:       lf.tree,
		Leaves:     leaves,
		NumMotifs:  numMotifs,
		Bins:       bins,
		FixedMotif: int(fixedMotif),
		Workers:    workers,
	})
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
