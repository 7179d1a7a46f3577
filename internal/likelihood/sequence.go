package likelihood

import (
	"context"
	"fmt"
	"sort"

	"klados/internal/calc"
	"klados/internal/recalc"
	"klados/internal/seqio"
	"klados/internal/submodel"
)

// SequenceStrategy scores two unaligned sequences under a pair HMM whose
// indel parameters come from the model. It needs a 2-tip tree and runs a
// single bin and locus.
type SequenceStrategy struct {
	model submodel.IndelModel
}

func (s *SequenceStrategy) makeLikelihoodDefns(lf *Controller) ([]recalc.Defn, error) {
	if tips := lf.tree.Tips(); len(tips) != 2 {
		return nil, fmt.Errorf("%w: pairwise likelihood needs a 2-tip tree, got %d tips", ErrConfiguration, len(tips))
	}
	if len(lf.bins) > 1 {
		return nil, fmt.Errorf("%w: pairwise likelihood supports a single bin", ErrConfiguration)
	}
	if len(lf.loci) > 1 {
		return nil, fmt.Errorf("%w: pairwise likelihood supports a single locus", ErrConfiguration)
	}

	defns, err := lf.baseDefns()
	if err != nil {
		return nil, err
	}
	for _, param := range s.model.IndelParamList() {
		def, ok := s.model.ParamDefault(param)
		if !ok {
			return nil, fmt.Errorf("%w: model %s declares %s without defaults", ErrConfiguration, s.model.Name(), param)
		}
		defns = append(defns, recalc.Defn{
			Name:  param,
			Kind:  recalc.KindScalar,
			Dims:  []recalc.Dimension{lf.locusDim()},
			Init:  def.Init,
			Lower: def.Lower,
			Upper: def.Upper,
		})
	}
	defns = append(defns, recalc.Defn{
		Name:  "leaf",
		Kind:  recalc.KindOpaque,
		Dims:  []recalc.Dimension{lf.tipDim(), lf.locusDim()},
		Const: true,
	})
	return defns, nil
}

func (s *SequenceStrategy) setDefaultParamRules(lf *Controller) error {
	return lf.setFixedMotifDefault()
}

func (s *SequenceStrategy) bindSequences(lf *Controller, seqs []seqio.Seq) error {
	if len(seqs) != 2 {
		return fmt.Errorf("%w: pairwise likelihood needs 2 sequences, got %d", ErrDimension, len(seqs))
	}
	tips := append([]string(nil), lf.tree.TipNames()...)
	sort.Strings(tips)
	names := make([]string, len(seqs))
	for i, seq := range seqs {
		if seq.Name == "root" {
			return fmt.Errorf("%w: root is reserved and cannot name a sequence", ErrConfiguration)
		}
		names[i] = seq.Name
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	if !sameNames(sorted, tips) {
		return fmt.Errorf("%w: sequence names %v do not match the tree tips %v", ErrConfiguration, sorted, tips)
	}

	locus := lf.loci[0]
	for _, seq := range seqs {
		coded, err := lf.model.ConvertSequence(seq.Data, seq.Name)
		if err != nil {
			return err
		}
		err = lf.engine.Assign("leaf", recalc.Assignment{
			Scope: recalc.Scope{"edge": []string{seq.Name}, "locus": []string{locus}},
			Data:  coded,
		})
		if err != nil {
			return err
		}
	}

	if lf.mprobsFromData {
		counts := lf.model.CountMotifs(seqs, true)
		total := 0.0
		for _, c := range counts {
			total += c
		}
		if total == 0 {
			return fmt.Errorf("%w: no countable motifs in the sequences", ErrValue)
		}
		probs := make([]float64, len(counts))
		for i, c := range counts {
			probs[i] = c / total
		}
		if err := lf.SetMotifProbs(probs, MotifProbOptions{auto: true}); err != nil {
			return err
		}
	}

	lf.dataBound = true
	lf.engine.SetEvaluator(s.evaluator(lf))
	return nil
}

func (s *SequenceStrategy) evaluator(lf *Controller) recalc.Evaluator {
	tips := lf.tree.TipNames()
	params := lf.model.ParamList()
	bin := lf.bins[0]
	locus := lf.loci[0]

	return func(ctx context.Context, view *recalc.View) (float64, error) {
		mprobs, err := view.Simplex("mprobs", map[string]string{"bin": bin, "locus": locus})
		if err != nil {
			return 0, err
		}

		coded := make([][]int, len(tips))
		lengths := make([]float64, len(tips))
		psubs := make([][][]float64, len(tips))
		for i, tip := range tips {
			data, err := view.Data("leaf", map[string]string{"edge": tip, "locus": locus})
			if err != nil {
				return 0, err
			}
			codes, ok := data.([]int)
			if !ok {
				return 0, fmt.Errorf("leaf %s of %s holds %T, want motif codes", tip, locus, data)
			}
			coded[i] = codes
			lengths[i], err = view.Float("length", map[string]string{"edge": tip})
			if err != nil {
				return 0, err
			}
			rates := make(map[string]float64, len(params))
			for _, param := range params {
				v, err := view.Float(param, map[string]string{"edge": tip, "bin": bin, "locus": locus})
				if err != nil {
					return 0, err
				}
				rates[param] = v
			}
			psubs[i], err = lf.model.Psubs(rates, mprobs, lengths[i])
			if err != nil {
				return 0, err
			}
		}

		indelRate, err := view.Float("indel_rate", map[string]string{"locus": locus})
		if err != nil {
			return 0, err
		}
		indelLength, err := view.Float("indel_length", map[string]string{"locus": locus})
		if err != nil {
			return 0, err
		}

		// The HMM needs a strictly positive gap open probability, so a
		// zero-length path takes a floor rather than failing mid-fit.
		pathLength := lengths[0] + lengths[1]
		if pathLength < 1e-6 {
			pathLength = 1e-6
		}

		return calc.PairLogLikelihood(ctx, calc.PairHMMRequest{
			Seq1:       coded[0],
			Seq2:       coded[1],
			MotifProbs: mprobs,
			Psub1:      psubs[0],
			Psub2:      psubs[1],
			GapOpen:    calc.GapOpenProb(indelRate, pathLength),
			GapExtend:  calc.GapExtendProb(indelLength),
		})
	}
}
