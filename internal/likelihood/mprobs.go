package likelihood

import (
	"fmt"
	"math"

	"klados/internal/recalc"
	"klados/internal/seqio"
)

// Stationary frequencies must describe a distribution. Sums further from 1
// than this are rejected rather than silently renormalized.
const motifProbTolerance = 0.0001

// MotifProbOptions scopes a stationary-frequency assignment and overrides
// whether it stays fixed during optimisation.
type MotifProbOptions struct {
	IsConstant    *bool
	IsIndependent *bool
	Bin           string
	Bins          []string
	Locus         string
	Loci          []string

	// auto marks assignments derived from bound data. They leave the
	// from-data flag alone so a later binding still refreshes the values.
	auto bool
}

// SetMotifProbs assigns stationary frequencies. probs is either a []float64
// in alphabet order or a map[string]float64 keyed by motif. The values stay
// constant during optimisation unless the controller was built with
// OptimiseMotifProbs or the options say otherwise.
func (lf *Controller) SetMotifProbs(probs any, opt MotifProbOptions) error {
	vec, err := lf.motifVector(probs)
	if err != nil {
		return err
	}
	sum := 0.0
	for _, p := range vec {
		if p < 0 {
			return fmt.Errorf("%w: negative motif probability %v", ErrValue, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > motifProbTolerance {
		return fmt.Errorf("%w: motif probabilities sum to %v, want 1", ErrValue, sum)
	}

	if opt.Bin != "" && len(opt.Bins) > 0 {
		return fmt.Errorf("%w: use only one of bin or bins", ErrConfiguration)
	}
	if opt.Locus != "" && len(opt.Loci) > 0 {
		return fmt.Errorf("%w: use only one of locus or loci", ErrConfiguration)
	}
	scope := recalc.Scope{}
	if opt.Bin != "" {
		scope["bin"] = []string{opt.Bin}
	} else if len(opt.Bins) > 0 {
		scope["bin"] = append([]string(nil), opt.Bins...)
	}
	if opt.Locus != "" {
		scope["locus"] = []string{opt.Locus}
	} else if len(opt.Loci) > 0 {
		scope["locus"] = append([]string(nil), opt.Loci...)
	}

	konst := !lf.optimiseMprobs
	if opt.IsConstant != nil {
		konst = *opt.IsConstant
	}
	err = lf.engine.Assign("mprobs", recalc.Assignment{
		Scope:       scope,
		Vector:      vec,
		Const:       konst,
		Independent: opt.IsIndependent,
	})
	if err != nil {
		return err
	}
	if !opt.auto {
		lf.mprobsFromData = false
	}
	return nil
}

// SetMotifProbsFromData counts motifs over the rows of the alignment,
// normalizes by the total, and assigns the result.
func (lf *Controller) SetMotifProbsFromData(aln *seqio.Alignment, opt MotifProbOptions) error {
	if aln == nil {
		return fmt.Errorf("%w: motif probabilities need an alignment", ErrConfiguration)
	}
	counts := lf.model.CountMotifs(aln.Seqs(), true)
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return fmt.Errorf("%w: no countable motifs in the alignment", ErrValue)
	}
	probs := make([]float64, len(counts))
	for i, c := range counts {
		probs[i] = c / total
	}
	return lf.SetMotifProbs(probs, opt)
}

func (lf *Controller) motifVector(probs any) ([]float64, error) {
	alphabet := lf.model.Alphabet()
	switch p := probs.(type) {
	case []float64:
		if len(p) != len(alphabet) {
			return nil, fmt.Errorf("%w: %d motif probabilities for an alphabet of %d", ErrDimension, len(p), len(alphabet))
		}
		return append([]float64(nil), p...), nil
	case map[string]float64:
		if len(p) != len(alphabet) {
			return nil, fmt.Errorf("%w: %d motif probabilities for an alphabet of %d", ErrDimension, len(p), len(alphabet))
		}
		vec := make([]float64, len(alphabet))
		for i, motif := range alphabet {
			v, ok := p[motif]
			if !ok {
				return nil, fmt.Errorf("%w: missing probability for motif %q", ErrValue, motif)
			}
			vec[i] = v
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("%w: motif probabilities must be []float64 or map[string]float64, got %T", ErrValue, probs)
	}
}
