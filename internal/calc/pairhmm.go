package calc

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// maxGapOpen keeps the match-state transition probability positive.
const maxGapOpen = 0.49

// GapOpenProb converts an indel rate and the total path length between two
// sequences into a gap opening probability.
func GapOpenProb(indelRate, pathLength float64) float64 {
	open := 1 - math.Exp(-indelRate*pathLength)
	if open > maxGapOpen {
		return maxGapOpen
	}
	if open < 0 {
		return 0
	}
	return open
}

// GapExtendProb converts a mean indel length into a gap extension
// probability.
func GapExtendProb(indelLength float64) float64 {
	if indelLength < 1 {
		indelLength = 1
	}
	extend := 1 - 1/indelLength
	if extend > 0.99 {
		return 0.99
	}
	return extend
}

// PairHMMRequest scores two unaligned coded sequences that diverged from a
// common ancestor. Psub1 and Psub2 are the transition matrices down the two
// branches, MotifProbs the ancestral motif distribution.
type PairHMMRequest struct {
	Seq1, Seq2 []int
	MotifProbs []float64
	Psub1      [][]float64
	Psub2      [][]float64
	GapOpen    float64
	GapExtend  float64
}

// PairLogLikelihood runs the forward algorithm of a three-state pair HMM in
// log space and returns the total log-likelihood of the two sequences.
func PairLogLikelihood(ctx context.Context, req PairHMMRequest) (float64, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	n, m := len(req.Seq1), len(req.Seq2)
	logMatch := math.Log(1 - 2*req.GapOpen)
	logOpen := math.Log(req.GapOpen)
	logExtend := math.Log(req.GapExtend)
	logClose := math.Log(1 - req.GapExtend)

	// Two-row DP. Cell layout per row: [match, gap1, gap2] per column, where
	// gap1 consumes Seq1 only and gap2 consumes Seq2 only.
	prev := newLogRow(3 * (m + 1))
	cur := newLogRow(3 * (m + 1))
	prev[0] = 0 // match state at the origin

	// Row 0: only gap2 chains are reachable.
	for j := 1; j <= m; j++ {
		at := 3 * j
		e := req.gapEmission(req.Psub2, req.Seq2[j-1])
		prev[at+2] = math.Log(e) + logSumExp2(logOpen+prev[at-3+0], logExtend+prev[at-3+2])
	}

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for k := range cur {
			cur[k] = math.Inf(-1)
		}
		e1 := req.gapEmission(req.Psub1, req.Seq1[i-1])
		cur[1] = math.Log(e1) + logSumExp2(logOpen+prev[0], logExtend+prev[1])

		for j := 1; j <= m; j++ {
			at := 3 * j
			em := req.matchEmission(req.Seq1[i-1], req.Seq2[j-1])
			cur[at+0] = math.Log(em) + logSumExp3(
				logMatch+prev[at-3+0],
				logClose+prev[at-3+1],
				logClose+prev[at-3+2],
			)
			cur[at+1] = math.Log(e1) + logSumExp2(logOpen+prev[at+0], logExtend+prev[at+1])
			e2 := req.gapEmission(req.Psub2, req.Seq2[j-1])
			cur[at+2] = math.Log(e2) + logSumExp2(logOpen+cur[at-3+0], logExtend+cur[at-3+2])
		}
		prev, cur = cur, prev
	}

	end := 3 * m
	return logSumExp3(prev[end+0], prev[end+1], prev[end+2]), nil
}

func (req PairHMMRequest) validate() error {
	k := len(req.MotifProbs)
	if k < 2 {
		return errors.New("pair HMM needs motif probabilities")
	}
	if len(req.Psub1) != k || len(req.Psub2) != k {
		return fmt.Errorf("transition matrices must be %dx%d", k, k)
	}
	if len(req.Seq1) == 0 || len(req.Seq2) == 0 {
		return errors.New("pair HMM needs two non-empty sequences")
	}
	for _, s := range [][]int{req.Seq1, req.Seq2} {
		for pos, code := range s {
			if code < -1 || code >= k {
				return fmt.Errorf("motif code %d at position %d outside alphabet of size %d", code, pos, k)
			}
		}
	}
	if req.GapOpen <= 0 || req.GapOpen > maxGapOpen {
		return fmt.Errorf("gap open probability %v outside (0, %v]", req.GapOpen, maxGapOpen)
	}
	if req.GapExtend < 0 || req.GapExtend >= 1 {
		return fmt.Errorf("gap extend probability %v outside [0, 1)", req.GapExtend)
	}
	return nil
}

// matchEmission sums over the unobserved ancestral motif. A -1 code
// marginalises the corresponding descendant symbol.
func (req PairHMMRequest) matchEmission(x, y int) float64 {
	e := 0.0
	for a, pa := range req.MotifProbs {
		e += pa * branchProb(req.Psub1, a, x) * branchProb(req.Psub2, a, y)
	}
	return e
}

func (req PairHMMRequest) gapEmission(psub [][]float64, x int) float64 {
	e := 0.0
	for a, pa := range req.MotifProbs {
		e += pa * branchProb(psub, a, x)
	}
	return e
}

func branchProb(psub [][]float64, ancestor, descendant int) float64 {
	if descendant < 0 {
		return 1
	}
	return psub[ancestor][descendant]
}

func newLogRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.Inf(-1)
	}
	return row
}

func logSumExp2(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

func logSumExp3(a, b, c float64) float64 {
	return logSumExp2(logSumExp2(a, b), c)
}
