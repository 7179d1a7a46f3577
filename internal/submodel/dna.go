package submodel

import (
	"fmt"
	"math"

	"klados/internal/seqio"
)

// dnaAlphabet is the canonical motif order. Pyrimidines come first, so
// indexes 0..1 are one transition class and 2..3 the other.
var dnaAlphabet = []string{"T", "C", "A", "G"}

var dnaIndex = map[byte]int{'T': 0, 'C': 1, 'A': 2, 'G': 3, 't': 0, 'c': 1, 'a': 2, 'g': 3}

// dnaAmbiguity maps IUPAC degenerate symbols to the motif indexes they cover.
var dnaAmbiguity = map[byte][]int{
	'R': {2, 3}, 'Y': {0, 1}, 'S': {1, 3}, 'W': {0, 2},
	'K': {0, 3}, 'M': {1, 2}, 'B': {0, 1, 3}, 'D': {0, 2, 3},
	'H': {0, 1, 2}, 'V': {1, 2, 3}, 'N': {0, 1, 2, 3}, '?': {0, 1, 2, 3},
}

// DNAModel is a time-reversible nucleotide model with an analytic transition
// probability solution. The named variants differ only in which rate
// parameters are exposed; motif probabilities always come in from outside.
type DNAModel struct {
	name       string
	rateParams []string
}

func JC69() *DNAModel {
	return &DNAModel{name: "jc69"}
}

func F81() *DNAModel {
	return &DNAModel{name: "f81"}
}

func K80() *DNAModel {
	return &DNAModel{name: "k80", rateParams: []string{"kappa"}}
}

func HKY85() *DNAModel {
	return &DNAModel{name: "hky85", rateParams: []string{"kappa"}}
}

func (m *DNAModel) Name() string {
	return m.name
}

func (m *DNAModel) Alphabet() []string {
	return append([]string(nil), dnaAlphabet...)
}

func (m *DNAModel) ParamList() []string {
	return append([]string(nil), m.rateParams...)
}

func (m *DNAModel) ParamDefault(name string) (ParamDefault, bool) {
	switch name {
	case "kappa":
		return ParamDefault{Init: 1.0, Lower: 1e-6, Upper: 100}, true
	case "indel_rate":
		return ParamDefault{Init: 0.1, Lower: 1e-6, Upper: 10}, true
	case "indel_length":
		return ParamDefault{Init: 2.0, Lower: 1.0001, Upper: 100}, true
	default:
		return ParamDefault{}, false
	}
}

func (m *DNAModel) DefaultMotifProbs() []float64 {
	return []float64{0.25, 0.25, 0.25, 0.25}
}

func (m *DNAModel) IndelParamList() []string {
	return []string{"indel_rate", "indel_length"}
}

// Psubs returns the 4x4 transition probability matrix for a branch, using
// the closed-form HKY solution. Models without a kappa parameter use
// kappa=1, which collapses to F81 (and to JC69 under equal frequencies).
func (m *DNAModel) Psubs(params map[string]float64, motifProbs []float64, length float64) ([][]float64, error) {
	if len(motifProbs) != len(dnaAlphabet) {
		return nil, fmt.Errorf("model %s expects %d motif probs, got %d", m.name, len(dnaAlphabet), len(motifProbs))
	}
	if length < 0 {
		return nil, fmt.Errorf("model %s: negative branch length %v", m.name, length)
	}
	kappa := 1.0
	for _, p := range m.rateParams {
		v, ok := params[p]
		if !ok {
			return nil, fmt.Errorf("model %s: missing parameter %s", m.name, p)
		}
		if p == "kappa" {
			if v <= 0 {
				return nil, fmt.Errorf("model %s: kappa must be > 0, got %v", m.name, v)
			}
			kappa = v
		}
	}
	return hkyPsubs(kappa, motifProbs, length), nil
}

// hkyPsubs evaluates the spectral solution of the HKY rate matrix, scaled to
// one expected substitution per unit branch length.
func hkyPsubs(kappa float64, pi []float64, t float64) [][]float64 {
	piY := pi[0] + pi[1]
	piR := pi[2] + pi[3]
	rate := 2*kappa*(pi[0]*pi[1]+pi[2]*pi[3]) + 2*piY*piR

	P := make([][]float64, 4)
	for i := range P {
		P[i] = make([]float64, 4)
	}
	if rate <= 0 {
		for i := range P {
			P[i][i] = 1
		}
		return P
	}

	beta := 1.0 / rate
	e2 := math.Exp(-beta * t)
	for j := 0; j < 4; j++ {
		classFreq := piY
		if j >= 2 {
			classFreq = piR
		}
		if classFreq <= 0 {
			for i := 0; i < 4; i++ {
				if i == j {
					P[i][j] = 1
				}
			}
			continue
		}
		e4 := math.Exp(-beta * t * (classFreq*kappa + (1 - classFreq)))
		for i := 0; i < 4; i++ {
			switch {
			case i == j:
				P[i][j] = pi[j] + pi[j]*(1/classFreq-1)*e2 + ((classFreq-pi[j])/classFreq)*e4
			case (i < 2) == (j < 2):
				P[i][j] = pi[j] + pi[j]*(1/classFreq-1)*e2 - (pi[j]/classFreq)*e4
			default:
				P[i][j] = pi[j] * (1 - e2)
			}
		}
	}
	return P
}

// CountMotifs tallies motif occurrences across sequences. Gaps are skipped;
// degenerate symbols contribute fractional counts when includeAmbiguity is
// set and are skipped otherwise.
func (m *DNAModel) CountMotifs(seqs []seqio.Seq, includeAmbiguity bool) []float64 {
	counts := make([]float64, len(dnaAlphabet))
	for _, s := range seqs {
		for i := 0; i < len(s.Data); i++ {
			c := s.Data[i]
			if idx, ok := dnaIndex[c]; ok {
				counts[idx]++
				continue
			}
			if !includeAmbiguity {
				continue
			}
			if span, ok := dnaAmbiguity[upperByte(c)]; ok {
				share := 1.0 / float64(len(span))
				for _, idx := range span {
					counts[idx] += share
				}
			}
		}
	}
	return counts
}

// ConvertSequence int-codes a sequence against the alphabet. Gaps and
// degenerate symbols code as -1, meaning "any motif" to evaluators.
func (m *DNAModel) ConvertSequence(data, name string) ([]int, error) {
	out := make([]int, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if idx, ok := dnaIndex[c]; ok {
			out[i] = idx
			continue
		}
		u := upperByte(c)
		if _, ok := dnaAmbiguity[u]; ok || u == '-' || u == '.' {
			out[i] = -1
			continue
		}
		return nil, fmt.Errorf("invalid symbol %q at position %d in sequence %s", string(c), i, name)
	}
	return out, nil
}

func upperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
