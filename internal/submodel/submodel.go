package submodel

import (
	"fmt"
	"strings"

	"klados/internal/seqio"
)

// ParamDefault holds the starting value and bounds a parameter takes when no
// rule overrides them.
type ParamDefault struct {
	Init  float64
	Lower float64
	Upper float64
}

// Model is a substitution model over a fixed motif alphabet.
type Model interface {
	Name() string
	Alphabet() []string
	ParamList() []string
	ParamDefault(name string) (ParamDefault, bool)
	DefaultMotifProbs() []float64
	Psubs(params map[string]float64, motifProbs []float64, length float64) ([][]float64, error)
	CountMotifs(seqs []seqio.Seq, includeAmbiguity bool) []float64
	ConvertSequence(data, name string) ([]int, error)
}

// IndelModel optionally extends a model with insertion/deletion parameters
// for likelihoods over unaligned sequences.
type IndelModel interface {
	Model
	IndelParamList() []string
}

// FromName resolves a model by canonical name or alias.
func FromName(name string) (Model, error) {
	switch Normalize(name) {
	case "jc69":
		return JC69(), nil
	case "k80":
		return K80(), nil
	case "f81":
		return F81(), nil
	case "hky85":
		return HKY85(), nil
	default:
		return nil, fmt.Errorf("unsupported substitution model: %s", name)
	}
}

// Names lists the canonical model names.
func Names() []string {
	return []string{"jc69", "k80", "f81", "hky85"}
}

// Normalize canonicalizes model names and common aliases.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	compact := strings.ReplaceAll(normalized, "-", "")
	switch compact {
	case "jc", "jc69", "jukescantor", "jukescantor69":
		return "jc69"
	case "k80", "k2p", "kimura", "kimura2p", "kimura80":
		return "k80"
	case "f81", "felsenstein81":
		return "f81"
	case "hky", "hky85", "hky1985":
		return "hky85"
	default:
		return normalized
	}
}
