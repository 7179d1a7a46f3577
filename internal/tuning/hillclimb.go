package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// HillClimb is a stochastic annealed hill climber. Each attempt perturbs one
// or more base vectors and keeps a candidate only when it beats the current
// best by at least MinImprovement. Per-slot perturbations shrink over the
// Steps of an attempt by AnnealingFactor.
type HillClimb struct {
	Rand               *rand.Rand
	Steps              int
	StepSize           float64
	PerturbationRange  float64
	AnnealingFactor    float64
	MinImprovement     float64
	StallLimit         int
	CandidateSelection string
	mu                 sync.Mutex
}

const (
	CandidateSelectBestSoFar = "best_so_far"
	CandidateSelectOriginal  = "original"
	CandidateSelectRecent    = "recent"
	CandidateSelectDynamic   = "dynamic"
	CandidateSelectDynamicRd = "dynamic_random"
	CandidateSelectAll       = "all"
	CandidateSelectAllRandom = "all_random"
)

func (h *HillClimb) Name() string {
	return "annealed_hillclimb"
}

// Maximize climbs from x0 within [lower, upper] for the given number of
// attempts and returns the best vector found.
func (h *HillClimb) Maximize(ctx context.Context, x0, lower, upper []float64, attempts int, objective ObjectiveFn) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if h == nil || h.Rand == nil {
		return Result{}, errors.New("random source is required")
	}
	if h.Steps <= 0 {
		return Result{}, errors.New("steps must be > 0")
	}
	if h.StepSize <= 0 {
		return Result{}, errors.New("step size must be > 0")
	}
	if h.PerturbationRange < 0 {
		return Result{}, errors.New("perturbation range must be >= 0")
	}
	if h.AnnealingFactor < 0 {
		return Result{}, errors.New("annealing factor must be >= 0")
	}
	if h.MinImprovement < 0 {
		return Result{}, errors.New("min improvement must be >= 0")
	}
	if objective == nil {
		return Result{}, errors.New("objective function is required")
	}
	if len(lower) != len(x0) || len(upper) != len(x0) {
		return Result{}, fmt.Errorf("bounds length %d/%d does not match vector length %d", len(lower), len(upper), len(x0))
	}
	for i := range x0 {
		if lower[i] > upper[i] {
			return Result{}, fmt.Errorf("slot %d: lower bound %v exceeds upper bound %v", i, lower[i], upper[i])
		}
	}
	perturbationRange := h.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := h.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}

	report := TuneReport{AttemptsPlanned: attempts}
	original := clampVector(x0, lower, upper)
	best := cloneVector(original)
	bestScore, err := objective(ctx, best)
	if err != nil {
		return Result{}, err
	}
	if attempts <= 0 || len(x0) == 0 {
		return Result{Vector: best, Objective: bestScore, Report: report}, nil
	}
	recent := cloneVector(best)

	stalled := 0
	for a := 0; a < attempts; a++ {
		bases, err := h.candidateBases(best, original, recent)
		if err != nil {
			return Result{}, err
		}
		localBest := best
		localBestScore := bestScore
		for _, base := range bases {
			candidate, err := h.perturb(ctx, base, lower, upper, perturbationRange, annealingFactor)
			if err != nil {
				return Result{}, err
			}
			score, err := objective(ctx, candidate)
			if err != nil {
				return Result{}, err
			}
			report.CandidateEvaluations++
			if score > localBestScore+h.MinImprovement {
				localBest = candidate
				localBestScore = score
				report.AcceptedCandidates++
			} else {
				report.RejectedCandidates++
			}
		}
		recent = cloneVector(localBest)
		if localBestScore > bestScore+h.MinImprovement {
			best = localBest
			bestScore = localBestScore
			stalled = 0
		} else {
			stalled++
		}
		report.AttemptsExecuted++
		if h.StallLimit > 0 && stalled >= h.StallLimit {
			report.Converged = true
			break
		}
	}

	return Result{Vector: cloneVector(best), Objective: bestScore, Report: report}, nil
}

func (h *HillClimb) candidateBases(best, original, recent []float64) ([][]float64, error) {
	mode := NormalizeCandidateSelectionName(h.CandidateSelection)
	switch mode {
	case CandidateSelectDynamicRd, CandidateSelectAllRandom:
		pool, err := h.candidateBasesForMode(nonRandomModeFor(mode), best, original, recent)
		if err != nil {
			return nil, err
		}
		return h.randomSubset(pool), nil
	default:
		return h.candidateBasesForMode(mode, best, original, recent)
	}
}

func (h *HillClimb) candidateBasesForMode(mode string, best, original, recent []float64) ([][]float64, error) {
	switch mode {
	case CandidateSelectBestSoFar:
		return [][]float64{cloneVector(best)}, nil
	case CandidateSelectOriginal:
		return [][]float64{cloneVector(original)}, nil
	case CandidateSelectRecent:
		return [][]float64{cloneVector(recent)}, nil
	case CandidateSelectDynamic:
		return [][]float64{cloneVector(best), cloneVector(original)}, nil
	case CandidateSelectAll:
		return [][]float64{cloneVector(best), cloneVector(original), cloneVector(recent)}, nil
	default:
		return nil, fmt.Errorf("unsupported candidate selection: %s", mode)
	}
}

func nonRandomModeFor(mode string) string {
	switch mode {
	case CandidateSelectDynamicRd:
		return CandidateSelectDynamic
	case CandidateSelectAllRandom:
		return CandidateSelectAll
	default:
		return mode
	}
}

// NormalizeCandidateSelectionName maps the empty string to the default mode
// and passes unknown names through for Maximize to reject.
func NormalizeCandidateSelectionName(name string) string {
	if name == "" {
		return CandidateSelectBestSoFar
	}
	return name
}

func (h *HillClimb) randomSubset(pool [][]float64) [][]float64 {
	if len(pool) <= 1 {
		return pool
	}
	keepP := 1 / math.Sqrt(float64(len(pool)))
	chosen := make([][]float64, 0, len(pool))
	for i := range pool {
		if h.randFloat64() < keepP {
			chosen = append(chosen, pool[i])
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	return [][]float64{pool[h.randIntn(len(pool))]}
}

func (h *HillClimb) perturb(ctx context.Context, base, lower, upper []float64, perturbationRange, annealingFactor float64) ([]float64, error) {
	candidate := cloneVector(base)
	for s := 0; s < h.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := h.randIntn(len(candidate))
		spread := h.StepSize * perturbationRange * math.Pow(annealingFactor, float64(s))
		delta := (h.randFloat64()*2 - 1) * spread
		candidate[idx] = clampValue(candidate[idx]+delta, lower[idx], upper[idx])
	}
	return candidate, nil
}

func (h *HillClimb) randIntn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Rand.Intn(n)
}

func (h *HillClimb) randFloat64() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Rand.Float64()
}

func cloneVector(x []float64) []float64 {
	return append([]float64(nil), x...)
}

func clampVector(x, lower, upper []float64) []float64 {
	out := cloneVector(x)
	for i := range out {
		out[i] = clampValue(out[i], lower[i], upper[i])
	}
	return out
}

func clampValue(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
