package calc

import (
	"context"
	"math"
	"testing"
)

func pairReq(seq1, seq2 []int) PairHMMRequest {
	return PairHMMRequest{
		Seq1:       seq1,
		Seq2:       seq2,
		MotifProbs: uniformProbs(4),
		Psub1:      identityMatrix(4),
		Psub2:      identityMatrix(4),
		GapOpen:    0.2,
		GapExtend:  0.5,
	}
}

func TestPairSingleMatch(t *testing.T) {
	got, err := PairLogLikelihood(context.Background(), pairReq([]int{0}, []int{0}))
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	// Only the match path exists under identity matrices: emission 0.25
	// times the match-to-match transition 1-2*0.2.
	want := math.Log(0.25 * 0.6)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("lnL = %v, want %v", got, want)
	}
}

func TestPairSingleInsertion(t *testing.T) {
	got, err := PairLogLikelihood(context.Background(), pairReq([]int{0}, []int{0, 1}))
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	// Identity matrices forbid matching 0 against 1, so the only path is
	// match(0,0) then a gap opening that emits the extra 1:
	// 0.25*(1-2*0.2) then 0.2*0.25.
	want := math.Log(0.25 * 0.6 * 0.2 * 0.25)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("lnL = %v, want %v", got, want)
	}
}

func TestPairSymmetricUnderSwap(t *testing.T) {
	req := pairReq([]int{0, 1, 2}, []int{0, 2})
	req.Psub1 = substMatrix(0.7, 0.1)
	req.Psub2 = substMatrix(0.7, 0.1)

	forward, err := PairLogLikelihood(context.Background(), req)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	req.Seq1, req.Seq2 = req.Seq2, req.Seq1
	backward, err := PairLogLikelihood(context.Background(), req)
	if err != nil {
		t.Fatalf("pair swapped: %v", err)
	}
	if math.Abs(forward-backward) > 1e-12 {
		t.Fatalf("swap changed lnL: %v vs %v", forward, backward)
	}
}

func TestPairAmbiguityMarginalises(t *testing.T) {
	exact, err := PairLogLikelihood(context.Background(), pairReq([]int{0}, []int{0}))
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	ambiguous, err := PairLogLikelihood(context.Background(), pairReq([]int{-1}, []int{-1}))
	if err != nil {
		t.Fatalf("pair ambiguous: %v", err)
	}
	if ambiguous <= exact {
		t.Fatalf("marginalised lnL %v should exceed exact-match lnL %v", ambiguous, exact)
	}

	// Two ambiguous symbols marginalise the match emission to 1, leaving
	// only the transition cost.
	want := math.Log(0.6)
	if math.Abs(ambiguous-want) > 1e-12 {
		t.Fatalf("lnL = %v, want %v", ambiguous, want)
	}
}

func TestPairValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PairHMMRequest)
	}{
		{"empty sequence", func(r *PairHMMRequest) { r.Seq1 = nil }},
		{"bad code", func(r *PairHMMRequest) { r.Seq2 = []int{9} }},
		{"matrix shape", func(r *PairHMMRequest) { r.Psub1 = identityMatrix(2) }},
		{"gap open zero", func(r *PairHMMRequest) { r.GapOpen = 0 }},
		{"gap open too large", func(r *PairHMMRequest) { r.GapOpen = 0.5 }},
		{"gap extend out of range", func(r *PairHMMRequest) { r.GapExtend = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := pairReq([]int{0}, []int{0})
			tc.mutate(&req)
			if _, err := PairLogLikelihood(context.Background(), req); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestGapProbHelpers(t *testing.T) {
	if got := GapOpenProb(0, 1); got != 0 {
		t.Fatalf("zero rate gap open = %v, want 0", got)
	}
	if got := GapOpenProb(100, 100); got != maxGapOpen {
		t.Fatalf("saturated gap open = %v, want %v", got, maxGapOpen)
	}
	open := GapOpenProb(0.1, 2)
	if want := 1 - math.Exp(-0.2); math.Abs(open-want) > 1e-12 {
		t.Fatalf("gap open = %v, want %v", open, want)
	}

	if got := GapExtendProb(1); got != 0 {
		t.Fatalf("unit length gap extend = %v, want 0", got)
	}
	if got := GapExtendProb(2); got != 0.5 {
		t.Fatalf("gap extend = %v, want 0.5", got)
	}
	if got := GapExtendProb(0.2); got != 0 {
		t.Fatalf("sub-unit length gap extend = %v, want 0", got)
	}
	if got := GapExtendProb(1e9); got != 0.99 {
		t.Fatalf("saturated gap extend = %v, want 0.99", got)
	}
}
