package tuning

import "context"

// ObjectiveFn scores a candidate parameter vector. Larger is better.
type ObjectiveFn func(ctx context.Context, x []float64) (float64, error)

// Result is the outcome of one maximisation run.
type Result struct {
	Vector    []float64
	Objective float64
	Report    TuneReport
}

// TuneReport summarises how a run spent its attempt budget.
type TuneReport struct {
	AttemptsPlanned      int  `json:"attempts_planned"`
	AttemptsExecuted     int  `json:"attempts_executed"`
	CandidateEvaluations int  `json:"candidate_evaluations"`
	AcceptedCandidates   int  `json:"accepted_candidates"`
	RejectedCandidates   int  `json:"rejected_candidates"`
	Converged            bool `json:"converged"`
}

// Tuner maximises an objective over a box-bounded vector.
type Tuner interface {
	Name() string
	Maximize(ctx context.Context, x0, lower, upper []float64, attempts int, objective ObjectiveFn) (Result, error)
}
