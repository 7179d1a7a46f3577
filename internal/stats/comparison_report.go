package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ModelEvaluationStats aggregates the replicate fits of one candidate model.
// AIC is computed from the best replicate log-likelihood; DominatedBy lists
// models whose replicate log-likelihoods beat this model's seed for seed.
type ModelEvaluationStats struct {
	Model              string               `json:"model"`
	FitCount           int                  `json:"fit_count"`
	FreeParams         int                  `json:"free_params"`
	BestLogLikelihood  float64              `json:"best_log_likelihood"`
	WorstLogLikelihood float64              `json:"worst_log_likelihood"`
	AvgLogLikelihood   float64              `json:"avg_log_likelihood"`
	StdLogLikelihood   float64              `json:"std_log_likelihood"`
	AvgEvaluations     float64              `json:"avg_evaluations"`
	StdEvaluations     float64              `json:"std_evaluations"`
	AIC                float64              `json:"aic"`
	DeltaAIC           float64              `json:"delta_aic"`
	AkaikeWeight       float64              `json:"akaike_weight"`
	DominatedBy        []string             `json:"dominated_by,omitempty"`
	Runs               []ModelComparisonRun `json:"runs"`
}

type ComparisonReport struct {
	ComparisonID string                 `json:"comparison_id"`
	ReportName   string                 `json:"report_name"`
	GeneratedAt  string                 `json:"generated_at_utc"`
	Comparison   ModelComparison        `json:"comparison"`
	Models       []ModelEvaluationStats `json:"models"`
	BestModel    string                 `json:"best_model,omitempty"`
}

// BuildModelEvaluationStats groups runs by model and ranks the groups by
// AIC, best first. Replicates of one model must agree on the free parameter
// count; the tree and data are shared, so a mismatch means the runs do not
// belong to the same comparison.
func BuildModelEvaluationStats(runs []ModelComparisonRun) ([]ModelEvaluationStats, error) {
	order := make([]string, 0, 4)
	grouped := make(map[string][]ModelComparisonRun)
	for _, run := range runs {
		if _, seen := grouped[run.Model]; !seen {
			order = append(order, run.Model)
		}
		grouped[run.Model] = append(grouped[run.Model], run)
	}

	out := make([]ModelEvaluationStats, 0, len(order))
	for _, name := range order {
		group := grouped[name]
		entry := ModelEvaluationStats{
			Model:      name,
			FitCount:   len(group),
			FreeParams: group[0].FreeParams,
			Runs:       append([]ModelComparisonRun(nil), group...),
		}
		lnLs := make([]float64, 0, len(group))
		evals := make([]float64, 0, len(group))
		for _, run := range group {
			if run.FreeParams != entry.FreeParams {
				return nil, fmt.Errorf("model %s replicates disagree on free params: %d vs %d", name, entry.FreeParams, run.FreeParams)
			}
			lnLs = append(lnLs, run.LogLikelihood)
			evals = append(evals, float64(run.Evaluations))
		}
		entry.BestLogLikelihood = maxFloat(lnLs)
		entry.WorstLogLikelihood = minFloat(lnLs)
		entry.AvgLogLikelihood, entry.StdLogLikelihood = avgStd(lnLs)
		entry.AvgEvaluations, entry.StdEvaluations = avgStd(evals)
		entry.AIC = 2*float64(entry.FreeParams) - 2*entry.BestLogLikelihood
		out = append(out, entry)
	}
	if len(out) == 0 {
		return out, nil
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AIC == out[j].AIC {
			return out[i].Model < out[j].Model
		}
		return out[i].AIC < out[j].AIC
	})

	bestAIC := out[0].AIC
	weightSum := 0.0
	for i := range out {
		out[i].DeltaAIC = out[i].AIC - bestAIC
		out[i].AkaikeWeight = math.Exp(-out[i].DeltaAIC / 2)
		weightSum += out[i].AkaikeWeight
	}
	for i := range out {
		out[i].AkaikeWeight /= weightSum
	}

	markDominated(out)
	return out, nil
}

// markDominated compares replicate log-likelihood vectors seed for seed.
// Model A dominates model B when A scores at least as well on every shared
// seed and strictly better in total.
func markDominated(entries []ModelEvaluationStats) {
	vectors := make([][]float64, len(entries))
	for i, entry := range entries {
		runs := append([]ModelComparisonRun(nil), entry.Runs...)
		sort.Slice(runs, func(a, b int) bool { return runs[a].Seed < runs[b].Seed })
		vec := make([]float64, len(runs))
		for j, run := range runs {
			vec[j] = run.LogLikelihood
		}
		vectors[i] = vec
	}
	for i := range entries {
		for j := range entries {
			if i == j {
				continue
			}
			if FitVectorGT(vectors[j], vectors[i]) {
				entries[i].DominatedBy = append(entries[i].DominatedBy, entries[j].Model)
			}
		}
		sort.Strings(entries[i].DominatedBy)
	}
}

func WriteComparisonReport(baseDir string, report ComparisonReport) (string, error) {
	if report.ComparisonID == "" {
		return "", fmt.Errorf("report comparison id is required")
	}
	name := report.ReportName
	if name == "" {
		name = "report"
	}
	reportDir := filepath.Join(baseDir, report.ComparisonID)
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", err
	}
	if report.GeneratedAt == "" {
		report.GeneratedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := writeJSON(filepath.Join(reportDir, name+"_Comparison.json"), report.Comparison); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(reportDir, name+"_Runs.json"), report.Comparison.Runs); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(reportDir, name+"_Models.json"), report.Models); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(reportDir, name+"_Report.json"), report); err != nil {
		return "", err
	}
	return reportDir, nil
}
