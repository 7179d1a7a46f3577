package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ModelComparisonRun records one replicate fit inside a comparison.
type ModelComparisonRun struct {
	FitID         string  `json:"fit_id"`
	Model         string  `json:"model"`
	Seed          int64   `json:"seed"`
	FreeParams    int     `json:"free_params"`
	Evaluations   int     `json:"evaluations"`
	Improvements  int     `json:"improvements"`
	LogLikelihood float64 `json:"log_likelihood"`
}

// ModelComparison is the persisted state of a model-selection sweep: which
// candidate models it covers, how far it has progressed, and the replicate
// fits completed so far. FitIndex is the 1-based index of the next fit.
type ModelComparison struct {
	ID             string               `json:"id"`
	Notes          string               `json:"notes,omitempty"`
	ProgressFlag   string               `json:"progress_flag"`
	FitIndex       int                  `json:"fit_index"`
	TotalFits      int                  `json:"total_fits"`
	StartedAtUTC   string               `json:"started_at_utc,omitempty"`
	CompletedAtUTC string               `json:"completed_at_utc,omitempty"`
	Interruptions  []string             `json:"interruptions,omitempty"`
	Models         []string             `json:"models,omitempty"`
	Replicates     int                  `json:"replicates,omitempty"`
	Runs           []ModelComparisonRun `json:"runs,omitempty"`
}

func WriteModelComparison(baseDir string, cmp ModelComparison) error {
	if cmp.ID == "" {
		return fmt.Errorf("comparison id is required")
	}
	path := modelComparisonPath(baseDir, cmp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cmp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ReadModelComparison(baseDir, id string) (ModelComparison, bool, error) {
	if id == "" {
		return ModelComparison{}, false, fmt.Errorf("comparison id is required")
	}
	path := modelComparisonPath(baseDir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ModelComparison{}, false, nil
		}
		return ModelComparison{}, false, err
	}
	var cmp ModelComparison
	if err := json.Unmarshal(data, &cmp); err != nil {
		return ModelComparison{}, false, err
	}
	return cmp, true, nil
}

func ListModelComparisons(baseDir string) ([]ModelComparison, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ModelComparison{}, nil
		}
		return nil, err
	}

	cmps := make([]ModelComparison, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cmp, ok, err := ReadModelComparison(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cmps = append(cmps, cmp)
	}
	sort.Slice(cmps, func(i, j int) bool {
		switch {
		case cmps[i].StartedAtUTC == cmps[j].StartedAtUTC:
			return cmps[i].ID < cmps[j].ID
		case cmps[i].StartedAtUTC == "":
			return false
		case cmps[j].StartedAtUTC == "":
			return true
		default:
			return cmps[i].StartedAtUTC > cmps[j].StartedAtUTC
		}
	})
	return cmps, nil
}

// WriteComparisonRunLines dumps runs as JSON lines, one object per line,
// for downstream line-oriented tooling.
func WriteComparisonRunLines(path string, runs []ModelComparisonRun) error {
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, run := range runs {
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if _, err := file.Write(data); err != nil {
			return err
		}
		if _, err := file.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

func modelComparisonPath(baseDir, id string) string {
	return filepath.Join(baseDir, id, "comparison.json")
}
