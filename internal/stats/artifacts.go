package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"klados/internal/model"
)

const fitIndexFile = "fit_index.json"

// FitConfig records how a fit was requested, alongside its results, so a
// fit directory is self-describing.
type FitConfig struct {
	FitID                 string   `json:"fit_id"`
	Model                 string   `json:"model"`
	Flavour               string   `json:"flavour"`
	TreeNewick            string   `json:"tree_newick"`
	Bins                  []string `json:"bins,omitempty"`
	Loci                  []string `json:"loci,omitempty"`
	OptimiseMotifProbs    bool     `json:"optimise_motif_probs"`
	Workers               int      `json:"workers"`
	Attempts              int      `json:"attempts"`
	Seed                  int64    `json:"seed"`
	TuneSteps             int      `json:"tune_steps"`
	TuneStepSize          float64  `json:"tune_step_size"`
	TunePerturbationRange float64  `json:"tune_perturbation_range"`
	TuneAnnealingFactor   float64  `json:"tune_annealing_factor"`
	TuneMinImprovement    float64  `json:"tune_min_improvement"`
	TuneStallLimit        int      `json:"tune_stall_limit"`
}

type FitArtifacts struct {
	Config             FitConfig             `json:"config"`
	LnLHistory         []float64             `json:"lnl_history"`
	FinalLogLikelihood float64               `json:"final_log_likelihood"`
	Evaluations        int                   `json:"evaluations"`
	FreeParams         int                   `json:"free_params"`
	Estimates          []model.ParamEstimate `json:"estimates"`
	AnnotatedNewick    string                `json:"annotated_newick"`
}

type FitIndexEntry struct {
	FitID              string  `json:"fit_id"`
	Model              string  `json:"model"`
	Flavour            string  `json:"flavour"`
	Seed               int64   `json:"seed"`
	TipCount           int     `json:"tip_count"`
	FreeParams         int     `json:"free_params"`
	Evaluations        int     `json:"evaluations"`
	FinalLogLikelihood float64 `json:"final_log_likelihood"`
	CreatedAtUTC       string  `json:"created_at_utc"`
}

func WriteFitArtifacts(baseDir string, artifacts FitArtifacts) (string, error) {
	if artifacts.Config.FitID == "" {
		return "", fmt.Errorf("fit id is required")
	}

	fitDir := filepath.Join(baseDir, artifacts.Config.FitID)
	if err := os.MkdirAll(fitDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(fitDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(fitDir, "history.json"), map[string]any{
		"lnl_history":          artifacts.LnLHistory,
		"final_log_likelihood": artifacts.FinalLogLikelihood,
		"evaluations":          artifacts.Evaluations,
		"free_params":          artifacts.FreeParams,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(fitDir, "estimates.json"), artifacts.Estimates); err != nil {
		return "", err
	}
	newick := artifacts.AnnotatedNewick
	if !strings.HasSuffix(newick, "\n") {
		newick += "\n"
	}
	if err := os.WriteFile(filepath.Join(fitDir, "annotated_tree.nwk"), []byte(newick), 0o644); err != nil {
		return "", err
	}

	return fitDir, nil
}

func AppendFitIndex(baseDir string, entry FitIndexEntry) error {
	if entry.FitID == "" {
		return fmt.Errorf("fit id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListFitIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].FitID == entry.FitID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, fitIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, fitIndexFile), index)
}

func ListFitIndex(baseDir string) ([]FitIndexEntry, error) {
	path := filepath.Join(baseDir, fitIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []FitIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []FitIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry FitIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]FitIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportFitArtifacts(baseDir, fitID, outDir string) (string, error) {
	if fitID == "" {
		return "", fmt.Errorf("fit id is required")
	}

	src := filepath.Join(baseDir, fitID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, fitID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "history.json", "estimates.json", "annotated_tree.nwk"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	statisticsPath := filepath.Join(src, "statistics.json")
	if _, err := os.Stat(statisticsPath); err == nil {
		if err := copyFile(statisticsPath, filepath.Join(dst, "statistics.json")); err != nil {
			return "", err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func WriteFitStatistics(fitDir string, statistics map[string]map[string]float64) error {
	return writeJSON(filepath.Join(fitDir, "statistics.json"), statistics)
}

func ReadFitStatistics(baseDir, fitID string) (map[string]map[string]float64, bool, error) {
	path := filepath.Join(baseDir, fitID, "statistics.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var statistics map[string]map[string]float64
	if err := json.Unmarshal(data, &statistics); err != nil {
		return nil, false, err
	}
	return statistics, true, nil
}

func ReadFitHistory(baseDir, fitID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, fitID, "history.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var payload struct {
		LnLHistory []float64 `json:"lnl_history"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, err
	}
	return payload.LnLHistory, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
