package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// ComparisonGraph holds the per-improvement-step series for one candidate
// model, aggregated across its replicate fits. Histories are ragged; a step
// only aggregates the replicates that reached it.
type ComparisonGraph struct {
	Model            string    `json:"model"`
	ImprovementIndex []int     `json:"improvement_index"`
	AvgLnL           []float64 `json:"avg_lnl"`
	LnLStd           []float64 `json:"lnl_std"`
	MaxLnL           []float64 `json:"max_lnl"`
	MinLnL           []float64 `json:"min_lnl"`
	ReplicateCount   []float64 `json:"replicate_count"`
}

func BuildComparisonGraphs(histories map[string][][]float64) []ComparisonGraph {
	models := make([]string, 0, len(histories))
	for model := range histories {
		models = append(models, model)
	}
	sort.Strings(models)

	graphs := make([]ComparisonGraph, 0, len(models))
	for _, model := range models {
		graphs = append(graphs, buildGraphForModel(model, histories[model]))
	}
	return graphs
}

// BuildComparisonGraphFromHistory renders a single fit's improvement history
// as a one-replicate graph.
func BuildComparisonGraphFromHistory(history []float64, model string) ComparisonGraph {
	if strings.TrimSpace(model) == "" {
		model = "fit"
	}
	return buildGraphForModel(model, [][]float64{history})
}

func WriteComparisonGraphs(baseDir, comparisonID, graphPostfix string, graphs []ComparisonGraph) ([]string, error) {
	if comparisonID == "" {
		return nil, fmt.Errorf("graph comparison id is required")
	}
	return WriteComparisonGraphsToDir(filepath.Join(baseDir, comparisonID), graphPostfix, graphs)
}

func WriteComparisonGraphsToDir(outputDir, graphPostfix string, graphs []ComparisonGraph) ([]string, error) {
	if graphPostfix == "" {
		graphPostfix = "report_Graphs"
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(graphs))
	for _, graph := range graphs {
		name := "graph_" + sanitizeGraphToken(graph.Model) + "_" + graphPostfix
		path := filepath.Join(outputDir, name)
		if err := writeComparisonGraphFile(path, graph); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func buildGraphForModel(model string, histories [][]float64) ComparisonGraph {
	graph := ComparisonGraph{
		Model: model,
	}
	maxSteps := 0
	for _, history := range histories {
		if len(history) > maxSteps {
			maxSteps = len(history)
		}
	}
	graph.ImprovementIndex = make([]int, 0, maxSteps)
	for step := 0; step < maxSteps; step++ {
		graph.ImprovementIndex = append(graph.ImprovementIndex, step+1)

		values := make([]float64, 0, len(histories))
		for _, history := range histories {
			if step < len(history) {
				values = append(values, history[step])
			}
		}

		avg, std := avgStd(values)
		graph.AvgLnL = append(graph.AvgLnL, avg)
		graph.LnLStd = append(graph.LnLStd, std)
		graph.MaxLnL = append(graph.MaxLnL, maxOrZero(values))
		graph.MinLnL = append(graph.MinLnL, minOrZero(values))
		graph.ReplicateCount = append(graph.ReplicateCount, float64(len(values)))
	}
	return graph
}

func writeComparisonGraphFile(path string, graph ComparisonGraph) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "#Avg LnL Vs Improvement, Model:%s\n", graph.Model); err != nil {
		return err
	}
	if err := writeSeriesWithStd(file, graph.ImprovementIndex, graph.AvgLnL, graph.LnLStd); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(file, "\n\n#Max LnL Vs Improvement, Model:%s\n", graph.Model); err != nil {
		return err
	}
	if err := writeSeries(file, graph.ImprovementIndex, graph.MaxLnL); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(file, "\n\n#Min LnL Vs Improvement, Model:%s\n", graph.Model); err != nil {
		return err
	}
	if err := writeSeries(file, graph.ImprovementIndex, graph.MinLnL); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(file, "\n\n#Replicates Vs Improvement, Model:%s\n", graph.Model); err != nil {
		return err
	}
	return writeSeries(file, graph.ImprovementIndex, graph.ReplicateCount)
}

func writeSeriesWithStd(file *os.File, index []int, values, std []float64) error {
	length := minInt(len(index), minInt(len(values), len(std)))
	for i := 0; i < length; i++ {
		if _, err := fmt.Fprintf(file, "%d %g %g\n", index[i], values[i], std[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeSeries(file *os.File, index []int, values []float64) error {
	length := minInt(len(index), len(values))
	for i := 0; i < length; i++ {
		if _, err := fmt.Fprintf(file, "%d %g\n", index[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeGraphToken(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	token := strings.Trim(b.String(), "_")
	if token == "" {
		return "unknown"
	}
	return token
}

// avgStd returns the mean and population standard deviation, zero for an
// empty slice.
func avgStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	mean := sum / float64(len(values))
	sq := 0.0
	for _, value := range values {
		diff := mean - value
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func maxFloat(values []float64) float64 {
	max := values[0]
	for _, value := range values[1:] {
		if value > max {
			max = value
		}
	}
	return max
}

func minFloat(values []float64) float64 {
	min := values[0]
	for _, value := range values[1:] {
		if value < min {
			min = value
		}
	}
	return min
}

func maxOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return maxFloat(values)
}

func minOrZero(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return minFloat(values)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
