package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"klados/internal/likelihood"
	"klados/internal/seqio"
	"klados/internal/stats"
	"klados/internal/storage"
	kladosapi "klados/pkg/klados"
)

const comparisonsDir = "comparisons"

func runCompare(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("compare requires a subcommand: run|list|show|report|graph|plot")
	}
	switch args[0] {
	case "run":
		return runCompareRun(ctx, args[1:])
	case "list":
		return runCompareList(ctx, args[1:])
	case "show":
		return runCompareShow(args[1:])
	case "report":
		return runCompareReport(args[1:])
	case "graph":
		return runCompareGraph(args[1:])
	case "plot":
		return runComparePlot(args[1:])
	default:
		return fmt.Errorf("unknown compare subcommand: %s", args[0])
	}
}

func runCompareRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare run", flag.ContinueOnError)
	id := fs.String("id", "", "comparison id (defaults to a fresh uuid)")
	notes := fs.String("notes", "", "optional comparison notes")
	reportName := fs.String("report-name", "report", "report output prefix")
	modelsRaw := fs.String("models", "", "comma-separated candidate models (defaults to every registered model)")
	replicates := fs.Int("replicates", 3, "fits per candidate model")
	flavourName := fs.String("flavour", kladosapi.FlavourAlignment, "fit flavour: alignment|sequence")
	treeText := fs.String("tree", "", "newick tree text")
	treeFile := fs.String("tree-file", "", "newick tree file path")
	seqsRaw := fs.String("seqs", "", "comma-separated FASTA paths, one per locus")
	lociRaw := fs.String("loci", "", "comma-separated locus names (defaults to locus0..)")
	binsRaw := fs.String("bins", "", "comma-separated rate-class bin names")
	motifProbsRaw := fs.String("motif-probs", "", "comma-separated stationary frequencies in alphabet order")
	optimiseMotifProbs := fs.Bool("optimise-mprobs", false, "optimise stationary frequencies")
	rulesRaw := fs.String("rules", "", "semicolon-separated rule specs applied to every candidate")
	workers := fs.Int("workers", 1, "likelihood worker count")
	attempts := fs.Int("attempts", 50, "optimisation attempts per fit")
	seed := fs.Int64("seed", 1, "rng seed for the first replicate")
	tuneSteps := fs.Int("tune-steps", 8, "perturbation steps per attempt")
	tuneStepSize := fs.Float64("tune-step-size", 0.35, "perturbation magnitude")
	tunePerturbationRange := fs.Float64("tune-perturbation-range", 1.0, "perturbation spread multiplier")
	tuneAnnealingFactor := fs.Float64("tune-annealing-factor", 0.9, "per-step annealing factor")
	tuneMinImprovement := fs.Float64("tune-min-improvement", 1e-9, "minimum gain required to accept a candidate")
	tuneStallLimit := fs.Int("tune-stall-limit", 25, "attempts without improvement before stopping early")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "klados.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "log comparison progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *replicates <= 0 {
		return errors.New("compare run requires --replicates > 0")
	}

	treeNewick := *treeText
	if *treeFile != "" {
		if treeNewick != "" {
			return errors.New("use either tree or tree-file, not both")
		}
		data, err := os.ReadFile(*treeFile)
		if err != nil {
			return err
		}
		treeNewick = strings.TrimSpace(string(data))
	}
	if treeNewick == "" {
		return errors.New("compare run requires tree or tree-file")
	}
	seqPaths := parseCommaSeparated(*seqsRaw)
	if len(seqPaths) == 0 {
		return errors.New("compare run requires seqs")
	}
	sequences := make([][]seqio.Seq, 0, len(seqPaths))
	for _, path := range seqPaths {
		seqs, err := seqio.ParseFastaFile(path)
		if err != nil {
			return err
		}
		sequences = append(sequences, seqs)
	}
	var motifProbs []float64
	if strings.TrimSpace(*motifProbsRaw) != "" {
		probs, err := parseFloatVector(*motifProbsRaw)
		if err != nil {
			return err
		}
		motifProbs = probs
	}
	var rules []likelihood.Rule
	if strings.TrimSpace(*rulesRaw) != "" {
		parsed, err := parseRuleSpecs(*rulesRaw)
		if err != nil {
			return err
		}
		rules = parsed
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	client, err := kladosapi.New(kladosapi.Options{
		StoreKind:      *storeKind,
		DBPath:         *dbPath,
		ArtifactsDir:   artifactsDir,
		ExportsDir:     exportsDir,
		ComparisonsDir: comparisonsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	models := parseCommaSeparated(*modelsRaw)
	logger.Info("comparison starting",
		"models", len(models),
		"replicates", *replicates,
		"loci", len(sequences),
		"attempts", *attempts,
		"seed", *seed,
	)
	start := time.Now()
	summary, err := client.Compare(ctx, kladosapi.CompareRequest{
		ComparisonID: strings.TrimSpace(*id),
		Notes:        strings.TrimSpace(*notes),
		ReportName:   strings.TrimSpace(*reportName),
		Models:       models,
		Replicates:   *replicates,
		Fit: kladosapi.FitRequest{
			TreeNewick:            treeNewick,
			Flavour:               *flavourName,
			Sequences:             sequences,
			LocusNames:            parseCommaSeparated(*lociRaw),
			Bins:                  parseCommaSeparated(*binsRaw),
			MotifProbs:            motifProbs,
			OptimiseMotifProbs:    *optimiseMotifProbs,
			Rules:                 rules,
			Workers:               *workers,
			Attempts:              *attempts,
			Seed:                  *seed,
			TuneSteps:             *tuneSteps,
			TuneStepSize:          *tuneStepSize,
			TunePerturbationRange: *tunePerturbationRange,
			TuneAnnealingFactor:   *tuneAnnealingFactor,
			TuneMinImprovement:    *tuneMinImprovement,
			TuneStallLimit:        *tuneStallLimit,
		},
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("comparison finished",
		"comparison_id", summary.ComparisonID,
		"best_model", summary.BestModel,
		"fits", len(summary.FitIDs),
		"elapsed", elapsed,
	)

	fmt.Printf("comparison completed comparison_id=%s best_model=%s fits=%s elapsed=%s\n",
		summary.ComparisonID,
		summary.BestModel,
		humanize.Comma(int64(len(summary.FitIDs))),
		elapsed.Round(time.Millisecond),
	)
	for i, ranking := range summary.Rankings {
		fmt.Printf("rank=%d model=%s free_params=%d best_lnl=%.6f aic=%.6f delta_aic=%.6f akaike_weight=%.6f dominated_by=%s\n",
			i+1,
			ranking.Model,
			ranking.FreeParams,
			ranking.BestLogLikelihood,
			ranking.AIC,
			ranking.DeltaAIC,
			ranking.AkaikeWeight,
			strings.Join(ranking.DominatedBy, ","),
		)
	}
	fmt.Printf("report_dir=%s\n", filepath.Clean(summary.ReportDir))
	return nil
}

func runCompareList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare list", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit comparisons as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := kladosapi.New(kladosapi.Options{
		ArtifactsDir:   artifactsDir,
		ExportsDir:     exportsDir,
		ComparisonsDir: comparisonsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Comparisons(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		type comparisonItem struct {
			ComparisonID   string   `json:"comparison_id"`
			ProgressFlag   string   `json:"progress_flag"`
			FitIndex       int      `json:"fit_index"`
			TotalFits      int      `json:"total_fits"`
			StartedAtUTC   string   `json:"started_at_utc"`
			CompletedAtUTC string   `json:"completed_at_utc,omitempty"`
			Models         []string `json:"models"`
			Replicates     int      `json:"replicates"`
			Notes          string   `json:"notes,omitempty"`
		}
		payload := make([]comparisonItem, 0, len(items))
		for _, item := range items {
			payload = append(payload, comparisonItem{
				ComparisonID:   item.ComparisonID,
				ProgressFlag:   item.ProgressFlag,
				FitIndex:       item.FitIndex,
				TotalFits:      item.TotalFits,
				StartedAtUTC:   item.StartedAtUTC,
				CompletedAtUTC: item.CompletedAtUTC,
				Models:         item.Models,
				Replicates:     item.Replicates,
				Notes:          item.Notes,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	if len(items) == 0 {
		fmt.Println("no model comparisons")
		return nil
	}
	for _, item := range items {
		age := "n/a"
		if started, err := time.Parse(time.RFC3339Nano, item.StartedAtUTC); err == nil {
			age = humanize.Time(started)
		}
		fmt.Printf("comparison_id=%s progress=%s fit_index=%d total_fits=%d started=%s age=%s completed=%s models=%s replicates=%d notes=%s\n",
			item.ComparisonID,
			item.ProgressFlag,
			item.FitIndex,
			item.TotalFits,
			item.StartedAtUTC,
			age,
			item.CompletedAtUTC,
			strings.Join(item.Models, ","),
			item.Replicates,
			item.Notes,
		)
	}
	return nil
}

func runCompareShow(args []string) error {
	fs := flag.NewFlagSet("compare show", flag.ContinueOnError)
	id := fs.String("id", "", "comparison id")
	jsonOut := fs.Bool("json", false, "emit comparison as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("compare show requires --id")
	}
	cmp, ok, err := stats.ReadModelComparison(comparisonsDir, strings.TrimSpace(*id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model comparison not found: %s", strings.TrimSpace(*id))
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	}
	fmt.Printf("comparison_id=%s progress=%s fit_index=%d total_fits=%d started=%s completed=%s interruptions=%d models=%s replicates=%d notes=%s\n",
		cmp.ID,
		cmp.ProgressFlag,
		cmp.FitIndex,
		cmp.TotalFits,
		cmp.StartedAtUTC,
		cmp.CompletedAtUTC,
		len(cmp.Interruptions),
		strings.Join(cmp.Models, ","),
		cmp.Replicates,
		cmp.Notes,
	)
	for i, run := range cmp.Runs {
		fmt.Printf("fit=%d fit_id=%s model=%s seed=%d free_params=%d evaluations=%d improvements=%d lnl=%.6f\n",
			i+1,
			run.FitID,
			run.Model,
			run.Seed,
			run.FreeParams,
			run.Evaluations,
			run.Improvements,
			run.LogLikelihood,
		)
	}
	return nil
}

func runCompareReport(args []string) error {
	fs := flag.NewFlagSet("compare report", flag.ContinueOnError)
	id := fs.String("id", "", "comparison id")
	name := fs.String("name", "report", "report output prefix")
	jsonOut := fs.Bool("json", false, "emit report metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("compare report requires --id")
	}
	cmp, ok, err := stats.ReadModelComparison(comparisonsDir, strings.TrimSpace(*id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model comparison not found: %s", strings.TrimSpace(*id))
	}

	entries, err := stats.BuildModelEvaluationStats(cmp.Runs)
	if err != nil {
		return err
	}
	report := stats.ComparisonReport{
		ComparisonID: cmp.ID,
		ReportName:   strings.TrimSpace(*name),
		Comparison:   cmp,
		Models:       entries,
	}
	if len(entries) > 0 {
		report.BestModel = entries[0].Model
	}
	reportDir, err := stats.WriteComparisonReport(comparisonsDir, report)
	if err != nil {
		return err
	}
	histories, err := loadComparisonHistories(cmp)
	if err != nil {
		return err
	}
	graphs := stats.BuildComparisonGraphs(histories)
	graphFiles, err := stats.WriteComparisonGraphs(comparisonsDir, cmp.ID, report.ReportName+"_Graphs", graphs)
	if err != nil {
		return err
	}

	if *jsonOut {
		payload := struct {
			ID         string                       `json:"id"`
			Dir        string                       `json:"dir"`
			ReportName string                       `json:"report_name"`
			BestModel  string                       `json:"best_model,omitempty"`
			Models     []stats.ModelEvaluationStats `json:"models"`
			GraphFiles []string                     `json:"graph_files"`
		}{
			ID:         cmp.ID,
			Dir:        reportDir,
			ReportName: report.ReportName,
			BestModel:  report.BestModel,
			Models:     entries,
			GraphFiles: append([]string(nil), graphFiles...),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	fmt.Printf("comparison_report id=%s name=%s dir=%s graphs=%d best_model=%s\n",
		cmp.ID,
		report.ReportName,
		reportDir,
		len(graphFiles),
		report.BestModel,
	)
	for i, entry := range entries {
		fmt.Printf("rank=%d model=%s fits=%d free_params=%d best_lnl=%.6f avg_lnl=%.6f std_lnl=%.6f aic=%.6f delta_aic=%.6f akaike_weight=%.6f dominated_by=%s\n",
			i+1,
			entry.Model,
			entry.FitCount,
			entry.FreeParams,
			entry.BestLogLikelihood,
			entry.AvgLogLikelihood,
			entry.StdLogLikelihood,
			entry.AIC,
			entry.DeltaAIC,
			entry.AkaikeWeight,
			strings.Join(entry.DominatedBy, ","),
		)
	}
	return nil
}

func runCompareGraph(args []string) error {
	fs := flag.NewFlagSet("compare graph", flag.ContinueOnError)
	id := fs.String("id", "", "comparison id")
	fitID := fs.String("fit-id", "", "fit id for standalone history->graph conversion")
	name := fs.String("name", "__Graph", "graph postfix")
	modelLabel := fs.String("model", "fit", "model label for --fit-id mode")
	outDir := fs.String("out-dir", comparisonsDir, "output directory for --fit-id mode")
	jsonOut := fs.Bool("json", false, "emit generated graph files as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	useID := strings.TrimSpace(*id) != ""
	useFitID := strings.TrimSpace(*fitID) != ""
	if useID == useFitID {
		return errors.New("compare graph requires exactly one of --id or --fit-id")
	}

	postfix := strings.TrimSpace(*name)
	if postfix == "" {
		postfix = "__Graph"
	}

	var graphFiles []string
	if useID {
		cmp, ok, err := stats.ReadModelComparison(comparisonsDir, strings.TrimSpace(*id))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("model comparison not found: %s", strings.TrimSpace(*id))
		}
		histories, err := loadComparisonHistories(cmp)
		if err != nil {
			return err
		}
		graphs := stats.BuildComparisonGraphs(histories)
		graphFiles, err = stats.WriteComparisonGraphs(comparisonsDir, cmp.ID, postfix, graphs)
		if err != nil {
			return err
		}
	} else {
		history, ok, err := stats.ReadFitHistory(artifactsDir, strings.TrimSpace(*fitID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("fit history not found: %s", strings.TrimSpace(*fitID))
		}
		graph := stats.BuildComparisonGraphFromHistory(history, strings.TrimSpace(*modelLabel))
		graphFiles, err = stats.WriteComparisonGraphsToDir(filepath.Clean(*outDir), postfix, []stats.ComparisonGraph{graph})
		if err != nil {
			return err
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Files []string `json:"files"`
		}{
			Files: append([]string(nil), graphFiles...),
		})
	}
	for _, file := range graphFiles {
		fmt.Println(file)
	}
	return nil
}

func runComparePlot(args []string) error {
	fs := flag.NewFlagSet("compare plot", flag.ContinueOnError)
	id := fs.String("id", "", "comparison id")
	mode := fs.String("mode", "avg", "plot mode: avg|best")
	modelFilter := fs.String("model", "", "optional model filter")
	startIndex := fs.Int("start-index", -1, "index for first point (default 1 for avg, 0 for best)")
	step := fs.Int("step", 1, "index step")
	jsonOut := fs.Bool("json", false, "emit plot points as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("compare plot requires --id")
	}
	cmp, ok, err := stats.ReadModelComparison(comparisonsDir, strings.TrimSpace(*id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model comparison not found: %s", strings.TrimSpace(*id))
	}

	filter := strings.TrimSpace(*modelFilter)
	series := make([][]float64, 0, len(cmp.Runs))
	for _, run := range cmp.Runs {
		if filter != "" && run.Model != filter {
			continue
		}
		history, ok, err := stats.ReadFitHistory(artifactsDir, run.FitID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("fit history not found for fit id: %s", run.FitID)
		}
		series = append(series, history)
	}
	if filter != "" && len(series) == 0 {
		return fmt.Errorf("no fits for model: %s", filter)
	}

	modeValue := strings.ToLower(strings.TrimSpace(*mode))
	var points []stats.ComparisonPlotPoint
	switch modeValue {
	case "avg":
		points = stats.BuildAverageLnLPlot(series, *startIndex, *step)
	case "best":
		points = stats.BuildBestLnLPlot(series, *startIndex, *step)
	default:
		return fmt.Errorf("unknown compare plot mode: %s", *mode)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ID     string                      `json:"id"`
			Mode   string                      `json:"mode"`
			Points []stats.ComparisonPlotPoint `json:"points"`
		}{
			ID:     cmp.ID,
			Mode:   modeValue,
			Points: points,
		})
	}
	for _, point := range points {
		fmt.Printf("%d %g\n", point.Index, point.Value)
	}
	return nil
}

func loadComparisonHistories(cmp stats.ModelComparison) (map[string][][]float64, error) {
	histories := make(map[string][][]float64, len(cmp.Models))
	for _, run := range cmp.Runs {
		history, ok, err := stats.ReadFitHistory(artifactsDir, run.FitID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("fit history not found for fit id: %s", run.FitID)
		}
		histories[run.Model] = append(histories[run.Model], history)
	}
	return histories, nil
}
