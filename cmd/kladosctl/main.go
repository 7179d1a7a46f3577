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
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"klados/internal/likelihood"
	"klados/internal/model"
	"klados/internal/seqio"
	"klados/internal/storage"
	kladosapi "klados/pkg/klados"
)

const (
	artifactsDir = "fits"
	exportsDir   = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "fit":
		return runFit(ctx, args[1:])
	case "fits":
		return runFits(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "models":
		return runModels(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "klados.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := kladosapi.New(kladosapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional fit config JSON path")
	modelName := fs.String("model", "hky85", "substitution model: jc69|k80|f81|hky85")
	flavourName := fs.String("flavour", kladosapi.FlavourAlignment, "fit flavour: alignment|sequence")
	treeText := fs.String("tree", "", "newick tree text")
	treeFile := fs.String("tree-file", "", "newick tree file path")
	seqsRaw := fs.String("seqs", "", "comma-separated FASTA paths, one per locus")
	lociRaw := fs.String("loci", "", "comma-separated locus names (defaults to locus0..)")
	binsRaw := fs.String("bins", "", "comma-separated rate-class bin names")
	motifProbsRaw := fs.String("motif-probs", "", "comma-separated stationary frequencies in alphabet order")
	optimiseMotifProbs := fs.Bool("optimise-mprobs", false, "optimise stationary frequencies")
	rulesRaw := fs.String("rules", "", "semicolon-separated rule specs, e.g. 'param=kappa,value=4,is-constant=true'")
	workers := fs.Int("workers", 1, "likelihood worker count")
	attempts := fs.Int("attempts", 50, "optimisation attempts")
	seed := fs.Int64("seed", 1, "rng seed")
	tuneSteps := fs.Int("tune-steps", 8, "perturbation steps per attempt")
	tuneStepSize := fs.Float64("tune-step-size", 0.35, "perturbation magnitude")
	tunePerturbationRange := fs.Float64("tune-perturbation-range", 1.0, "perturbation spread multiplier")
	tuneAnnealingFactor := fs.Float64("tune-annealing-factor", 0.9, "per-step annealing factor")
	tuneMinImprovement := fs.Float64("tune-min-improvement", 1e-9, "minimum gain required to accept a candidate")
	tuneStallLimit := fs.Int("tune-stall-limit", 25, "attempts without improvement before stopping early")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "klados.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "log fit progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	seqPaths := parseCommaSeparated(*seqsRaw)
	loci := parseCommaSeparated(*lociRaw)
	bins := parseCommaSeparated(*binsRaw)
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

	params, err := loadOrDefaultFitParams(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		params = fitParams{
			Model:                 *modelName,
			Flavour:               *flavourName,
			Tree:                  *treeText,
			TreeFile:              *treeFile,
			SeqPaths:              seqPaths,
			Loci:                  loci,
			Bins:                  bins,
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
		}
	} else {
		err := overrideFromFlags(&params, setFlags, map[string]any{
			"model":                   *modelName,
			"flavour":                 *flavourName,
			"tree":                    *treeText,
			"tree-file":               *treeFile,
			"seqs":                    seqPaths,
			"loci":                    loci,
			"bins":                    bins,
			"motif-probs":             motifProbs,
			"optimise-mprobs":         *optimiseMotifProbs,
			"rules":                   rules,
			"workers":                 *workers,
			"attempts":                *attempts,
			"seed":                    *seed,
			"tune-steps":              *tuneSteps,
			"tune-step-size":          *tuneStepSize,
			"tune-perturbation-range": *tunePerturbationRange,
			"tune-annealing-factor":   *tuneAnnealingFactor,
			"tune-min-improvement":    *tuneMinImprovement,
			"tune-stall-limit":        *tuneStallLimit,
		})
		if err != nil {
			return err
		}
	}

	treeNewick := params.Tree
	if params.TreeFile != "" {
		if treeNewick != "" {
			return errors.New("use either tree or tree-file, not both")
		}
		data, err := os.ReadFile(params.TreeFile)
		if err != nil {
			return err
		}
		treeNewick = strings.TrimSpace(string(data))
	}
	if treeNewick == "" {
		return errors.New("fit requires tree or tree-file")
	}
	if len(params.SeqPaths) == 0 {
		return errors.New("fit requires seqs")
	}

	sequences := make([][]seqio.Seq, 0, len(params.SeqPaths))
	for _, path := range params.SeqPaths {
		seqs, err := seqio.ParseFastaFile(path)
		if err != nil {
			return err
		}
		sequences = append(sequences, seqs)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	client, err := kladosapi.New(kladosapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	logger.Info("fit starting",
		"model", params.Model,
		"flavour", params.Flavour,
		"loci", len(sequences),
		"attempts", params.Attempts,
		"seed", params.Seed,
	)
	start := time.Now()
	summary, err := client.Fit(ctx, kladosapi.FitRequest{
		Model:                 params.Model,
		TreeNewick:            treeNewick,
		Flavour:               params.Flavour,
		Sequences:             sequences,
		LocusNames:            params.Loci,
		Bins:                  params.Bins,
		MotifProbs:            params.MotifProbs,
		OptimiseMotifProbs:    params.OptimiseMotifProbs,
		Rules:                 params.Rules,
		Workers:               params.Workers,
		Attempts:              params.Attempts,
		Seed:                  params.Seed,
		TuneSteps:             params.TuneSteps,
		TuneStepSize:          params.TuneStepSize,
		TunePerturbationRange: params.TunePerturbationRange,
		TuneAnnealingFactor:   params.TuneAnnealingFactor,
		TuneMinImprovement:    params.TuneMinImprovement,
		TuneStallLimit:        params.TuneStallLimit,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.Info("fit finished",
		"fit_id", summary.FitID,
		"lnl", summary.LogLikelihood,
		"evaluations", summary.Evaluations,
		"elapsed", elapsed,
	)

	fmt.Printf("fit completed fit_id=%s model=%s flavour=%s lnl=%.6f free_params=%d evaluations=%s elapsed=%s\n",
		summary.FitID,
		summary.Model,
		summary.Flavour,
		summary.LogLikelihood,
		summary.FreeParams,
		humanize.Comma(int64(summary.Evaluations)),
		elapsed.Round(time.Millisecond),
	)
	for i, lnl := range summary.LnLHistory {
		fmt.Printf("improvement=%d lnl=%.6f\n", i+1, lnl)
	}
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runFits(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fits", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max fits to list")
	jsonOut := fs.Bool("json", false, "emit fit list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := kladosapi.New(kladosapi.Options{
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fits, err := client.Fits(ctx, kladosapi.FitsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(fits) == 0 {
		fmt.Println("no fits found")
		return nil
	}

	if *jsonOut {
		type fitsItem struct {
			FitID              string  `json:"fit_id"`
			CreatedAtUTC       string  `json:"created_at_utc"`
			Model              string  `json:"model"`
			Flavour            string  `json:"flavour"`
			Seed               int64   `json:"seed"`
			TipCount           int     `json:"tip_count"`
			FreeParams         int     `json:"free_params"`
			Evaluations        int     `json:"evaluations"`
			FinalLogLikelihood float64 `json:"final_log_likelihood"`
		}
		items := make([]fitsItem, 0, len(fits))
		for _, e := range fits {
			items = append(items, fitsItem{
				FitID:              e.FitID,
				CreatedAtUTC:       e.CreatedAtUTC,
				Model:              e.Model,
				Flavour:            e.Flavour,
				Seed:               e.Seed,
				TipCount:           e.TipCount,
				FreeParams:         e.FreeParams,
				Evaluations:        e.Evaluations,
				FinalLogLikelihood: e.FinalLogLikelihood,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, e := range fits {
		age := "n/a"
		if created, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Printf("fit_id=%s created_at=%s age=%s model=%s flavour=%s seed=%d tips=%d free_params=%d evaluations=%s lnl=%.6f\n",
			e.FitID,
			e.CreatedAtUTC,
			age,
			e.Model,
			e.Flavour,
			e.Seed,
			e.TipCount,
			e.FreeParams,
			humanize.Comma(int64(e.Evaluations)),
			e.FinalLogLikelihood,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fitID := fs.String("fit-id", "", "fit id")
	latest := fs.Bool("latest", false, "show the most recent fit from the fit index")
	limit := fs.Int("limit", 50, "max history entries to print (<=0 for all)")
	withStatistics := fs.Bool("statistics", false, "include per-parameter statistics")
	jsonOut := fs.Bool("json", false, "emit fit details as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "klados.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fitID != "" && *latest {
		return errors.New("use either --fit-id or --latest, not both")
	}
	if *fitID == "" && !*latest {
		return errors.New("show requires --fit-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := kladosapi.New(kladosapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	shown, err := client.Show(ctx, kladosapi.ShowRequest{
		FitID:          *fitID,
		Latest:         *latest,
		HistoryLimit:   *limit,
		WithStatistics: *withStatistics,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		type showItem struct {
			Fit        model.FitRecord               `json:"fit"`
			LnLHistory []float64                     `json:"lnl_history,omitempty"`
			Statistics map[string]map[string]float64 `json:"statistics,omitempty"`
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(showItem{
			Fit:        shown.Fit,
			LnLHistory: shown.LnLHistory,
			Statistics: shown.Statistics,
		})
	}

	fit := shown.Fit
	fmt.Printf("fit_id=%s created_at=%s model=%s lnl=%.6f evaluations=%s\n",
		fit.ID,
		fit.CreatedAtUTC,
		fit.Model,
		fit.LogLikelihood,
		humanize.Comma(int64(fit.Evaluations)),
	)
	fmt.Printf("tree=%s\n", fit.TreeNewick)
	for _, estimate := range fit.Estimates {
		fmt.Printf("estimate param=%s edge=%s bin=%s locus=%s value=%.6f const=%t\n",
			estimate.Name,
			estimate.Edge,
			estimate.Bin,
			estimate.Locus,
			estimate.Value,
			estimate.IsConst,
		)
	}
	for i, lnl := range shown.LnLHistory {
		fmt.Printf("history=%d lnl=%.6f\n", i+1, lnl)
	}
	if shown.Statistics != nil {
		params := make([]string, 0, len(shown.Statistics))
		for param := range shown.Statistics {
			params = append(params, param)
		}
		sort.Strings(params)
		for _, param := range params {
			keys := make([]string, 0, len(shown.Statistics[param]))
			for key := range shown.Statistics[param] {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("statistic param=%s where=%q value=%.6f\n", param, key, shown.Statistics[param][key])
			}
		}
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fitID := fs.String("fit-id", "", "fit id")
	latest := fs.Bool("latest", false, "export the most recent fit from the fit index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fitID != "" && *latest {
		return errors.New("use either --fit-id or --latest, not both")
	}
	if *fitID == "" && !*latest {
		return errors.New("export requires --fit-id or --latest")
	}

	client, err := kladosapi.New(kladosapi.Options{
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, kladosapi.ExportRequest{
		FitID:  *fitID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported fit_id=%s to=%s\n", exported.FitID, exported.Directory)
	return nil
}

func runModels(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit model list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "klados.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := kladosapi.New(kladosapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	models, err := client.Models(ctx)
	if err != nil {
		return err
	}

	if *jsonOut {
		type modelItem struct {
			Name              string   `json:"name"`
			Description       string   `json:"description"`
			Params            []string `json:"params"`
			BestLogLikelihood *float64 `json:"best_log_likelihood,omitempty"`
		}
		items := make([]modelItem, 0, len(models))
		for _, m := range models {
			items = append(items, modelItem{
				Name:              m.Name,
				Description:       m.Description,
				Params:            m.Params,
				BestLogLikelihood: m.BestLogLikelihood,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, m := range models {
		best := "n/a"
		if m.BestLogLikelihood != nil {
			best = fmt.Sprintf("%.6f", *m.BestLogLikelihood)
		}
		fmt.Printf("model=%s params=%s best_lnl=%s description=%s\n",
			m.Name,
			strings.Join(m.Params, ","),
			best,
			m.Description,
		)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: kladosctl <init|fit|fits|show|export|models|compare> [flags]", msg)
}
