// Package klados fits phylogenetic substitution models to sequence data by
// maximum likelihood and keeps the fitted results queryable.
package klados

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"klados/internal/likelihood"
	"klados/internal/model"
	"klados/internal/phylo"
	"klados/internal/seqio"
	"klados/internal/stats"
	"klados/internal/storage"
	"klados/internal/submodel"
	"klados/internal/tuning"
)

const (
	defaultArtifactsDir   = "fits"
	defaultExportsDir     = "exports"
	defaultComparisonsDir = "comparisons"
	defaultDBPath         = "klados.db"
)

const (
	comparisonInProgress = "in_progress"
	comparisonCompleted  = "completed"
)

const (
	FlavourAlignment = "alignment"
	FlavourSequence  = "sequence"
)

type Options struct {
	StoreKind      string
	DBPath         string
	ArtifactsDir   string
	ExportsDir     string
	ComparisonsDir string
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir   string
	exportsDir     string
	comparisonsDir string
}

// FitRequest describes one maximum-likelihood fit. Sequences carries one
// set of rows per locus; the sequence flavour takes exactly one set of two.
// Zero values select the defaults, so the minimal request is a model, a
// tree, and data.
type FitRequest struct {
	Model      string
	TreeNewick string
	Flavour    string
	Sequences  [][]seqio.Seq
	LocusNames []string
	Bins       []string

	MotifProbs         []float64
	OptimiseMotifProbs bool
	Rules              []likelihood.Rule

	Workers  int
	Attempts int
	Seed     int64

	TuneSteps             int
	TuneStepSize          float64
	TunePerturbationRange float64
	TuneAnnealingFactor   float64
	TuneMinImprovement    float64
	TuneStallLimit        int
}

type FitSummary struct {
	FitID           string
	ArtifactsDir    string
	Model           string
	Flavour         string
	LogLikelihood   float64
	FreeParams      int
	Evaluations     int
	LnLHistory      []float64
	AnnotatedNewick string
}

type FitsRequest struct {
	Limit int
}

type FitItem struct {
	FitID              string
	CreatedAtUTC       string
	Model              string
	Flavour            string
	Seed               int64
	TipCount           int
	FreeParams         int
	Evaluations        int
	FinalLogLikelihood float64
}

type ShowRequest struct {
	FitID          string
	Latest         bool
	HistoryLimit   int
	WithStatistics bool
}

type ShowSummary struct {
	Fit        model.FitRecord
	LnLHistory []float64
	Statistics map[string]map[string]float64
}

type ExportRequest struct {
	FitID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	FitID     string
	Directory string
}

type ModelItem struct {
	Name              string
	Description       string
	Params            []string
	BestLogLikelihood *float64
}

// CompareRequest fits every candidate model to the same tree and data,
// Replicates times each, and ranks the candidates by AIC. Fit supplies the
// shared per-fit settings; its Model is overridden per candidate and its
// Seed seeds the first replicate, with later replicates counting up from it.
type CompareRequest struct {
	ComparisonID string
	Notes        string
	ReportName   string
	Models       []string
	Replicates   int
	Fit          FitRequest
}

type ModelRanking struct {
	Model             string
	FreeParams        int
	BestLogLikelihood float64
	AIC               float64
	DeltaAIC          float64
	AkaikeWeight      float64
	DominatedBy       []string
}

type CompareSummary struct {
	ComparisonID string
	ReportDir    string
	BestModel    string
	Rankings     []ModelRanking
	FitIDs       []string
}

type ComparisonItem struct {
	ComparisonID   string
	ProgressFlag   string
	FitIndex       int
	TotalFits      int
	StartedAtUTC   string
	CompletedAtUTC string
	Models         []string
	Replicates     int
	Notes          string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	comparisonsDir := opts.ComparisonsDir
	if comparisonsDir == "" {
		comparisonsDir = defaultComparisonsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:          store,
		artifactsDir:   artifactsDir,
		exportsDir:     exportsDir,
		comparisonsDir: comparisonsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Fit(ctx context.Context, req FitRequest) (FitSummary, error) {
	if req.Model == "" {
		req.Model = "hky85"
	}
	if req.Flavour == "" {
		req.Flavour = FlavourAlignment
	}
	if req.TreeNewick == "" {
		return FitSummary{}, errors.New("fit requires a tree")
	}
	if len(req.Sequences) == 0 {
		return FitSummary{}, errors.New("fit requires sequence data")
	}
	if req.Flavour == FlavourSequence && len(req.Sequences) != 1 {
		return FitSummary{}, errors.New("the sequence flavour takes a single set of sequences")
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if req.Attempts <= 0 {
		req.Attempts = 50
	}
	if req.Seed == 0 {
		req.Seed = 1
	}
	if req.TuneSteps <= 0 {
		req.TuneSteps = 8
	}
	if req.TuneStepSize <= 0 {
		req.TuneStepSize = 0.35
	}
	if req.TunePerturbationRange <= 0 {
		req.TunePerturbationRange = 1.0
	}
	if req.TuneAnnealingFactor <= 0 {
		req.TuneAnnealingFactor = 0.9
	}
	if req.TuneMinImprovement <= 0 {
		req.TuneMinImprovement = 1e-9
	}
	if req.TuneStallLimit <= 0 {
		req.TuneStallLimit = 25
	}

	if err := c.ensureStore(ctx); err != nil {
		return FitSummary{}, err
	}

	mdl, err := submodel.FromName(req.Model)
	if err != nil {
		return FitSummary{}, err
	}
	tree, err := phylo.Parse(req.TreeNewick)
	if err != nil {
		return FitSummary{}, err
	}

	lfOpts := likelihood.Options{
		Bins:               req.Bins,
		Loci:               req.LocusNames,
		NumLoci:            len(req.Sequences),
		OptimiseMotifProbs: req.OptimiseMotifProbs,
		Workers:            req.Workers,
	}

	var lf *likelihood.Controller
	switch req.Flavour {
	case FlavourAlignment:
		lf, err = likelihood.NewAlignmentController(mdl, tree, lfOpts)
	case FlavourSequence:
		indel, ok := mdl.(submodel.IndelModel)
		if !ok {
			return FitSummary{}, fmt.Errorf("model %s has no indel parameters", mdl.Name())
		}
		lf, err = likelihood.NewSequenceController(indel, tree, lfOpts)
	default:
		return FitSummary{}, fmt.Errorf("unsupported fit flavour: %s", req.Flavour)
	}
	if err != nil {
		return FitSummary{}, err
	}

	if len(req.MotifProbs) > 0 {
		if err := lf.SetMotifProbs(req.MotifProbs, likelihood.MotifProbOptions{}); err != nil {
			return FitSummary{}, err
		}
	}
	for _, rule := range req.Rules {
		if err := lf.SetParamRule(rule); err != nil {
			return FitSummary{}, err
		}
	}

	switch req.Flavour {
	case FlavourAlignment:
		alns := make([]*seqio.Alignment, 0, len(req.Sequences))
		for _, seqs := range req.Sequences {
			aln, err := seqio.NewAlignment(seqs)
			if err != nil {
				return FitSummary{}, err
			}
			alns = append(alns, aln)
		}
		if err := lf.SetAlignment(alns...); err != nil {
			return FitSummary{}, err
		}
	case FlavourSequence:
		if err := lf.SetSequences(req.Sequences[0]...); err != nil {
			return FitSummary{}, err
		}
	}

	tuner := &tuning.HillClimb{
		Rand:              rand.New(rand.NewSource(req.Seed)),
		Steps:             req.TuneSteps,
		StepSize:          req.TuneStepSize,
		PerturbationRange: req.TunePerturbationRange,
		AnnealingFactor:   req.TuneAnnealingFactor,
		MinImprovement:    req.TuneMinImprovement,
		StallLimit:        req.TuneStallLimit,
	}
	result, err := lf.Optimise(ctx, likelihood.OptimiseOptions{
		Attempts: req.Attempts,
		Tuner:    tuner,
	})
	if err != nil {
		return FitSummary{}, err
	}

	annotated, err := lf.GetAnnotatedTree()
	if err != nil {
		return FitSummary{}, err
	}
	newick := annotated.String()

	estimates, err := collectEstimates(lf)
	if err != nil {
		return FitSummary{}, err
	}
	statistics, err := lf.Statistics()
	if err != nil {
		return FitSummary{}, err
	}

	now := time.Now().UTC()
	fitID := uuid.NewString()

	fit := model.FitRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              fitID,
		Model:           mdl.Name(),
		TreeNewick:      newick,
		LogLikelihood:   result.LogLikelihood,
		Evaluations:     result.Evaluations,
		Estimates:       estimates,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
	}
	if err := c.store.SaveFit(ctx, fit); err != nil {
		return FitSummary{}, err
	}
	if err := c.store.SaveTree(ctx, model.TreeRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              fitID,
		Newick:          newick,
		TipCount:        len(tree.TipNames()),
	}); err != nil {
		return FitSummary{}, err
	}
	if err := c.store.SaveLnLHistory(ctx, fitID, result.History); err != nil {
		return FitSummary{}, err
	}
	if err := c.updateModelSummary(ctx, mdl.Name(), result.LogLikelihood); err != nil {
		return FitSummary{}, err
	}

	fitDir, err := stats.WriteFitArtifacts(c.artifactsDir, stats.FitArtifacts{
		Config: stats.FitConfig{
			FitID:                 fitID,
			Model:                 mdl.Name(),
			Flavour:               req.Flavour,
			TreeNewick:            req.TreeNewick,
			Bins:                  lf.Bins(),
			Loci:                  lf.Loci(),
			OptimiseMotifProbs:    req.OptimiseMotifProbs,
			Workers:               req.Workers,
			Attempts:              req.Attempts,
			Seed:                  req.Seed,
			TuneSteps:             req.TuneSteps,
			TuneStepSize:          req.TuneStepSize,
			TunePerturbationRange: req.TunePerturbationRange,
			TuneAnnealingFactor:   req.TuneAnnealingFactor,
			TuneMinImprovement:    req.TuneMinImprovement,
			TuneStallLimit:        req.TuneStallLimit,
		},
		LnLHistory:         result.History,
		FinalLogLikelihood: result.LogLikelihood,
		Evaluations:        result.Evaluations,
		FreeParams:         result.FreeParams,
		Estimates:          estimates,
		AnnotatedNewick:    newick,
	})
	if err != nil {
		return FitSummary{}, err
	}
	if err := stats.WriteFitStatistics(fitDir, statistics); err != nil {
		return FitSummary{}, err
	}
	if err := stats.AppendFitIndex(c.artifactsDir, stats.FitIndexEntry{
		FitID:              fitID,
		Model:              mdl.Name(),
		Flavour:            req.Flavour,
		Seed:               req.Seed,
		TipCount:           len(tree.TipNames()),
		FreeParams:         result.FreeParams,
		Evaluations:        result.Evaluations,
		FinalLogLikelihood: result.LogLikelihood,
		CreatedAtUTC:       now.Format(time.RFC3339Nano),
	}); err != nil {
		return FitSummary{}, err
	}

	return FitSummary{
		FitID:           fitID,
		ArtifactsDir:    filepath.Clean(fitDir),
		Model:           mdl.Name(),
		Flavour:         req.Flavour,
		LogLikelihood:   result.LogLikelihood,
		FreeParams:      result.FreeParams,
		Evaluations:     result.Evaluations,
		LnLHistory:      append([]float64(nil), result.History...),
		AnnotatedNewick: newick,
	}, nil
}

func (c *Client) Fits(_ context.Context, req FitsRequest) ([]FitItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListFitIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]FitItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, FitItem{
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
	return out, nil
}

func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowSummary, error) {
	if req.FitID != "" && req.Latest {
		return ShowSummary{}, errors.New("use either fit id or latest")
	}
	if req.HistoryLimit < 0 {
		return ShowSummary{}, errors.New("history limit must be >= 0")
	}

	fitID := req.FitID
	if req.Latest {
		entries, err := stats.ListFitIndex(c.artifactsDir)
		if err != nil {
			return ShowSummary{}, err
		}
		if len(entries) == 0 {
			return ShowSummary{}, errors.New("no fits available")
		}
		fitID = entries[0].FitID
	}
	if fitID == "" {
		return ShowSummary{}, errors.New("show requires fit id or latest")
	}

	if err := c.ensureStore(ctx); err != nil {
		return ShowSummary{}, err
	}
	fit, ok, err := c.store.GetFit(ctx, fitID)
	if err != nil {
		return ShowSummary{}, err
	}
	if !ok {
		return ShowSummary{}, fmt.Errorf("fit not found: %s", fitID)
	}

	history, ok, err := c.store.GetLnLHistory(ctx, fitID)
	if err != nil {
		return ShowSummary{}, err
	}
	if ok && req.HistoryLimit > 0 && len(history) > req.HistoryLimit {
		history = history[:req.HistoryLimit]
	}

	summary := ShowSummary{Fit: fit, LnLHistory: history}
	if req.WithStatistics {
		statistics, ok, err := stats.ReadFitStatistics(c.artifactsDir, fitID)
		if err != nil {
			return ShowSummary{}, err
		}
		if ok {
			summary.Statistics = statistics
		}
	}
	return summary, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.FitID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either fit id or latest")
	}
	if req.FitID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires fit id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	fitID := req.FitID
	if req.Latest {
		entries, err := stats.ListFitIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no fits available to export")
		}
		fitID = entries[0].FitID
	}

	exportedDir, err := stats.ExportFitArtifacts(c.artifactsDir, fitID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{FitID: fitID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Models(ctx context.Context) ([]ModelItem, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	names := submodel.Names()
	out := make([]ModelItem, 0, len(names))
	for _, name := range names {
		mdl, err := submodel.FromName(name)
		if err != nil {
			return nil, err
		}
		item := ModelItem{
			Name:        name,
			Description: modelDescription(name),
			Params:      mdl.ParamList(),
		}
		summary, ok, err := c.store.GetModelSummary(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			best := summary.BestLogLikelihood
			item.BestLogLikelihood = &best
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) Compare(ctx context.Context, req CompareRequest) (CompareSummary, error) {
	models := req.Models
	if len(models) == 0 {
		models = submodel.Names()
	}
	seen := make(map[string]bool, len(models))
	for _, name := range models {
		if _, err := submodel.FromName(name); err != nil {
			return CompareSummary{}, err
		}
		if seen[name] {
			return CompareSummary{}, fmt.Errorf("duplicate candidate model: %s", name)
		}
		seen[name] = true
	}
	replicates := req.Replicates
	if replicates <= 0 {
		replicates = 3
	}
	baseSeed := req.Fit.Seed
	if baseSeed == 0 {
		baseSeed = 1
	}
	reportName := req.ReportName
	if reportName == "" {
		reportName = "report"
	}
	comparisonID := req.ComparisonID
	if comparisonID == "" {
		comparisonID = uuid.NewString()
	}
	if existing, ok, err := stats.ReadModelComparison(c.comparisonsDir, comparisonID); err != nil {
		return CompareSummary{}, err
	} else if ok {
		return CompareSummary{}, fmt.Errorf("comparison already exists: %s (progress=%s)", existing.ID, existing.ProgressFlag)
	}

	cmp := stats.ModelComparison{
		ID:           comparisonID,
		Notes:        req.Notes,
		ProgressFlag: comparisonInProgress,
		FitIndex:     1,
		TotalFits:    len(models) * replicates,
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Models:       append([]string(nil), models...),
		Replicates:   replicates,
	}
	if err := stats.WriteModelComparison(c.comparisonsDir, cmp); err != nil {
		return CompareSummary{}, err
	}

	histories := make(map[string][][]float64, len(models))
	for _, name := range models {
		for r := 0; r < replicates; r++ {
			fitReq := req.Fit
			fitReq.Model = name
			fitReq.Seed = baseSeed + int64(r)

			summary, err := c.Fit(ctx, fitReq)
			if err != nil {
				cmp.Interruptions = append(cmp.Interruptions, time.Now().UTC().Format(time.RFC3339Nano))
				_ = stats.WriteModelComparison(c.comparisonsDir, cmp)
				return CompareSummary{}, fmt.Errorf("fit %d/%d (%s seed=%d): %w", cmp.FitIndex, cmp.TotalFits, name, fitReq.Seed, err)
			}

			cmp.Runs = append(cmp.Runs, stats.ModelComparisonRun{
				FitID:         summary.FitID,
				Model:         summary.Model,
				Seed:          fitReq.Seed,
				FreeParams:    summary.FreeParams,
				Evaluations:   summary.Evaluations,
				Improvements:  len(summary.LnLHistory),
				LogLikelihood: summary.LogLikelihood,
			})
			cmp.FitIndex++
			if err := stats.WriteModelComparison(c.comparisonsDir, cmp); err != nil {
				return CompareSummary{}, err
			}
			histories[summary.Model] = append(histories[summary.Model], summary.LnLHistory)
		}
	}

	cmp.ProgressFlag = comparisonCompleted
	cmp.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)
	if err := stats.WriteModelComparison(c.comparisonsDir, cmp); err != nil {
		return CompareSummary{}, err
	}

	entries, err := stats.BuildModelEvaluationStats(cmp.Runs)
	if err != nil {
		return CompareSummary{}, err
	}
	report := stats.ComparisonReport{
		ComparisonID: comparisonID,
		ReportName:   reportName,
		Comparison:   cmp,
		Models:       entries,
	}
	if len(entries) > 0 {
		report.BestModel = entries[0].Model
	}
	reportDir, err := stats.WriteComparisonReport(c.comparisonsDir, report)
	if err != nil {
		return CompareSummary{}, err
	}
	graphs := stats.BuildComparisonGraphs(histories)
	if _, err := stats.WriteComparisonGraphs(c.comparisonsDir, comparisonID, reportName+"_Graphs", graphs); err != nil {
		return CompareSummary{}, err
	}
	if err := stats.WriteComparisonRunLines(filepath.Join(c.comparisonsDir, comparisonID, "runs.jsonl"), cmp.Runs); err != nil {
		return CompareSummary{}, err
	}

	out := CompareSummary{
		ComparisonID: comparisonID,
		ReportDir:    filepath.Clean(reportDir),
		BestModel:    report.BestModel,
		Rankings:     make([]ModelRanking, 0, len(entries)),
		FitIDs:       make([]string, 0, len(cmp.Runs)),
	}
	for _, entry := range entries {
		out.Rankings = append(out.Rankings, ModelRanking{
			Model:             entry.Model,
			FreeParams:        entry.FreeParams,
			BestLogLikelihood: entry.BestLogLikelihood,
			AIC:               entry.AIC,
			DeltaAIC:          entry.DeltaAIC,
			AkaikeWeight:      entry.AkaikeWeight,
			DominatedBy:       append([]string(nil), entry.DominatedBy...),
		})
	}
	for _, run := range cmp.Runs {
		out.FitIDs = append(out.FitIDs, run.FitID)
	}
	return out, nil
}

func (c *Client) Comparisons(_ context.Context) ([]ComparisonItem, error) {
	cmps, err := stats.ListModelComparisons(c.comparisonsDir)
	if err != nil {
		return nil, err
	}
	out := make([]ComparisonItem, 0, len(cmps))
	for _, cmp := range cmps {
		out = append(out, ComparisonItem{
			ComparisonID:   cmp.ID,
			ProgressFlag:   cmp.ProgressFlag,
			FitIndex:       cmp.FitIndex,
			TotalFits:      cmp.TotalFits,
			StartedAtUTC:   cmp.StartedAtUTC,
			CompletedAtUTC: cmp.CompletedAtUTC,
			Models:         append([]string(nil), cmp.Models...),
			Replicates:     cmp.Replicates,
			Notes:          cmp.Notes,
		})
	}
	return out, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) updateModelSummary(ctx context.Context, name string, lnL float64) error {
	existing, ok, err := c.store.GetModelSummary(ctx, name)
	if err != nil {
		return err
	}
	if ok && existing.BestLogLikelihood >= lnL {
		return nil
	}
	return c.store.SaveModelSummary(ctx, model.ModelSummary{
		VersionedRecord:   model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		Name:              name,
		Description:       modelDescription(name),
		BestLogLikelihood: lnL,
	})
}

func collectEstimates(lf *likelihood.Controller) ([]model.ParamEstimate, error) {
	cells, err := lf.ParamCells()
	if err != nil {
		return nil, err
	}
	params := make([]string, 0, len(cells))
	for param := range cells {
		params = append(params, param)
	}
	sort.Strings(params)

	out := make([]model.ParamEstimate, 0, len(cells))
	for _, param := range params {
		for _, cell := range cells[param] {
			out = append(out, model.ParamEstimate{
				Name:    param,
				Edge:    cell.Coords["edge"],
				Bin:     cell.Coords["bin"],
				Locus:   cell.Coords["locus"],
				Value:   cell.Value,
				IsConst: cell.Const,
			})
		}
	}
	return out, nil
}

func modelDescription(name string) string {
	switch name {
	case "jc69":
		return "equal rates, equal base frequencies"
	case "k80":
		return "transition/transversion ratio, equal base frequencies"
	case "f81":
		return "equal rates, empirical base frequencies"
	case "hky85":
		return "transition/transversion ratio, empirical base frequencies"
	default:
		return ""
	}
}
