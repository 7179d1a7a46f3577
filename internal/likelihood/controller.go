package likelihood

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"text/tabwriter"

	"klados/internal/phylo"
	"klados/internal/recalc"
	"klados/internal/seqio"
	"klados/internal/submodel"
	"klados/internal/tuning"
)

// Strategy supplies the parameter definitions and default rules of one
// likelihood flavour. Data binding is a per-flavour capability: a strategy
// accepts alignments or raw sequences by additionally implementing
// alignmentBinder or sequenceBinder.
type Strategy interface {
	makeLikelihoodDefns(lf *Controller) ([]recalc.Defn, error)
	setDefaultParamRules(lf *Controller) error
}

type alignmentBinder interface {
	bindAlignments(lf *Controller, alns []*seqio.Alignment) error
}

type sequenceBinder interface {
	bindSequences(lf *Controller, seqs []seqio.Seq) error
}

// SetAlignment binds one alignment per locus and installs the pruning
// evaluator. Only alignment-flavoured controllers accept alignments.
func (lf *Controller) SetAlignment(alns ...*seqio.Alignment) error {
	binder, ok := lf.strategy.(alignmentBinder)
	if !ok {
		return fmt.Errorf("%w: this likelihood flavour does not take alignments", ErrConfiguration)
	}
	return binder.bindAlignments(lf, alns)
}

// SetSequences binds unaligned sequences and installs the pair HMM
// evaluator. Only sequence-flavoured controllers accept raw sequences.
func (lf *Controller) SetSequences(seqs ...seqio.Seq) error {
	binder, ok := lf.strategy.(sequenceBinder)
	if !ok {
		return fmt.Errorf("%w: this likelihood flavour does not take raw sequences", ErrConfiguration)
	}
	return binder.bindSequences(lf, seqs)
}

// Options configure a controller at construction. Zero values mean one bin
// named bin0, one locus named locus0, constant motif probabilities estimated
// from the data, and single-threaded evaluation.
type Options struct {
	Bins               []string
	NumBins            int
	Loci               []string
	NumLoci            int
	OptimiseMotifProbs bool
	Workers            int
}

// Controller accumulates parameter scoping rules for one model on one tree
// and hands the assembled constraint set to the optimiser. It owns its
// engine outright; nothing is shared between controllers.
type Controller struct {
	model    submodel.Model
	tree     *phylo.Tree
	strategy Strategy

	bins []string
	loci []string

	optimiseMprobs bool
	mprobsFromData bool
	workers        int
	dataBound      bool

	engine *recalc.DefnSet
}

// NewAlignmentController builds a controller that scores aligned sequences
// by Felsenstein pruning, one alignment per locus.
func NewAlignmentController(model submodel.Model, tree *phylo.Tree, opts Options) (*Controller, error) {
	return newController(model, tree, &AlignmentStrategy{}, opts)
}

// NewSequenceController builds a controller that scores two unaligned
// sequences under a pair HMM with the model's indel parameters.
func NewSequenceController(model submodel.IndelModel, tree *phylo.Tree, opts Options) (*Controller, error) {
	return newController(model, tree, &SequenceStrategy{model: model}, opts)
}

func newController(model submodel.Model, tree *phylo.Tree, strategy Strategy, opts Options) (*Controller, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: a controller needs a model", ErrConfiguration)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: a controller needs a tree", ErrConfiguration)
	}
	bins, err := categoryNames("bin", opts.NumBins, opts.Bins)
	if err != nil {
		return nil, err
	}
	loci, err := categoryNames("locus", opts.NumLoci, opts.Loci)
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	lf := &Controller{
		model:          model,
		tree:           tree,
		strategy:       strategy,
		bins:           bins,
		loci:           loci,
		optimiseMprobs: opts.OptimiseMotifProbs,
		mprobsFromData: true,
		workers:        workers,
	}
	defns, err := strategy.makeLikelihoodDefns(lf)
	if err != nil {
		return nil, err
	}
	engine, err := recalc.NewDefnSet(defns...)
	if err != nil {
		return nil, err
	}
	lf.engine = engine
	if err := strategy.setDefaultParamRules(lf); err != nil {
		return nil, err
	}
	if err := lf.setDefaultTreeParamRules(); err != nil {
		return nil, err
	}
	return lf, nil
}

// Model returns the substitution model the controller was built over.
func (lf *Controller) Model() submodel.Model { return lf.model }

// Tree returns the controller's tree. Callers must not mutate it.
func (lf *Controller) Tree() *phylo.Tree { return lf.tree }

// Bins returns the bin labels in declaration order.
func (lf *Controller) Bins() []string { return append([]string(nil), lf.bins...) }

// Loci returns the locus labels in declaration order.
func (lf *Controller) Loci() []string { return append([]string(nil), lf.loci...) }

func (lf *Controller) edgeDim() recalc.Dimension {
	return recalc.Dimension{Name: "edge", Labels: lf.tree.EdgeNames(false)}
}

func (lf *Controller) tipDim() recalc.Dimension {
	return recalc.Dimension{Name: "edge", Labels: lf.tree.TipNames()}
}

func (lf *Controller) binDim() recalc.Dimension {
	return recalc.Dimension{Name: "bin", Labels: append([]string(nil), lf.bins...)}
}

func (lf *Controller) locusDim() recalc.Dimension {
	return recalc.Dimension{Name: "locus", Labels: append([]string(nil), lf.loci...)}
}

// baseDefns declares the parameters every likelihood flavour shares: branch
// lengths per edge, the model's rate parameters per edge, bin, and locus,
// stationary frequencies, and bin weights when there are rate classes.
func (lf *Controller) baseDefns() ([]recalc.Defn, error) {
	defns := []recalc.Defn{{
		Name:        "length",
		Kind:        recalc.KindScalar,
		Dims:        []recalc.Dimension{lf.edgeDim()},
		Init:        1,
		Lower:       0,
		Upper:       10,
		Independent: true,
	}}
	for _, param := range lf.model.ParamList() {
		def, ok := lf.model.ParamDefault(param)
		if !ok {
			return nil, fmt.Errorf("%w: model %s declares %s without defaults", ErrConfiguration, lf.model.Name(), param)
		}
		defns = append(defns, recalc.Defn{
			Name:  param,
			Kind:  recalc.KindScalar,
			Dims:  []recalc.Dimension{lf.edgeDim(), lf.binDim(), lf.locusDim()},
			Init:  def.Init,
			Lower: def.Lower,
			Upper: def.Upper,
		})
	}
	defns = append(defns, recalc.Defn{
		Name:        "mprobs",
		Kind:        recalc.KindSimplex,
		Dims:        []recalc.Dimension{lf.binDim(), lf.locusDim()},
		SimplexLen:  len(lf.model.Alphabet()),
		Const:       !lf.optimiseMprobs,
		Independent: true,
	})
	if len(lf.bins) > 1 {
		defns = append(defns, recalc.Defn{
			Name:        "bprobs",
			Kind:        recalc.KindSimplex,
			Dims:        []recalc.Dimension{lf.locusDim()},
			SimplexLen:  len(lf.bins),
			Independent: true,
		})
	}
	return defns, nil
}

// setFixedMotifDefault turns root conditioning off. Not every flavour
// registers the parameter, so an unknown name is fine here.
func (lf *Controller) setFixedMotifDefault() error {
	v := -1.0
	independent := true
	err := lf.SetParamRule(Rule{Param: "fixed_motif", Value: &v, IsConstant: true, IsIndependent: &independent})
	if errors.Is(err, recalc.ErrUnknownParam) {
		return nil
	}
	return err
}

// setDefaultTreeParamRules seeds rules from values already annotated on the
// tree. Rate parameters group the edges that carry equal values, one free
// rule per distinct value in first-encounter order. Branch lengths are never
// grouped: every edge carrying a length gets its own free rule.
func (lf *Controller) setDefaultTreeParamRules() error {
	edges := lf.tree.Edges(false)
	for _, param := range lf.model.ParamList() {
		var order []float64
		classes := make(map[float64][]string)
		for _, node := range edges {
			v, ok := node.Params[param]
			if !ok {
				continue
			}
			if _, seen := classes[v]; !seen {
				order = append(order, v)
			}
			classes[v] = append(classes[v], node.Name)
		}
		for _, v := range order {
			value := v
			independent := false
			err := lf.SetParamRule(Rule{
				Param:         param,
				Edges:         classes[v],
				Init:          &value,
				IsIndependent: &independent,
			})
			if err != nil {
				return err
			}
		}
	}
	for _, node := range edges {
		if node.Length == nil {
			continue
		}
		length := *node.Length
		if err := lf.SetParamRule(Rule{Param: "length", Edge: node.Name, Init: &length}); err != nil {
			return err
		}
	}
	return nil
}

// Where picks out one cell of a parameter. Empty fields are left to the
// engine: a read succeeds without them whenever the value does not vary over
// the omitted dimension.
type Where struct {
	Edge  string
	Bin   string
	Locus string
}

func (w Where) coords() map[string]string {
	coords := make(map[string]string, 3)
	if w.Edge != "" {
		coords["edge"] = w.Edge
	}
	if w.Bin != "" {
		coords["bin"] = w.Bin
	}
	if w.Locus != "" {
		coords["locus"] = w.Locus
	}
	return coords
}

// GetParamValue reads one scalar parameter value.
func (lf *Controller) GetParamValue(param string, where Where) (float64, error) {
	return lf.engine.View().Float(param, where.coords())
}

// GetMotifProbs reads the stationary frequencies, in alphabet order.
func (lf *Controller) GetMotifProbs(where Where) ([]float64, error) {
	return lf.engine.View().Simplex("mprobs", where.coords())
}

// Statistics flattens every scalar parameter cell into param → coordinate
// key → value. Coordinate keys are dim=label pairs sorted by dimension name
// and joined with commas.
func (lf *Controller) Statistics() (map[string]map[string]float64, error) {
	cells, err := lf.ParamCells()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]float64, len(cells))
	for param, list := range cells {
		values := make(map[string]float64, len(list))
		for _, c := range list {
			values[coordKey(c.Coords)] = c.Value
		}
		out[param] = values
	}
	return out, nil
}

func coordKey(coords map[string]string) string {
	if len(coords) == 0 {
		return ""
	}
	dims := make([]string, 0, len(coords))
	for dim := range coords {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, dim+"="+coords[dim])
	}
	return strings.Join(parts, ",")
}

// ParamCells lists every scalar parameter cell with its full coordinates
// and constancy, keyed by parameter name. Simplex and opaque parameters
// are skipped.
func (lf *Controller) ParamCells() (map[string][]recalc.CellValue, error) {
	out := make(map[string][]recalc.CellValue)
	for _, param := range lf.engine.Params() {
		defn, err := lf.engine.Defn(param)
		if err != nil {
			return nil, err
		}
		if defn.Kind != recalc.KindScalar {
			continue
		}
		cells, err := lf.engine.CellValues(param)
		if err != nil {
			return nil, err
		}
		out[param] = cells
	}
	return out, nil
}

// GetAnnotatedTree clones the tree and writes the fitted branch lengths and
// per-edge parameter values onto it. Parameters that vary within an edge
// across bins or loci are left off that edge.
func (lf *Controller) GetAnnotatedTree() (*phylo.Tree, error) {
	annotated := lf.tree.Clone()
	view := lf.engine.View()
	for _, node := range annotated.Edges(false) {
		length, err := view.Float("length", map[string]string{"edge": node.Name})
		if err != nil {
			return nil, err
		}
		node.SetLength(length)
		for _, param := range lf.model.ParamList() {
			v, err := view.Float(param, map[string]string{"edge": node.Name})
			if err != nil {
				continue
			}
			node.SetParam(param, v)
		}
	}
	return annotated, nil
}

// UpdateIntermediateValues refreshes the engine's derived values after
// parameters were changed outside the rule surface, such as through a
// compiled calculator.
func (lf *Controller) UpdateIntermediateValues() error {
	return lf.engine.Update()
}

// GetLogLikelihood evaluates the likelihood at the current parameter values.
func (lf *Controller) GetLogLikelihood(ctx context.Context) (float64, error) {
	if !lf.dataBound {
		return 0, fmt.Errorf("%w: bind data before evaluating", ErrConfiguration)
	}
	return lf.engine.EvaluateCurrent(ctx)
}

const defaultOptimiseAttempts = 50

// OptimiseOptions tune a fit. Zero values select the default annealed hill
// climb with a fixed seed, so repeated fits reproduce.
type OptimiseOptions struct {
	Attempts int
	Seed     int64
	Tuner    tuning.Tuner
	Policy   tuning.AttemptPolicy
}

// OptimiseResult reports the fit: the best log-likelihood, the free slot
// count, how many evaluations ran, and the accepted improvements in order.
type OptimiseResult struct {
	LogLikelihood float64
	FreeParams    int
	Evaluations   int
	Report        tuning.TuneReport
	History       []float64
}

// Optimise compiles the accumulated rules and maximises the log-likelihood
// over the free parameters. The best vector found is applied, so the
// controller's values reflect the fit afterwards.
func (lf *Controller) Optimise(ctx context.Context, opts OptimiseOptions) (OptimiseResult, error) {
	if !lf.dataBound {
		return OptimiseResult{}, fmt.Errorf("%w: bind data before optimising", ErrConfiguration)
	}
	calc, err := lf.engine.Compile()
	if err != nil {
		return OptimiseResult{}, err
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = defaultOptimiseAttempts
	}
	if opts.Policy != nil {
		attempts = opts.Policy.Attempts(attempts, calc.Size())
	}
	tuner := opts.Tuner
	if tuner == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = 1
		}
		tuner = defaultTuner(seed)
	}

	evaluations := 0
	best := math.Inf(-1)
	var history []float64
	objective := func(ctx context.Context, x []float64) (float64, error) {
		lnL, err := calc.Evaluate(ctx, x)
		if err != nil {
			return 0, err
		}
		evaluations++
		if lnL > best {
			best = lnL
			history = append(history, lnL)
		}
		return lnL, nil
	}

	lower, upper := calc.Bounds()
	result, err := tuner.Maximize(ctx, calc.InitialVector(), lower, upper, attempts, objective)
	if err != nil {
		return OptimiseResult{}, err
	}
	if err := calc.Apply(result.Vector); err != nil {
		return OptimiseResult{}, err
	}
	return OptimiseResult{
		LogLikelihood: result.Objective,
		FreeParams:    calc.Size(),
		Evaluations:   evaluations,
		Report:        result.Report,
		History:       history,
	}, nil
}

func defaultTuner(seed int64) *tuning.HillClimb {
	return &tuning.HillClimb{
		Rand:              rand.New(rand.NewSource(seed)),
		Steps:             8,
		StepSize:          0.35,
		PerturbationRange: 1.0,
		AnnealingFactor:   0.9,
		MinImprovement:    1e-9,
		StallLimit:        25,
	}
}

// String renders the current parameter state as aligned tables.
func (lf *Controller) String() string {
	view := lf.engine.View()
	var b strings.Builder

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", lf.model.Name())
	fmt.Fprintf(w, "bins\t%s\n", strings.Join(lf.bins, " "))
	fmt.Fprintf(w, "loci\t%s\n", strings.Join(lf.loci, " "))
	w.Flush()

	params := lf.model.ParamList()
	b.WriteString("\n")
	w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "edge\tparent\tlength")
	for _, param := range params {
		fmt.Fprintf(w, "\t%s", param)
	}
	fmt.Fprintln(w)
	for _, node := range lf.tree.Edges(false) {
		fmt.Fprintf(w, "%s\t%s\t%s", node.Name, node.Parent().Name, formatCell(view, "length", node.Name))
		for _, param := range params {
			fmt.Fprintf(w, "\t%s", formatCell(view, param, node.Name))
		}
		fmt.Fprintln(w)
	}
	w.Flush()

	b.WriteString("\n")
	w = tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "motif\t%s\n", strings.Join(lf.model.Alphabet(), "\t"))
	if probs, err := view.Simplex("mprobs", nil); err == nil {
		fmt.Fprintf(w, "probs\t%s\n", joinFloats(probs))
	} else {
		for _, locus := range lf.loci {
			probs, err := view.Simplex("mprobs", map[string]string{"locus": locus})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\n", locus, joinFloats(probs))
		}
	}
	w.Flush()

	return b.String()
}

func formatCell(view *recalc.View, param, edge string) string {
	v, err := view.Float(param, map[string]string{"edge": edge})
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return strings.Join(parts, "\t")
}
