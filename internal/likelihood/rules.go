package likelihood

import (
	"fmt"

	"klados/internal/phylo"
	"klados/internal/recalc"
)

// Rule scopes one parameter change. Edge, Edges, and TipNames are mutually
// exclusive edge selectors; Bin/Bins and Locus/Loci restrict the remaining
// dimensions. Value pins the scoped cells, Init only moves their starting
// point, Total makes them optimise under a fixed sum, and IsConstant
// removes them from optimisation. Later rules override earlier ones
// wherever their scopes overlap.
type Rule struct {
	Param string

	Edge     string
	Edges    []string
	TipNames []string
	Outgroup string
	IsClade  *bool
	IsStem   *bool

	Bin   string
	Bins  []string
	Locus string
	Loci  []string

	Value         *float64
	Init          *float64
	Lower         *float64
	Upper         *float64
	Total         *float64
	IsConstant    bool
	IsIndependent *bool
}

// SetParamRule validates the rule eagerly and applies it to the engine.
// Engine errors, such as an unknown parameter or edge label, propagate
// unwrapped.
func (lf *Controller) SetParamRule(r Rule) error {
	assignment, err := lf.assembleRule(r)
	if err != nil {
		return err
	}
	return lf.engine.Assign(r.Param, assignment)
}

func (lf *Controller) assembleRule(r Rule) (recalc.Assignment, error) {
	if r.Param == "" {
		return recalc.Assignment{}, fmt.Errorf("%w: rule without a parameter name", ErrConfiguration)
	}

	edges, err := resolveEdges(lf.tree, r)
	if err != nil {
		return recalc.Assignment{}, err
	}
	if r.Bin != "" && len(r.Bins) > 0 {
		return recalc.Assignment{}, fmt.Errorf("%w: use only one of bin or bins", ErrConfiguration)
	}
	if r.Locus != "" && len(r.Loci) > 0 {
		return recalc.Assignment{}, fmt.Errorf("%w: use only one of locus or loci", ErrConfiguration)
	}

	scope := recalc.Scope{}
	if edges != nil {
		scope["edge"] = edges
	}
	if r.Bin != "" {
		scope["bin"] = []string{r.Bin}
	} else if len(r.Bins) > 0 {
		scope["bin"] = append([]string(nil), r.Bins...)
	}
	if r.Locus != "" {
		scope["locus"] = []string{r.Locus}
	} else if len(r.Loci) > 0 {
		scope["locus"] = append([]string(nil), r.Loci...)
	}

	if r.Total != nil {
		switch {
		case r.Value != nil:
			return recalc.Assignment{}, fmt.Errorf("%w: total cannot be combined with value", ErrConfiguration)
		case r.Init != nil:
			return recalc.Assignment{}, fmt.Errorf("%w: total cannot be combined with init", ErrConfiguration)
		case r.Lower != nil || r.Upper != nil:
			return recalc.Assignment{}, fmt.Errorf("%w: total cannot be combined with bounds", ErrConfiguration)
		case r.IsIndependent != nil:
			return recalc.Assignment{}, fmt.Errorf("%w: total cannot be combined with an independence setting", ErrConfiguration)
		case r.Bin != "" || len(r.Bins) > 0 || r.Locus != "" || len(r.Loci) > 0:
			return recalc.Assignment{}, fmt.Errorf("%w: a total applies within a single bin and locus", ErrConfiguration)
		}
	}
	if r.IsConstant && (r.Init != nil || r.Lower != nil || r.Upper != nil) {
		return recalc.Assignment{}, fmt.Errorf("%w: a constant rule cannot carry init or bounds", ErrConfiguration)
	}

	value := r.Value
	if r.Init != nil {
		if value != nil {
			return recalc.Assignment{}, fmt.Errorf("%w: use value or init, not both", ErrConfiguration)
		}
		value = r.Init
	}

	return recalc.Assignment{
		Scope:       scope,
		Value:       value,
		Const:       r.IsConstant,
		Independent: r.IsIndependent,
		Total:       r.Total,
		Lower:       r.Lower,
		Upper:       r.Upper,
	}, nil
}

// SetLocalClock makes every branch inside the clade the two tips define
// share one length parameter.
func (lf *Controller) SetLocalClock(tip1, tip2 string) error {
	clade := true
	independent := false
	return lf.SetParamRule(Rule{
		Param:         "length",
		TipNames:      []string{tip1, tip2},
		IsClade:       &clade,
		IsIndependent: &independent,
	})
}

// SetConstantLengths freezes branch lengths at the values carried by the
// given tree, or by the controller's own tree when nil. Edges named in skip
// keep their current rules, as do edges without a length.
func (lf *Controller) SetConstantLengths(tree *phylo.Tree, skip ...string) error {
	if tree == nil {
		tree = lf.tree
	}
	skipSet := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipSet[name] = true
	}
	for _, node := range tree.Edges(false) {
		if skipSet[node.Name] || node.Length == nil {
			continue
		}
		v := *node.Length
		err := lf.SetParamRule(Rule{Param: "length", Edge: node.Name, Value: &v, IsConstant: true})
		if err != nil {
			return err
		}
	}
	return nil
}
