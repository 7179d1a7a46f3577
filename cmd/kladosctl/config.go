package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"klados/internal/likelihood"
)

// fitParams mirrors the fit command's flags. A config file fills it first,
// then explicitly set flags override individual fields.
type fitParams struct {
	Model    string
	Flavour  string
	Tree     string
	TreeFile string

	SeqPaths []string
	Loci     []string
	Bins     []string

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

func loadFitParamsFromConfig(path string) (fitParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fitParams{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fitParams{}, err
	}

	var params fitParams
	if v, ok := asString(raw["model"]); ok {
		params.Model = v
	}
	if v, ok := asString(raw["flavour"]); ok {
		params.Flavour = v
	}
	if v, ok := asString(raw["tree"]); ok {
		params.Tree = v
	}
	if v, ok := asString(raw["tree_file"]); ok {
		params.TreeFile = v
	}
	if v, ok := asStringSlice(raw["seqs"]); ok {
		params.SeqPaths = v
	}
	if v, ok := asStringSlice(raw["loci"]); ok {
		params.Loci = v
	}
	if v, ok := asStringSlice(raw["bins"]); ok {
		params.Bins = v
	}
	if v, ok := asFloat64Slice(raw["motif_probs"]); ok {
		params.MotifProbs = v
	}
	if v, ok := asBool(raw["optimise_mprobs"]); ok {
		params.OptimiseMotifProbs = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		params.Workers = v
	}
	if v, ok := asInt(raw["attempts"]); ok {
		params.Attempts = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		params.Seed = v
	}
	if v, ok := asInt(raw["tune_steps"]); ok {
		params.TuneSteps = v
	}
	if v, ok := asFloat64(raw["tune_step_size"]); ok {
		params.TuneStepSize = v
	}
	if v, ok := asFloat64(raw["tune_perturbation_range"]); ok {
		params.TunePerturbationRange = v
	}
	if v, ok := asFloat64(raw["tune_annealing_factor"]); ok {
		params.TuneAnnealingFactor = v
	}
	if v, ok := asFloat64(raw["tune_min_improvement"]); ok {
		params.TuneMinImprovement = v
	}
	if v, ok := asInt(raw["tune_stall_limit"]); ok {
		params.TuneStallLimit = v
	}

	if rawRules, ok := raw["rules"].([]any); ok {
		rules := make([]likelihood.Rule, 0, len(rawRules))
		for i, rawRule := range rawRules {
			ruleMap, ok := rawRule.(map[string]any)
			if !ok {
				return fitParams{}, fmt.Errorf("rule %d must be an object", i)
			}
			rule, err := ruleFromMap(ruleMap)
			if err != nil {
				return fitParams{}, fmt.Errorf("rule %d: %w", i, err)
			}
			rules = append(rules, rule)
		}
		params.Rules = rules
	}

	return params, nil
}

func ruleFromMap(m map[string]any) (likelihood.Rule, error) {
	var rule likelihood.Rule
	if v, ok := asString(m["param"]); ok {
		rule.Param = v
	}
	if rule.Param == "" {
		return likelihood.Rule{}, errors.New("rule requires param")
	}
	if v, ok := asString(m["edge"]); ok {
		rule.Edge = v
	}
	if v, ok := asStringSlice(m["edges"]); ok {
		rule.Edges = v
	}
	if v, ok := asStringSlice(m["tip_names"]); ok {
		rule.TipNames = v
	}
	if v, ok := asString(m["outgroup"]); ok {
		rule.Outgroup = v
	}
	if v, ok := asBool(m["is_clade"]); ok {
		rule.IsClade = &v
	}
	if v, ok := asBool(m["is_stem"]); ok {
		rule.IsStem = &v
	}
	if v, ok := asString(m["bin"]); ok {
		rule.Bin = v
	}
	if v, ok := asStringSlice(m["bins"]); ok {
		rule.Bins = v
	}
	if v, ok := asString(m["locus"]); ok {
		rule.Locus = v
	}
	if v, ok := asStringSlice(m["loci"]); ok {
		rule.Loci = v
	}
	if v, ok := asFloat64(m["value"]); ok {
		rule.Value = &v
	}
	if v, ok := asFloat64(m["init"]); ok {
		rule.Init = &v
	}
	if v, ok := asFloat64(m["lower"]); ok {
		rule.Lower = &v
	}
	if v, ok := asFloat64(m["upper"]); ok {
		rule.Upper = &v
	}
	if v, ok := asFloat64(m["total"]); ok {
		rule.Total = &v
	}
	if v, ok := asBool(m["is_constant"]); ok {
		rule.IsConstant = v
	}
	if v, ok := asBool(m["is_independent"]); ok {
		rule.IsIndependent = &v
	}
	return rule, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asFloat64Slice(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func overrideFromFlags(params *fitParams, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "model":
			params.Model = v.(string)
		case "flavour":
			params.Flavour = v.(string)
		case "tree":
			params.Tree = v.(string)
		case "tree-file":
			params.TreeFile = v.(string)
		case "seqs":
			params.SeqPaths = v.([]string)
		case "loci":
			params.Loci = v.([]string)
		case "bins":
			params.Bins = v.([]string)
		case "motif-probs":
			params.MotifProbs = v.([]float64)
		case "optimise-mprobs":
			params.OptimiseMotifProbs = v.(bool)
		case "rules":
			params.Rules = v.([]likelihood.Rule)
		case "workers":
			params.Workers = v.(int)
		case "attempts":
			params.Attempts = v.(int)
		case "seed":
			params.Seed = v.(int64)
		case "tune-steps":
			params.TuneSteps = v.(int)
		case "tune-step-size":
			params.TuneStepSize = v.(float64)
		case "tune-perturbation-range":
			params.TunePerturbationRange = v.(float64)
		case "tune-annealing-factor":
			params.TuneAnnealingFactor = v.(float64)
		case "tune-min-improvement":
			params.TuneMinImprovement = v.(float64)
		case "tune-stall-limit":
			params.TuneStallLimit = v.(int)
		}
	}
	if params.Model == "" {
		params.Model = "hky85"
	}
	return nil
}

func loadOrDefaultFitParams(configPath string) (fitParams, error) {
	if configPath == "" {
		return fitParams{}, nil
	}
	params, err := loadFitParamsFromConfig(configPath)
	if err != nil {
		return fitParams{}, fmt.Errorf("load config: %w", err)
	}
	return params, nil
}

func parseCommaSeparated(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseFloatVector(raw string) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return nil, errors.New("vector is required")
	}
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// parseRuleSpecs parses the -rules flag: rule specs separated by semicolons,
// each a comma-separated list of key=value fields. Multi-valued fields
// (edges, tip-names, bins, loci) separate their items with '+'.
func parseRuleSpecs(raw string) ([]likelihood.Rule, error) {
	specs := strings.Split(raw, ";")
	out := make([]likelihood.Rule, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		rule, err := parseRuleSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if len(out) == 0 {
		return nil, errors.New("rules value is empty")
	}
	return out, nil
}

func parseRuleSpec(spec string) (likelihood.Rule, error) {
	var rule likelihood.Rule
	for _, pair := range parseCommaSeparated(spec) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return likelihood.Rule{}, fmt.Errorf("rule field %q must be key=value", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "param":
			rule.Param = value
		case "edge":
			rule.Edge = value
		case "edges":
			rule.Edges = splitPlusSeparated(value)
		case "tip-names":
			rule.TipNames = splitPlusSeparated(value)
		case "outgroup":
			rule.Outgroup = value
		case "bin":
			rule.Bin = value
		case "bins":
			rule.Bins = splitPlusSeparated(value)
		case "locus":
			rule.Locus = value
		case "loci":
			rule.Loci = splitPlusSeparated(value)
		case "value", "init", "lower", "upper", "total":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return likelihood.Rule{}, fmt.Errorf("parse rule %s %q: %w", key, value, err)
			}
			switch key {
			case "value":
				rule.Value = &f
			case "init":
				rule.Init = &f
			case "lower":
				rule.Lower = &f
			case "upper":
				rule.Upper = &f
			case "total":
				rule.Total = &f
			}
		case "is-clade", "is-stem", "is-constant", "is-independent":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return likelihood.Rule{}, fmt.Errorf("parse rule %s %q: %w", key, value, err)
			}
			switch key {
			case "is-clade":
				rule.IsClade = &b
			case "is-stem":
				rule.IsStem = &b
			case "is-constant":
				rule.IsConstant = b
			case "is-independent":
				rule.IsIndependent = &b
			}
		default:
			return likelihood.Rule{}, fmt.Errorf("unknown rule key: %s", key)
		}
	}
	if rule.Param == "" {
		return likelihood.Rule{}, fmt.Errorf("rule spec %q requires param", spec)
	}
	return rule, nil
}

func splitPlusSeparated(raw string) []string {
	parts := strings.Split(raw, "+")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
