package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFitParamsFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit_config.json")
	payload := map[string]any{
		"model":                   "k80",
		"flavour":                 "alignment",
		"tree":                    "(a:0.1,b:0.2)",
		"seqs":                    []any{"locus0.fasta", "locus1.fasta"},
		"loci":                    []any{"locus0", "locus1"},
		"bins":                    []any{"slow", "fast"},
		"motif_probs":             []any{0.3, 0.2, 0.3, 0.2},
		"optimise_mprobs":         true,
		"workers":                 2,
		"attempts":                11,
		"seed":                    17,
		"tune_steps":              5,
		"tune_step_size":          0.5,
		"tune_perturbation_range": 1.5,
		"tune_annealing_factor":   0.8,
		"tune_min_improvement":    1e-6,
		"tune_stall_limit":        9,
		"rules": []any{
			map[string]any{"param": "kappa", "value": 4.0, "is_constant": true},
			map[string]any{
				"param":     "length",
				"tip_names": []any{"a", "b"},
				"outgroup":  "c",
				"is_clade":  true,
				"upper":     2.0,
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	params, err := loadFitParamsFromConfig(path)
	if err != nil {
		t.Fatalf("load fit params: %v", err)
	}
	if params.Model != "k80" || params.Flavour != "alignment" || params.Tree != "(a:0.1,b:0.2)" {
		t.Fatalf("unexpected base fields: %+v", params)
	}
	if len(params.SeqPaths) != 2 || params.SeqPaths[1] != "locus1.fasta" {
		t.Fatalf("unexpected seq paths: %v", params.SeqPaths)
	}
	if len(params.Loci) != 2 || params.Loci[0] != "locus0" {
		t.Fatalf("unexpected loci: %v", params.Loci)
	}
	if len(params.Bins) != 2 || params.Bins[1] != "fast" {
		t.Fatalf("unexpected bins: %v", params.Bins)
	}
	if len(params.MotifProbs) != 4 || params.MotifProbs[0] != 0.3 {
		t.Fatalf("unexpected motif probs: %v", params.MotifProbs)
	}
	if !params.OptimiseMotifProbs {
		t.Fatal("expected optimise_mprobs from config")
	}
	if params.Workers != 2 || params.Attempts != 11 || params.Seed != 17 {
		t.Fatalf("unexpected run controls: %+v", params)
	}
	if params.TuneSteps != 5 || params.TuneStepSize != 0.5 || params.TunePerturbationRange != 1.5 {
		t.Fatalf("unexpected tune controls: %+v", params)
	}
	if params.TuneAnnealingFactor != 0.8 || params.TuneMinImprovement != 1e-6 || params.TuneStallLimit != 9 {
		t.Fatalf("unexpected tune controls: %+v", params)
	}
	if len(params.Rules) != 2 {
		t.Fatalf("unexpected rule count: %d", len(params.Rules))
	}
	kappa := params.Rules[0]
	if kappa.Param != "kappa" || kappa.Value == nil || *kappa.Value != 4 || !kappa.IsConstant {
		t.Fatalf("unexpected kappa rule: %+v", kappa)
	}
	length := params.Rules[1]
	if length.Param != "length" || length.Outgroup != "c" {
		t.Fatalf("unexpected length rule: %+v", length)
	}
	if len(length.TipNames) != 2 || length.TipNames[0] != "a" || length.TipNames[1] != "b" {
		t.Fatalf("unexpected tip names: %v", length.TipNames)
	}
	if length.IsClade == nil || !*length.IsClade {
		t.Fatalf("expected is_clade rule scope: %+v", length)
	}
	if length.Upper == nil || *length.Upper != 2 {
		t.Fatalf("unexpected upper bound: %+v", length)
	}
}

func TestLoadFitParamsFromConfigRejectsBadRules(t *testing.T) {
	dir := t.TempDir()

	writeConfig := func(name string, payload map[string]any) string {
		t.Helper()
		path := filepath.Join(dir, name)
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		return path
	}

	noParam := writeConfig("no_param.json", map[string]any{
		"rules": []any{map[string]any{"value": 4.0}},
	})
	if _, err := loadFitParamsFromConfig(noParam); err == nil || !strings.Contains(err.Error(), "rule requires param") {
		t.Fatalf("expected rule param error, got %v", err)
	}

	notObject := writeConfig("not_object.json", map[string]any{
		"rules": []any{"kappa"},
	})
	if _, err := loadFitParamsFromConfig(notObject); err == nil || !strings.Contains(err.Error(), "must be an object") {
		t.Fatalf("expected rule object error, got %v", err)
	}
}

func TestParseRuleSpecs(t *testing.T) {
	rules, err := parseRuleSpecs("param=kappa,value=4,is-constant=true; param=length,tip-names=a+b,outgroup=c,is-clade=true,upper=2")
	if err != nil {
		t.Fatalf("parse rule specs: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("unexpected rule count: %d", len(rules))
	}
	kappa := rules[0]
	if kappa.Param != "kappa" || kappa.Value == nil || *kappa.Value != 4 || !kappa.IsConstant {
		t.Fatalf("unexpected kappa rule: %+v", kappa)
	}
	length := rules[1]
	if length.Param != "length" || length.Outgroup != "c" {
		t.Fatalf("unexpected length rule: %+v", length)
	}
	if len(length.TipNames) != 2 || length.TipNames[0] != "a" || length.TipNames[1] != "b" {
		t.Fatalf("unexpected tip names: %v", length.TipNames)
	}
	if length.IsClade == nil || !*length.IsClade {
		t.Fatalf("expected is-clade scope: %+v", length)
	}
	if length.Upper == nil || *length.Upper != 2 {
		t.Fatalf("unexpected upper bound: %+v", length)
	}

	binned, err := parseRuleSpecs("param=rate,bins=bin0+bin1,loci=locus0+locus1,is-independent=false")
	if err != nil {
		t.Fatalf("parse binned rule: %v", err)
	}
	if len(binned) != 1 {
		t.Fatalf("unexpected rule count: %d", len(binned))
	}
	rate := binned[0]
	if len(rate.Bins) != 2 || rate.Bins[1] != "bin1" {
		t.Fatalf("unexpected bins: %v", rate.Bins)
	}
	if len(rate.Loci) != 2 || rate.Loci[0] != "locus0" {
		t.Fatalf("unexpected loci: %v", rate.Loci)
	}
	if rate.IsIndependent == nil || *rate.IsIndependent {
		t.Fatalf("expected is-independent=false: %+v", rate)
	}
}

func TestParseRuleSpecsErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "missing param", raw: "value=4", want: "requires param"},
		{name: "unknown key", raw: "param=kappa,wat=1", want: "unknown rule key"},
		{name: "bad float", raw: "param=kappa,value=abc", want: "parse rule value"},
		{name: "bad bool", raw: "param=kappa,is-constant=sure", want: "parse rule is-constant"},
		{name: "not key value", raw: "kappa", want: "must be key=value"},
		{name: "empty", raw: " ; ", want: "rules value is empty"},
	}
	for _, tc := range cases {
		if _, err := parseRuleSpecs(tc.raw); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestOverrideFromFlagsOnlyTouchesSetFlags(t *testing.T) {
	params := fitParams{Model: "jc69", Attempts: 10, Seed: 3}
	err := overrideFromFlags(&params, map[string]bool{"attempts": true, "tree": true}, map[string]any{
		"attempts": 25,
		"tree":     "(a:0.1,b:0.2)",
		"seed":     int64(99),
	})
	if err != nil {
		t.Fatalf("override from flags: %v", err)
	}
	if params.Attempts != 25 || params.Tree != "(a:0.1,b:0.2)" {
		t.Fatalf("expected set flags to override: %+v", params)
	}
	if params.Seed != 3 {
		t.Fatalf("expected unset seed flag to keep config value: %d", params.Seed)
	}
	if params.Model != "jc69" {
		t.Fatalf("expected model untouched: %s", params.Model)
	}
}

func TestOverrideFromFlagsDefaultsModel(t *testing.T) {
	params := fitParams{}
	if err := overrideFromFlags(&params, map[string]bool{}, map[string]any{}); err != nil {
		t.Fatalf("override from flags: %v", err)
	}
	if params.Model != "hky85" {
		t.Fatalf("expected default model hky85, got %s", params.Model)
	}
}

func TestParseFloatVector(t *testing.T) {
	values, err := parseFloatVector("0.25, 0.25,0.25,0.25")
	if err != nil {
		t.Fatalf("parse float vector: %v", err)
	}
	if len(values) != 4 || values[0] != 0.25 {
		t.Fatalf("unexpected vector: %v", values)
	}
	if _, err := parseFloatVector(""); err == nil {
		t.Fatal("expected error for empty vector")
	}
	if _, err := parseFloatVector("1,x"); err == nil {
		t.Fatal("expected error for non-numeric entry")
	}
}

func TestParseCommaSeparated(t *testing.T) {
	got := parseCommaSeparated(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected parts: %v", got)
	}
	if got := parseCommaSeparated(""); len(got) != 0 {
		t.Fatalf("expected no parts for empty input: %v", got)
	}
}

func TestSplitPlusSeparated(t *testing.T) {
	got := splitPlusSeparated("a+ b++c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected parts: %v", got)
	}
}
