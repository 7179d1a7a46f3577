package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"klados/internal/model"
)

func TestDecodeFitFixture(t *testing.T) {
	fit := decodeFitFixture(t, "minimal_fit_v1.json")
	if fit.ID != "fit-minimal-1" {
		t.Fatalf("unexpected fit id: %s", fit.ID)
	}
	if fit.Model != "hky85" {
		t.Fatalf("unexpected model: %s", fit.Model)
	}
	if len(fit.Estimates) != 1 || fit.Estimates[0].Name != "kappa" {
		t.Fatalf("unexpected estimates: %+v", fit.Estimates)
	}
}

func TestDecodeTreeFixture(t *testing.T) {
	path := fixturePath("minimal_tree_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	tree, err := DecodeTree(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if tree.ID != "tree-minimal-1" {
		t.Fatalf("unexpected tree id: %s", tree.ID)
	}
	if tree.TipCount != 2 {
		t.Fatalf("unexpected tip count: %d", tree.TipCount)
	}
}

func TestDecodeModelSummaryFixture(t *testing.T) {
	path := fixturePath("minimal_model_summary_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	summary, err := DecodeModelSummary(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if summary.Name != "hky85" {
		t.Fatalf("unexpected model name: %s", summary.Name)
	}
	if summary.BestLogLikelihood != -11.25 {
		t.Fatalf("unexpected best log likelihood: %f", summary.BestLogLikelihood)
	}
}

func TestFitCodecRoundTrip(t *testing.T) {
	input := model.FitRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "f1",
		Model:           "k80",
		TreeNewick:      "(a:0.1,b:0.2)",
		LogLikelihood:   -10.5,
		Evaluations:     61,
		Estimates: []model.ParamEstimate{
			{Name: "kappa", Bin: "bin0", Locus: "locus0", Value: 2.5},
			{Name: "length", Edge: "a", Value: 0.1},
		},
	}

	encoded, err := EncodeFit(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeFit(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != input.ID {
		t.Fatalf("id mismatch: got=%s want=%s", decoded.ID, input.ID)
	}
	if decoded.LogLikelihood != input.LogLikelihood {
		t.Fatalf("log likelihood mismatch: got=%f want=%f", decoded.LogLikelihood, input.LogLikelihood)
	}
	if len(decoded.Estimates) != len(input.Estimates) {
		t.Fatalf("estimate count mismatch: got=%d want=%d", len(decoded.Estimates), len(input.Estimates))
	}
}

func TestTreeCodecRoundTrip(t *testing.T) {
	input := model.TreeRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "t1",
		Newick:          "((a:0.1,b:0.2)ab:0.05,c:0.3)",
		TipCount:        3,
	}

	encoded, err := EncodeTree(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeTree(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != input.ID || decoded.Newick != input.Newick || decoded.TipCount != input.TipCount {
		t.Fatalf("decoded tree mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestModelSummaryCodecRoundTrip(t *testing.T) {
	input := model.ModelSummary{
		VersionedRecord:   model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Name:              "jc69",
		Description:       "equal rates, equal frequencies",
		BestLogLikelihood: -42.7,
	}

	encoded, err := EncodeModelSummary(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeModelSummary(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Name != input.Name || decoded.BestLogLikelihood != input.BestLogLikelihood {
		t.Fatalf("decoded summary mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestLnLHistoryCodecRoundTrip(t *testing.T) {
	input := []float64{-20.4, -15.1, -11.25}
	encoded, err := EncodeLnLHistory(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeLnLHistory(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("decoded history mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestDecodeFitVersionMismatch(t *testing.T) {
	fit := decodeFitFixture(t, "minimal_fit_v1.json")
	fit.CodecVersion++

	encoded, err := EncodeFit(fit)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeFit(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeTreeVersionMismatch(t *testing.T) {
	path := fixturePath("minimal_tree_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	tree, err := DecodeTree(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	tree.SchemaVersion++

	encoded, err := EncodeTree(tree)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeTree(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeModelSummaryVersionMismatch(t *testing.T) {
	path := fixturePath("minimal_model_summary_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	summary, err := DecodeModelSummary(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	summary.CodecVersion++

	encoded, err := EncodeModelSummary(summary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeModelSummary(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func decodeFitFixture(t *testing.T, name string) model.FitRecord {
	t.Helper()

	path := fixturePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	fit, err := DecodeFit(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	return fit
}
