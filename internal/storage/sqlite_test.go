//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"klados/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "klados.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	fit := model.FitRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "f1",
		Model:           "hky85",
		TreeNewick:      "(a:0.1,b:0.2)",
		LogLikelihood:   -11.25,
		Evaluations:     61,
		Estimates: []model.ParamEstimate{
			{Name: "kappa", Bin: "bin0", Locus: "locus0", Value: 2.5},
		},
	}
	if err := store.SaveFit(ctx, fit); err != nil {
		t.Fatalf("save fit: %v", err)
	}

	loadedFit, ok, err := store.GetFit(ctx, fit.ID)
	if err != nil {
		t.Fatalf("get fit: %v", err)
	}
	if !ok {
		t.Fatalf("expected fit %s", fit.ID)
	}
	if loadedFit.Model != fit.Model || len(loadedFit.Estimates) != len(fit.Estimates) {
		t.Fatalf("unexpected fit loaded: %+v", loadedFit)
	}

	tree := model.TreeRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "t1",
		Newick:          "((a:0.1,b:0.2)ab:0.05,c:0.3)",
		TipCount:        3,
	}
	if err := store.SaveTree(ctx, tree); err != nil {
		t.Fatalf("save tree: %v", err)
	}

	loadedTree, ok, err := store.GetTree(ctx, tree.ID)
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if !ok {
		t.Fatalf("expected tree %s", tree.ID)
	}
	if loadedTree.Newick != tree.Newick || loadedTree.TipCount != tree.TipCount {
		t.Fatalf("unexpected tree loaded: %+v", loadedTree)
	}

	summary := model.ModelSummary{
		VersionedRecord:   model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Name:              "hky85",
		Description:       "hky85 summary",
		BestLogLikelihood: -11.25,
	}
	if err := store.SaveModelSummary(ctx, summary); err != nil {
		t.Fatalf("save model summary: %v", err)
	}
	loadedSummary, ok, err := store.GetModelSummary(ctx, "hky85")
	if err != nil {
		t.Fatalf("get model summary: %v", err)
	}
	if !ok {
		t.Fatal("expected model summary hky85")
	}
	if loadedSummary.BestLogLikelihood != summary.BestLogLikelihood {
		t.Fatalf("unexpected model summary loaded: %+v", loadedSummary)
	}

	history := []float64{-20.4, -15.1, -11.25}
	if err := store.SaveLnLHistory(ctx, "f1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loadedHistory, ok, err := store.GetLnLHistory(ctx, "f1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected lnl history f1")
	}
	if len(loadedHistory) != len(history) || loadedHistory[1] != history[1] {
		t.Fatalf("unexpected history loaded: %+v", loadedHistory)
	}
}

func TestSQLiteStoreMissingRecords(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "klados.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, ok, err := store.GetFit(ctx, "absent"); err != nil || ok {
		t.Fatalf("expected missing fit, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetLnLHistory(ctx, "absent"); err != nil || ok {
		t.Fatalf("expected missing history, got ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "klados.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	fit := model.FitRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "persisted-fit",
		Model:           "jc69",
	}
	if err := first.SaveFit(ctx, fit); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetFit(ctx, fit.ID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !ok || loaded.ID != fit.ID {
		t.Fatalf("expected persisted fit, got ok=%t value=%+v", ok, loaded)
	}
}
