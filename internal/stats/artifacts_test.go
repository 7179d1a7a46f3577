package stats

import (
	"os"
	"path/filepath"
	"testing"

	"klados/internal/model"
)

func TestWriteAndExportFitArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	fitID := "fit-123"
	artifacts := FitArtifacts{
		Config: FitConfig{
			FitID:      fitID,
			Model:      "hky85",
			Flavour:    "alignment",
			TreeNewick: "(a:0.1,b:0.2)",
			Workers:    1,
			Attempts:   50,
			Seed:       1,
		},
		LnLHistory:         []float64{-20.4, -15.1, -11.25},
		FinalLogLikelihood: -11.25,
		Evaluations:        51,
		FreeParams:         3,
		Estimates: []model.ParamEstimate{
			{Name: "kappa", Bin: "bin0", Locus: "locus0", Value: 2.5},
			{Name: "length", Edge: "a", Value: 0.1},
		},
		AnnotatedNewick: "(a:0.11,b:0.19)",
	}

	fitDir, err := WriteFitArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"config.json", "history.json", "estimates.json", "annotated_tree.nwk"} {
		if _, err := os.Stat(filepath.Join(fitDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	newick, err := os.ReadFile(filepath.Join(fitDir, "annotated_tree.nwk"))
	if err != nil {
		t.Fatalf("read annotated tree: %v", err)
	}
	if string(newick) != "(a:0.11,b:0.19)\n" {
		t.Fatalf("unexpected annotated tree: %q", string(newick))
	}

	exportedDir, err := ExportFitArtifacts(baseDir, fitID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}

	for _, file := range []string{"config.json", "history.json", "estimates.json", "annotated_tree.nwk"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(exportedDir, "statistics.json")); !os.IsNotExist(err) {
		t.Fatalf("statistics should be absent before written: %v", err)
	}

	if err := WriteFitStatistics(fitDir, map[string]map[string]float64{
		"length": {"edge=a": 0.11, "edge=b": 0.19},
		"kappa":  {"bin=bin0,edge=a,locus=locus0": 2.5},
	}); err != nil {
		t.Fatalf("write statistics: %v", err)
	}

	exportedDirWithStatistics, err := ExportFitArtifacts(baseDir, fitID, outDir)
	if err != nil {
		t.Fatalf("export artifacts with statistics: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportedDirWithStatistics, "statistics.json")); err != nil {
		t.Fatalf("expected exported statistics: %v", err)
	}
}

func TestWriteFitArtifactsRequiresFitID(t *testing.T) {
	if _, err := WriteFitArtifacts(t.TempDir(), FitArtifacts{}); err == nil {
		t.Fatal("expected missing fit id error")
	}
}

func TestExportFitArtifactsMissingFit(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := ExportFitArtifacts(baseDir, "no-such-fit", t.TempDir()); err == nil {
		t.Fatal("expected missing fit error")
	}
}

func TestFitIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendFitIndex(baseDir, FitIndexEntry{
		FitID:              "fit-1",
		Model:              "jc69",
		Flavour:            "alignment",
		Seed:               1,
		TipCount:           2,
		FreeParams:         2,
		Evaluations:        51,
		FinalLogLikelihood: -12.5,
		CreatedAtUTC:       "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append fit-1: %v", err)
	}

	err = AppendFitIndex(baseDir, FitIndexEntry{
		FitID:              "fit-2",
		Model:              "hky85",
		Flavour:            "alignment",
		Seed:               2,
		TipCount:           3,
		FreeParams:         5,
		Evaluations:        51,
		FinalLogLikelihood: -11.1,
		CreatedAtUTC:       "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append fit-2: %v", err)
	}

	entries, err := ListFitIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].FitID != "fit-2" || entries[1].FitID != "fit-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendFitIndex(baseDir, FitIndexEntry{
		FitID:              "fit-1",
		Model:              "jc69",
		Flavour:            "alignment",
		Seed:               1,
		TipCount:           2,
		FreeParams:         2,
		Evaluations:        101,
		FinalLogLikelihood: -12.1,
		CreatedAtUTC:       "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert fit-1: %v", err)
	}

	entries, err = ListFitIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].FitID != "fit-1" || entries[0].FinalLogLikelihood != -12.1 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestFitIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendFitIndex(baseDir, FitIndexEntry{FitID: "fit-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append fit-a: %v", err)
	}
	if err := AppendFitIndex(baseDir, FitIndexEntry{FitID: "fit-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append fit-b: %v", err)
	}

	entries, err := ListFitIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].FitID != "fit-b" {
		t.Fatalf("expected latest appended fit-b first, got %+v", entries)
	}
}

func TestReadFitHistory(t *testing.T) {
	baseDir := t.TempDir()
	fitID := "fit-history"

	if _, ok, err := ReadFitHistory(baseDir, fitID); err != nil || ok {
		t.Fatalf("expected missing history; ok=%t err=%v", ok, err)
	}

	if _, err := WriteFitArtifacts(baseDir, FitArtifacts{
		Config:             FitConfig{FitID: fitID, Model: "k80", Flavour: "alignment"},
		LnLHistory:         []float64{-20.4, -15.1, -11.25},
		FinalLogLikelihood: -11.25,
		AnnotatedNewick:    "(a:0.1,b:0.2)",
	}); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	history, ok, err := ReadFitHistory(baseDir, fitID)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if !ok {
		t.Fatal("expected history to exist")
	}
	if len(history) != 3 || history[0] != -20.4 || history[2] != -11.25 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestReadFitStatistics(t *testing.T) {
	baseDir := t.TempDir()
	fitID := "fit-stats"
	fitDir := filepath.Join(baseDir, fitID)
	if err := os.MkdirAll(fitDir, 0o755); err != nil {
		t.Fatalf("mkdir fit dir: %v", err)
	}

	if _, ok, err := ReadFitStatistics(baseDir, fitID); err != nil || ok {
		t.Fatalf("expected missing statistics; ok=%t err=%v", ok, err)
	}

	want := map[string]map[string]float64{
		"length":      {"edge=a": 0.11, "edge=b": 0.19},
		"fixed_motif": {"locus=locus0": -1},
	}
	if err := WriteFitStatistics(fitDir, want); err != nil {
		t.Fatalf("write statistics: %v", err)
	}

	got, ok, err := ReadFitStatistics(baseDir, fitID)
	if err != nil {
		t.Fatalf("read statistics: %v", err)
	}
	if !ok {
		t.Fatal("expected statistics to exist")
	}
	if got["length"]["edge=a"] != 0.11 {
		t.Fatalf("unexpected statistics: %+v", got)
	}
}
