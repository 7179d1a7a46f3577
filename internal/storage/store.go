package storage

import (
	"context"

	"klados/internal/model"
)

// Store defines persistence operations for fitted likelihood functions and
// the trees and model summaries they reference.
type Store interface {
	Init(ctx context.Context) error
	SaveFit(ctx context.Context, fit model.FitRecord) error
	GetFit(ctx context.Context, id string) (model.FitRecord, bool, error)
	SaveTree(ctx context.Context, tree model.TreeRecord) error
	GetTree(ctx context.Context, id string) (model.TreeRecord, bool, error)
	SaveModelSummary(ctx context.Context, summary model.ModelSummary) error
	GetModelSummary(ctx context.Context, name string) (model.ModelSummary, bool, error)
	SaveLnLHistory(ctx context.Context, fitID string, history []float64) error
	GetLnLHistory(ctx context.Context, fitID string) ([]float64, bool, error)
}
