package storage

import (
	"context"
	"sync"

	"klados/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	fits        map[string]model.FitRecord
	trees       map[string]model.TreeRecord
	models      map[string]model.ModelSummary
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.fits = make(map[string]model.FitRecord)
	s.trees = make(map[string]model.TreeRecord)
	s.models = make(map[string]model.ModelSummary)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveFit(_ context.Context, fit model.FitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fits[fit.ID] = fit
	return nil
}

func (s *MemoryStore) GetFit(_ context.Context, id string) (model.FitRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fit, ok := s.fits[id]
	return fit, ok, nil
}

func (s *MemoryStore) SaveTree(_ context.Context, tree model.TreeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trees[tree.ID] = tree
	return nil
}

func (s *MemoryStore) GetTree(_ context.Context, id string) (model.TreeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[id]
	return tree, ok, nil
}

func (s *MemoryStore) SaveModelSummary(_ context.Context, summary model.ModelSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetModelSummary(_ context.Context, name string) (model.ModelSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.models[name]
	return summary, ok, nil
}

func (s *MemoryStore) SaveLnLHistory(_ context.Context, fitID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]float64(nil), history...)
	s.history[fitID] = copied
	return nil
}

func (s *MemoryStore) GetLnLHistory(_ context.Context, fitID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[fitID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}
