package repository

import (
	"context"
	"sort"
	"sync"

	"confluence-backend/internal/domain"
)

// InMemoryAnalysisRepository keeps the latest analysis per symbol.
type InMemoryAnalysisRepository struct {
	results map[string]domain.AnalysisResult
	mu      sync.RWMutex
}

var _ domain.AnalysisRepository = (*InMemoryAnalysisRepository)(nil)

func NewInMemoryAnalysisRepository() *InMemoryAnalysisRepository {
	return &InMemoryAnalysisRepository{
		results: make(map[string]domain.AnalysisResult),
	}
}

func (r *InMemoryAnalysisRepository) Save(ctx context.Context, result domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Results are never mutated after assembly, so storing the value is enough.
	r.results[domain.NormalizeSymbol(result.Symbol)] = result
	return nil
}

func (r *InMemoryAnalysisRepository) Get(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[domain.NormalizeSymbol(symbol)]
	return res, ok, nil
}

// List returns every stored result ordered by symbol.
func (r *InMemoryAnalysisRepository) List(ctx context.Context) ([]domain.AnalysisResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AnalysisResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
