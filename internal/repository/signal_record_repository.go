package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"confluence-backend/internal/domain"
)

// InMemorySignalRecordRepository keeps signal records in a map. Used by tests and
// when no database is configured.
type InMemorySignalRecordRepository struct {
	records map[string]domain.SignalRecord
	mu      sync.RWMutex
}

var _ domain.SignalRecordStore = (*InMemorySignalRecordRepository)(nil)

func NewInMemorySignalRecordRepository() *InMemorySignalRecordRepository {
	return &InMemorySignalRecordRepository{
		records: make(map[string]domain.SignalRecord),
	}
}

func (r *InMemorySignalRecordRepository) Insert(ctx context.Context, rec domain.SignalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("signal record %s already exists", rec.ID)
	}
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

// UpdateResult settles a record under the write lock, so of two concurrent
// resolutions exactly one succeeds.
func (r *InMemorySignalRecordRepository) UpdateResult(ctx context.Context, id string, result domain.Result, price float64, at time.Time) (domain.SignalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.SignalRecord{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	if rec.Result != domain.ResultPending {
		return domain.SignalRecord{}, fmt.Errorf("%w: %s is %s", domain.ErrAlreadyResolved, id, rec.Result)
	}
	rec.Result = result
	rec.ResultPrice = &price
	rec.ResultTime = &at
	r.records[id] = rec
	return cloneRecord(rec), nil
}

func (r *InMemorySignalRecordRepository) Get(ctx context.Context, id string) (domain.SignalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.SignalRecord{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	return cloneRecord(rec), nil
}

// Query returns matching records ordered by signal time, then id.
func (r *InMemorySignalRecordRepository) Query(ctx context.Context, filter domain.RecordFilter) ([]domain.SignalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SignalRecord, 0)
	for _, rec := range r.records {
		if filter.Match(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SignalTime.Equal(out[j].SignalTime) {
			return out[i].SignalTime.Before(out[j].SignalTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// cloneRecord copies the pointer and map fields so callers cannot mutate stored state.
func cloneRecord(rec domain.SignalRecord) domain.SignalRecord {
	if rec.ResultPrice != nil {
		p := *rec.ResultPrice
		rec.ResultPrice = &p
	}
	if rec.ResultTime != nil {
		t := *rec.ResultTime
		rec.ResultTime = &t
	}
	if rec.Metadata != nil {
		md := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			md[k] = v
		}
		rec.Metadata = md
	}
	return rec
}
