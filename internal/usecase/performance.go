package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/metrics"
)

// PerformanceTracker keeps the signal log and scores resolved outcomes.
type PerformanceTracker struct {
	store domain.SignalRecordStore
	now   func() time.Time
}

func NewPerformanceTracker(store domain.SignalRecordStore) *PerformanceTracker {
	return &PerformanceTracker{store: store, now: time.Now}
}

// Record appends a PENDING record for sig. The direction is BULLISH when the
// reference price sits at or above the level, BEARISH below it.
func (t *PerformanceTracker) Record(ctx context.Context, sig domain.Signal, symbol string, metadata map[string]string) (domain.SignalRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.SignalRecord{}, fmt.Errorf("%w: symbol is required", domain.ErrMalformedInput)
	}
	if !validPrice(sig.Price) {
		return domain.SignalRecord{}, fmt.Errorf("%w: level price %g", domain.ErrMalformedInput, sig.Price)
	}
	if !validPrice(sig.ReferencePrice) {
		return domain.SignalRecord{}, fmt.Errorf("%w: reference price %g", domain.ErrMalformedInput, sig.ReferencePrice)
	}
	if _, err := domain.ParseCategory(string(sig.Category)); err != nil {
		return domain.SignalRecord{}, fmt.Errorf("%w: category %q", domain.ErrMalformedInput, sig.Category)
	}
	if _, err := domain.ParseStrength(string(sig.Strength)); err != nil {
		return domain.SignalRecord{}, fmt.Errorf("%w: strength %q", domain.ErrMalformedInput, sig.Strength)
	}

	signalTime := sig.DetectedAt
	if signalTime.IsZero() {
		signalTime = t.now()
	}
	direction := domain.DirectionBearish
	if sig.ReferencePrice >= sig.Price {
		direction = domain.DirectionBullish
	}

	rec := domain.SignalRecord{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		LevelPrice: sig.Price,
		LevelName:  levelName(sig),
		SignalTime: signalTime.UTC(),
		Strength:   sig.Strength,
		Category:   sig.Category,
		Timeframe:  sig.Timeframe,
		Direction:  direction,
		Result:     domain.ResultPending,
		Metadata:   metadata,
	}
	if err := t.store.Insert(ctx, rec); err != nil {
		return domain.SignalRecord{}, fmt.Errorf("insert signal record: %w", err)
	}
	metrics.SignalRecords.WithLabelValues(string(domain.ResultPending)).Inc()
	return rec, nil
}

func levelName(sig domain.Signal) string {
	if strings.TrimSpace(sig.LevelName) != "" {
		return sig.LevelName
	}
	return sig.LevelKey
}

// Resolve settles a PENDING record. A BULLISH record wins when the result price
// closed above the level, a BEARISH one when it closed below; anything else,
// including a close exactly on the level, is a loss. Resolving twice returns
// ErrAlreadyResolved.
func (t *PerformanceTracker) Resolve(ctx context.Context, id string, resultPrice float64, resultTime time.Time) (domain.SignalRecord, error) {
	if !validPrice(resultPrice) {
		return domain.SignalRecord{}, fmt.Errorf("%w: result price %g", domain.ErrMalformedInput, resultPrice)
	}
	if resultTime.IsZero() {
		resultTime = t.now()
	}

	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return domain.SignalRecord{}, err
	}
	if rec.Result != domain.ResultPending {
		return domain.SignalRecord{}, fmt.Errorf("%w: %s is %s", domain.ErrAlreadyResolved, id, rec.Result)
	}

	result := Outcome(rec.Direction, rec.LevelPrice, resultPrice)
	updated, err := t.store.UpdateResult(ctx, id, result, resultPrice, resultTime.UTC())
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) || errors.Is(err, domain.ErrRecordNotFound) {
			return domain.SignalRecord{}, err
		}
		return domain.SignalRecord{}, fmt.Errorf("update signal record %s: %w", id, err)
	}
	metrics.SignalRecords.WithLabelValues(string(result)).Inc()
	return updated, nil
}

// Outcome decides WIN or LOSS for a direction and level.
func Outcome(direction domain.Direction, levelPrice, resultPrice float64) domain.Result {
	switch {
	case direction == domain.DirectionBullish && resultPrice > levelPrice:
		return domain.ResultWin
	case direction == domain.DirectionBearish && resultPrice < levelPrice:
		return domain.ResultWin
	default:
		return domain.ResultLoss
	}
}

func (t *PerformanceTracker) Get(ctx context.Context, id string) (domain.SignalRecord, error) {
	return t.store.Get(ctx, id)
}

func (t *PerformanceTracker) List(ctx context.Context, filter domain.RecordFilter) ([]domain.SignalRecord, error) {
	return t.store.Query(ctx, filter)
}

// Metrics aggregates the records matching filter.
func (t *PerformanceTracker) Metrics(ctx context.Context, filter domain.RecordFilter) (domain.PerformanceMetrics, error) {
	records, err := t.store.Query(ctx, filter)
	if err != nil {
		return domain.PerformanceMetrics{}, fmt.Errorf("query signal records: %w", err)
	}
	return ComputeMetrics(records), nil
}

// ComputeMetrics summarises records overall and per strength bucket.
func ComputeMetrics(records []domain.SignalRecord) domain.PerformanceMetrics {
	m := aggregate(records)

	buckets := make(map[domain.Strength][]domain.SignalRecord)
	for _, r := range records {
		buckets[r.Strength] = append(buckets[r.Strength], r)
	}
	if len(buckets) > 0 {
		m.ByStrength = make(map[domain.Strength]domain.PerformanceMetrics, len(buckets))
		for s, recs := range buckets {
			m.ByStrength[s] = aggregate(recs)
		}
	}
	return m
}

func aggregate(records []domain.SignalRecord) domain.PerformanceMetrics {
	var m domain.PerformanceMetrics
	moveSum := 0.0
	for _, r := range records {
		m.TotalSignals++
		switch r.Result {
		case domain.ResultWin:
			m.Wins++
		case domain.ResultLoss:
			m.Losses++
		default:
			m.PendingSignals++
			continue
		}
		if r.ResultPrice != nil && r.LevelPrice > 0 {
			moveSum += (*r.ResultPrice - r.LevelPrice) / r.LevelPrice
		}
	}
	m.CompletedSignals = m.Wins + m.Losses
	if m.CompletedSignals > 0 {
		n := float64(m.CompletedSignals)
		m.WinRate = float64(m.Wins) / n
		m.LossRate = float64(m.Losses) / n
		m.AverageMovePercent = moveSum / n
	}
	return m
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
