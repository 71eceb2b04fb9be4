package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of a tracked signal.
type Result string

const (
	ResultPending Result = "PENDING"
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
)

// Direction is the move implied by a signal relative to its level.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
)

// ParseDirection accepts any casing of a known direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case DirectionBullish, DirectionBearish:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrMalformedInput, s)
}

// SignalRecord is the persisted log entry of a signal. It is created PENDING and
// resolved exactly once.
type SignalRecord struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	LevelPrice  float64           `json:"levelPrice"`
	LevelName   string            `json:"levelName"`
	SignalTime  time.Time         `json:"signalTime"`
	Strength    Strength          `json:"strength"`
	Category    Category          `json:"category"`
	Timeframe   string            `json:"timeframe"`
	Direction   Direction         `json:"direction"`
	Result      Result            `json:"result"`
	ResultPrice *float64          `json:"resultPrice,omitempty"`
	ResultTime  *time.Time        `json:"resultTime,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Completed reports whether the record has been resolved.
func (r SignalRecord) Completed() bool {
	return r.Result == ResultWin || r.Result == ResultLoss
}

// RecordFilter narrows record queries. Zero values mean "any".
type RecordFilter struct {
	Symbol    string
	Timeframe string
	Strength  Strength
	From      time.Time
	To        time.Time
}

// Match applies the filter to one record. From and To are inclusive.
func (f RecordFilter) Match(r SignalRecord) bool {
	if f.Symbol != "" && !strings.EqualFold(f.Symbol, r.Symbol) {
		return false
	}
	if f.Timeframe != "" && f.Timeframe != r.Timeframe {
		return false
	}
	if f.Strength != "" && f.Strength != r.Strength {
		return false
	}
	if !f.From.IsZero() && r.SignalTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.SignalTime.After(f.To) {
		return false
	}
	return true
}

// PerformanceMetrics aggregates resolved outcomes.
type PerformanceMetrics struct {
	TotalSignals       int                             `json:"totalSignals"`
	CompletedSignals   int                             `json:"completedSignals"`
	PendingSignals     int                             `json:"pendingSignals"`
	Wins               int                             `json:"wins"`
	Losses             int                             `json:"losses"`
	WinRate            float64                         `json:"winRate"`
	LossRate           float64                         `json:"lossRate"`
	AverageMovePercent float64                         `json:"averageMovePercent"`
	ByStrength         map[Strength]PerformanceMetrics `json:"byStrength,omitempty"`
}

// SignalRecordStore persists signal records. UpdateResult must only succeed for a
// record that is still PENDING and return ErrAlreadyResolved otherwise.
type SignalRecordStore interface {
	Insert(ctx context.Context, rec SignalRecord) error
	UpdateResult(ctx context.Context, id string, result Result, price float64, at time.Time) (SignalRecord, error)
	Get(ctx context.Context, id string) (SignalRecord, error)
	Query(ctx context.Context, filter RecordFilter) ([]SignalRecord, error)
}
