package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceBar is a single OHLCV candle. Series are ordered oldest first.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// HasNaN reports whether any price field is NaN. Such bars are skipped by the
// volatility and swing computations instead of failing the whole window.
func (b PriceBar) HasNaN() bool {
	return math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close)
}

type barField struct {
	name  string
	value float64
}

func (b PriceBar) fields() [5]barField {
	return [5]barField{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
		{"volume", b.Volume},
	}
}

// ValidateSeries checks the structural rules of a bar series: strictly increasing
// timestamps, no negative or infinite values, high >= low and a usable last close.
func ValidateSeries(bars []PriceBar) error {
	for i, b := range bars {
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%w: bar %d has no timestamp", ErrMalformedInput, i)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w: bar %d timestamp %s is not after %s",
				ErrMalformedInput, i, b.Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
		for _, f := range b.fields() {
			if math.IsInf(f.value, 0) {
				return fmt.Errorf("%w: bar %d %s is infinite", ErrMalformedInput, i, f.name)
			}
			if f.value < 0 {
				return fmt.Errorf("%w: bar %d %s is negative (%g)", ErrMalformedInput, i, f.name, f.value)
			}
		}
		if !math.IsNaN(b.High) && !math.IsNaN(b.Low) && b.High < b.Low {
			return fmt.Errorf("%w: bar %d high %g below low %g", ErrMalformedInput, i, b.High, b.Low)
		}
	}
	if n := len(bars); n > 0 && math.IsNaN(bars[n-1].Close) {
		return fmt.Errorf("%w: last bar close is NaN, current price unknown", ErrMalformedInput)
	}
	return nil
}

// LastClose returns the close of the most recent bar, or 0 for an empty series.
func LastClose(bars []PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}

// TrailingWindow returns at most the last n bars. n <= 0 returns the whole series.
func TrailingWindow(bars []PriceBar, n int) []PriceBar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
