package usecase

import (
	"fmt"
	"math"

	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/indicators"
)

// SwingDetector picks the global high and low of a window. The more recent of the
// two is the active endpoint.
type SwingDetector struct {
	Source domain.SwingSource
}

func (d SwingDetector) Detect(bars []domain.PriceBar) (domain.SwingPair, error) {
	if len(bars) < 2 {
		return domain.SwingPair{}, fmt.Errorf("%w: swing detection needs at least 2 bars, got %d",
			domain.ErrInsufficientData, len(bars))
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	usable := 0
	for i, b := range bars {
		if d.Source == domain.SwingSourceHighLow {
			highs[i], lows[i] = b.High, b.Low
		} else {
			highs[i], lows[i] = b.Close, b.Close
		}
		if !math.IsNaN(highs[i]) && !math.IsNaN(lows[i]) {
			usable++
		}
	}
	if usable < 2 {
		return domain.SwingPair{}, fmt.Errorf("%w: only %d usable bars for swing detection",
			domain.ErrInsufficientData, usable)
	}

	hi, _ := indicators.Highest(highs)
	lo, _ := indicators.Lowest(lows)

	pair := domain.SwingPair{
		High: domain.SwingPoint{Index: hi.Index, Price: hi.Price, Timestamp: bars[hi.Index].Timestamp, Kind: domain.SwingHigh},
		Low:  domain.SwingPoint{Index: lo.Index, Price: lo.Price, Timestamp: bars[lo.Index].Timestamp, Kind: domain.SwingLow},
	}
	if lo.Index > hi.Index {
		pair.Active = domain.SwingLow
	} else {
		pair.Active = domain.SwingHigh
	}
	return pair, nil
}
