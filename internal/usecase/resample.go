package usecase

import (
	"math"
	"time"

	"confluence-backend/internal/domain"
)

// Resample buckets bars into candles of length d, aligned with time.Truncate.
// Open is the first usable open, close the last usable close, high and low the
// extremes and volume the sum. NaN values are skipped; a field with no usable
// value in its bucket stays NaN.
func Resample(bars []domain.PriceBar, d time.Duration) []domain.PriceBar {
	if d <= 0 || len(bars) == 0 {
		return nil
	}

	out := make([]domain.PriceBar, 0, len(bars))
	var cur domain.PriceBar
	open := false
	for _, b := range bars {
		bucket := b.Timestamp.Truncate(d)
		if !open || !bucket.Equal(cur.Timestamp) {
			if open {
				out = append(out, cur)
			}
			cur = domain.PriceBar{
				Timestamp: bucket,
				Open:      math.NaN(),
				High:      math.NaN(),
				Low:       math.NaN(),
				Close:     math.NaN(),
			}
			open = true
		}

		if math.IsNaN(cur.Open) && !math.IsNaN(b.Open) {
			cur.Open = b.Open
		}
		if !math.IsNaN(b.High) && (math.IsNaN(cur.High) || b.High > cur.High) {
			cur.High = b.High
		}
		if !math.IsNaN(b.Low) && (math.IsNaN(cur.Low) || b.Low < cur.Low) {
			cur.Low = b.Low
		}
		if !math.IsNaN(b.Close) {
			cur.Close = b.Close
		}
		if !math.IsNaN(b.Volume) {
			cur.Volume += b.Volume
		}
	}
	if open {
		out = append(out, cur)
	}
	return out
}
