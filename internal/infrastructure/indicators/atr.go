package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TrueRanges returns max(H-L, |H-Cprev|, |L-Cprev|) for bars 1..n-1. The first bar
// has no previous close, so the result is one element shorter than the input.
func TrueRanges(highs, lows, closes []float64) []float64 {
	length := len(closes)
	if length < 2 || len(highs) != length || len(lows) != length {
		return nil
	}
	trs := talib.TRange(highs, lows, closes)
	return trs[1:]
}

// WilderATR smooths true ranges the way Wilder's ATR does: the first value is the
// plain mean of the first period ranges, every later range is blended in with
// weight 1/period. With fewer ranges than period it degrades to the mean.
func WilderATR(trs []float64, period int) float64 {
	if len(trs) == 0 || period <= 0 {
		return 0
	}
	if len(trs) < period {
		return Mean(trs)
	}

	atr := Mean(trs[:period])
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

// Mean is the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
