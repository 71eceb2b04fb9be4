package indicators

import "math"

type Pivot struct {
	Index int
	Price float64
}

// Highest finds the global maximum, skipping NaN. On equal prices the most recent
// index wins. ok is false when no value is usable.
func Highest(values []float64) (p Pivot, ok bool) {
	return extreme(values, func(candidate, best float64) bool { return candidate >= best })
}

// Lowest finds the global minimum with the same rules as Highest.
func Lowest(values []float64) (p Pivot, ok bool) {
	return extreme(values, func(candidate, best float64) bool { return candidate <= best })
}

func extreme(values []float64, better func(candidate, best float64) bool) (Pivot, bool) {
	best := Pivot{Index: -1}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best.Index < 0 || better(v, best.Price) {
			best = Pivot{Index: i, Price: v}
		}
	}
	return best, best.Index >= 0
}
