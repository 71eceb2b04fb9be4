package usecase

import (
	"fmt"
	"math"
	"strings"

	"confluence-backend/internal/domain"
)

// SignalDetector flags levels that price is currently touching. RecentBars widens
// the check to the last n closes; the most recent touching bar is reported.
type SignalDetector struct {
	RecentBars int
}

func (d SignalDetector) Detect(bars []domain.PriceBar, levels []domain.FibonacciLevel, tol domain.ToleranceSpec, timeframe string) []domain.Signal {
	lookback := d.RecentBars
	if lookback < 1 {
		lookback = 1
	}
	if lookback > len(bars) {
		lookback = len(bars)
	}

	signals := make([]domain.Signal, 0)
	for _, lvl := range levels {
		for ago := 0; ago < lookback; ago++ {
			bar := bars[len(bars)-1-ago]
			if math.IsNaN(bar.Close) || bar.Close <= 0 {
				continue
			}
			dist := math.Abs(bar.Close-lvl.Price) / bar.Close
			if dist > tol.ResolvedTolerance {
				continue
			}
			signals = append(signals, domain.Signal{
				LevelKey:       lvl.Key,
				LevelName:      lvl.Name,
				Timeframe:      timeframe,
				Category:       domain.CategoryForLevel(lvl.Kind),
				Strength:       lvl.Strength,
				DetectedAt:     bar.Timestamp,
				Price:          lvl.Price,
				ReferencePrice: bar.Close,
				Distance:       dist,
				BarsAgo:        ago,
				Description: fmt.Sprintf("%s price %.8g within %.2f%% of %s at %.8g",
					timeframe, bar.Close, dist*100, lvl.Name, lvl.Price),
			})
			break
		}
	}
	return signals
}

// AlignSignals emits one MULTI_TIMEFRAME_ALIGNMENT signal for every level key that
// signalled on two or more timeframes. Input order decides output order.
func AlignSignals(signals []domain.Signal) []domain.Signal {
	var order []string
	groups := make(map[string][]domain.Signal)
	for _, s := range signals {
		if s.Category == domain.CategoryMultiTimeframeAlignment {
			continue
		}
		members, ok := groups[s.LevelKey]
		if !ok {
			order = append(order, s.LevelKey)
		}
		dup := false
		for _, m := range members {
			if m.Timeframe == s.Timeframe {
				dup = true
				break
			}
		}
		if !dup {
			groups[s.LevelKey] = append(members, s)
		}
	}

	aligned := make([]domain.Signal, 0)
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}

		first := members[0]
		frames := make([]string, len(members))
		sumPrice := 0.0
		out := domain.Signal{
			LevelKey:       key,
			LevelName:      first.LevelName,
			Category:       domain.CategoryMultiTimeframeAlignment,
			Strength:       first.Strength,
			DetectedAt:     first.DetectedAt,
			ReferencePrice: first.ReferencePrice,
			Distance:       first.Distance,
			BarsAgo:        first.BarsAgo,
		}
		for i, m := range members {
			frames[i] = m.Timeframe
			sumPrice += m.Price
			if m.DetectedAt.After(out.DetectedAt) {
				out.DetectedAt = m.DetectedAt
			}
			out.Distance = math.Min(out.Distance, m.Distance)
			if m.BarsAgo < out.BarsAgo {
				out.BarsAgo = m.BarsAgo
			}
		}
		out.Timeframe = strings.Join(frames, "+")
		out.Price = sumPrice / float64(len(members))
		out.Description = fmt.Sprintf("%s aligned across %s", first.LevelName, strings.Join(frames, ", "))
		aligned = append(aligned, out)
	}
	return aligned
}
