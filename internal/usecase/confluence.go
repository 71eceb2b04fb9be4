package usecase

import (
	"math"
	"sort"

	"confluence-backend/internal/domain"
)

// Confluence score weights. They sum to 1 so the score stays in [0, 1].
const (
	levelWeight     = 0.30
	timeframeWeight = 0.25
	kindWeight      = 0.10
	strengthWeight  = 0.20
	recencyWeight   = 0.15
)

var levelStrengthWeights = map[domain.Strength]float64{
	domain.StrengthStrong:   1.0,
	domain.StrengthModerate: 0.6,
	domain.StrengthWeak:     0.3,
}

// ZoneLevel is a level together with the resolved tolerance of its timeframe.
type ZoneLevel struct {
	Level     domain.FibonacciLevel
	Tolerance float64
}

// ConfluenceScorer clusters levels from all timeframes into scored zones.
type ConfluenceScorer struct {
	MinZoneLevels int
}

// Score bins levels greedily in price order. A level joins the open bin while its
// fractional distance from the bin's first price is within the tightest tolerance
// seen in the bin, its own included. Bins below MinZoneLevels are dropped.
func (s ConfluenceScorer) Score(levels []ZoneLevel, signals []domain.Signal) []domain.ConfluenceZone {
	minLevels := s.MinZoneLevels
	if minLevels < 1 {
		minLevels = domain.DefaultMinZoneLevels
	}

	sorted := append([]ZoneLevel(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level.Price != sorted[j].Level.Price {
			return sorted[i].Level.Price < sorted[j].Level.Price
		}
		return sorted[i].Level.QualifiedKey() < sorted[j].Level.QualifiedKey()
	})

	var bins [][]ZoneLevel
	var binTol float64
	for _, zl := range sorted {
		if n := len(bins); n > 0 {
			anchor := bins[n-1][0].Level.Price
			tol := math.Min(binTol, zl.Tolerance)
			if withinTolerance(anchor, zl.Level.Price, tol) {
				bins[n-1] = append(bins[n-1], zl)
				binTol = tol
				continue
			}
		}
		bins = append(bins, []ZoneLevel{zl})
		binTol = zl.Tolerance
	}

	zones := make([]domain.ConfluenceZone, 0, len(bins))
	for _, bin := range bins {
		if len(bin) < minLevels {
			continue
		}
		zones = append(zones, buildZone(bin, signals))
	}
	SortZones(zones)
	return zones
}

func withinTolerance(anchor, price, tol float64) bool {
	if anchor <= 0 {
		return price == anchor
	}
	return math.Abs(price-anchor)/anchor <= tol
}

func buildZone(bin []ZoneLevel, signals []domain.Signal) domain.ConfluenceZone {
	members := make(map[string]struct{}, len(bin))
	keys := make([]string, 0, len(bin))
	frames := make(map[string]struct{})
	kinds := make(map[domain.LevelKind]struct{})
	lower, upper := bin[0].Level.Price, bin[0].Level.Price
	sumPrice, sumStrength := 0.0, 0.0

	for _, zl := range bin {
		l := zl.Level
		members[l.QualifiedKey()] = struct{}{}
		keys = append(keys, l.QualifiedKey())
		frames[l.Timeframe] = struct{}{}
		kinds[l.Kind] = struct{}{}
		lower = math.Min(lower, l.Price)
		upper = math.Max(upper, l.Price)
		sumPrice += l.Price
		sumStrength += levelStrengthWeights[l.Strength]
	}
	sort.Strings(keys)

	signalCount := 0
	recency := 0.0
	for _, sig := range signals {
		if sig.Category == domain.CategoryMultiTimeframeAlignment {
			continue
		}
		if _, ok := members[sig.Timeframe+":"+sig.LevelKey]; !ok {
			continue
		}
		signalCount++
		recency = math.Max(recency, 1/(1+float64(sig.BarsAgo)))
	}

	score := levelWeight*saturate(len(bin)) +
		timeframeWeight*saturate(len(frames)) +
		kindWeight*saturate(len(kinds)) +
		strengthWeight*(1-math.Exp(-sumStrength/2)) +
		recencyWeight*recency

	return domain.ConfluenceZone{
		CenterPrice:           sumPrice / float64(len(bin)),
		LowerPrice:            lower,
		UpperPrice:            upper,
		ContributingLevelKeys: keys,
		Timeframes:            sortTimeframes(frames),
		SignalCount:           signalCount,
		Strength:              domain.ZoneStrengthForScore(score),
		ConfluenceScore:       score,
	}
}

// saturate maps a count n >= 1 onto [0, 1): 1 - 0.5^(n-1).
func saturate(n int) float64 {
	if n < 1 {
		return 0
	}
	return 1 - math.Pow(0.5, float64(n-1))
}

// sortTimeframes orders timeframes from shortest to longest.
func sortTimeframes(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for tf := range set {
		out = append(out, tf)
	}
	sort.Slice(out, func(i, j int) bool {
		di, erri := domain.ParseTimeframe(out[i])
		dj, errj := domain.ParseTimeframe(out[j])
		if erri == nil && errj == nil && di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// SortZones orders zones by score, highest first. Equal scores fall back to the
// lower center price.
func SortZones(zones []domain.ConfluenceZone) {
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].ConfluenceScore != zones[j].ConfluenceScore {
			return zones[i].ConfluenceScore > zones[j].ConfluenceScore
		}
		return zones[i].CenterPrice < zones[j].CenterPrice
	})
}
