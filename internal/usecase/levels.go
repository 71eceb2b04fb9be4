package usecase

import (
	"sort"

	"confluence-backend/internal/domain"
)

// LevelGenerator derives price levels from a swing pair using a ratio table.
type LevelGenerator struct {
	table []domain.RatioSpec
}

// NewLevelGenerator validates the table; a nil table selects the built-in one.
func NewLevelGenerator(table []domain.RatioSpec) (*LevelGenerator, error) {
	if table == nil {
		table = domain.DefaultRatioTable()
	}
	if err := domain.ValidateRatioTable(table); err != nil {
		return nil, err
	}

	sorted := append([]domain.RatioSpec(nil), table...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ratio != sorted[j].Ratio {
			return sorted[i].Ratio < sorted[j].Ratio
		}
		return sorted[i].Key < sorted[j].Key
	})
	return &LevelGenerator{table: sorted}, nil
}

// Table returns a copy of the ratio table in generation order.
func (g *LevelGenerator) Table() []domain.RatioSpec {
	return append([]domain.RatioSpec(nil), g.table...)
}

// Generate computes one level per table row, ordered by ratio. Retracements are
// low + ratio*range. Extensions project past the active endpoint: above the high
// when the high is active, below the low otherwise. Projections that would land
// at or below zero are dropped.
func (g *LevelGenerator) Generate(pair domain.SwingPair, timeframe string) []domain.FibonacciLevel {
	rng := pair.Range()
	levels := make([]domain.FibonacciLevel, 0, len(g.table))
	for _, r := range g.table {
		var price float64
		switch {
		case r.Kind == domain.LevelRetrace:
			price = pair.Low.Price + r.Ratio*rng
		case pair.Active == domain.SwingLow:
			price = pair.High.Price - r.Ratio*rng
		default:
			price = pair.Low.Price + r.Ratio*rng
		}
		if r.Kind == domain.LevelExtension && price <= 0 {
			continue
		}

		name := r.Name
		if name == "" {
			name = r.Key
		}
		levels = append(levels, domain.FibonacciLevel{
			Key:       r.Key,
			Name:      name,
			Ratio:     r.Ratio,
			Price:     price,
			Kind:      r.Kind,
			Strength:  r.Strength,
			Timeframe: timeframe,
		})
	}
	return levels
}
