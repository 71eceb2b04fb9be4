package usecase

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/indicators"
)

const (
	// MinVolatilityBars is the smallest usable window for a volatility estimate.
	MinVolatilityBars = 14

	MinResolvedTolerance = 0.005
	MaxResolvedTolerance = 0.05

	MinVolatilityFactor = 0.5
	MaxVolatilityFactor = 2.0
)

// ToleranceRequest describes one tolerance computation.
type ToleranceRequest struct {
	Symbol            string
	Timeframe         string
	Bars              []domain.PriceBar
	Type              domain.ToleranceType
	BaseTolerance     float64
	ATRPeriod         int
	RequireVolatility bool
}

// ToleranceCalculator turns a bar window into a bounded, volatility scaled
// tolerance. The optional cache is keyed on the window content.
type ToleranceCalculator struct {
	cache domain.ToleranceCache
}

func NewToleranceCalculator(cache domain.ToleranceCache) *ToleranceCalculator {
	return &ToleranceCalculator{cache: cache}
}

func (c *ToleranceCalculator) Calculate(ctx context.Context, req ToleranceRequest) (domain.ToleranceSpec, error) {
	if _, err := req.Type.Multiplier(); err != nil {
		return domain.ToleranceSpec{}, err
	}
	if math.IsNaN(req.BaseTolerance) || req.BaseTolerance <= 0 || req.BaseTolerance > domain.MaxBaseTolerance {
		return domain.ToleranceSpec{}, fmt.Errorf("%w: base tolerance %g", domain.ErrInvalidConfiguration, req.BaseTolerance)
	}
	if req.ATRPeriod < 1 {
		return domain.ToleranceSpec{}, fmt.Errorf("%w: atr period %d", domain.ErrInvalidConfiguration, req.ATRPeriod)
	}

	key := domain.ToleranceKey{
		Symbol:        req.Symbol,
		Timeframe:     req.Timeframe,
		WindowHash:    WindowHash(req.Bars),
		Type:          req.Type,
		BaseTolerance: req.BaseTolerance,
		ATRPeriod:     req.ATRPeriod,
	}
	if c.cache != nil {
		if spec, ok := c.cache.Get(ctx, key); ok {
			return checkFallback(spec, req)
		}
	}

	factor, fallback := VolatilityFactor(req.Bars, req.ATRPeriod)
	resolved, err := ResolveTolerance(req.BaseTolerance, factor, req.Type)
	if err != nil {
		return domain.ToleranceSpec{}, err
	}
	spec := domain.ToleranceSpec{
		BaseTolerance:     req.BaseTolerance,
		Type:              req.Type,
		VolatilityFactor:  factor,
		ResolvedTolerance: resolved,
		Fallback:          fallback,
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, spec)
	}
	return checkFallback(spec, req)
}

func checkFallback(spec domain.ToleranceSpec, req ToleranceRequest) (domain.ToleranceSpec, error) {
	if spec.Fallback && req.RequireVolatility {
		return domain.ToleranceSpec{}, fmt.Errorf("%w: %s %s has fewer than %d usable bars for volatility",
			domain.ErrInsufficientData, req.Symbol, req.Timeframe, MinVolatilityBars)
	}
	return spec, nil
}

// VolatilityFactor compares the current Wilder ATR against the mean true range of
// the whole window and clamps the ratio to [0.5, 2]. Bars with NaN high, low or
// close are dropped first. With fewer than MinVolatilityBars usable bars it returns
// the neutral factor 1 and fallback=true.
func VolatilityFactor(bars []domain.PriceBar, atrPeriod int) (factor float64, fallback bool) {
	highs := make([]float64, 0, len(bars))
	lows := make([]float64, 0, len(bars))
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close) {
			continue
		}
		highs = append(highs, b.High)
		lows = append(lows, b.Low)
		closes = append(closes, b.Close)
	}
	if len(closes) < MinVolatilityBars {
		return 1.0, true
	}

	trs := indicators.TrueRanges(highs, lows, closes)
	baseline := indicators.Mean(trs)
	if baseline <= 0 {
		return MinVolatilityFactor, false
	}
	current := indicators.WilderATR(trs, atrPeriod)
	return indicators.Clamp(current/baseline, MinVolatilityFactor, MaxVolatilityFactor), false
}

// ResolveTolerance applies the type multiplier and clamps to [0.005, 0.05].
func ResolveTolerance(base, factor float64, t domain.ToleranceType) (float64, error) {
	m, err := t.Multiplier()
	if err != nil {
		return 0, err
	}
	return indicators.Clamp(base*factor*m, MinResolvedTolerance, MaxResolvedTolerance), nil
}

// WindowHash fingerprints a bar window. Any change to a timestamp or a value
// produces a different hash.
func WindowHash(bars []domain.PriceBar) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for _, b := range bars {
		write(uint64(b.Timestamp.UnixNano()))
		write(math.Float64bits(b.Open))
		write(math.Float64bits(b.High))
		write(math.Float64bits(b.Low))
		write(math.Float64bits(b.Close))
		write(math.Float64bits(b.Volume))
	}
	return h.Sum64()
}
