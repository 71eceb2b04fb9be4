package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/domain"
)

var allToleranceTypes = []domain.ToleranceType{
	domain.ToleranceTight, domain.ToleranceStandard, domain.ToleranceWide, domain.ToleranceVeryWide,
}

func TestResolveToleranceReferenceTable(t *testing.T) {
	want := map[domain.ToleranceType]float64{
		domain.ToleranceTight:    0.0075,
		domain.ToleranceStandard: 0.015,
		domain.ToleranceWide:     0.03,
		domain.ToleranceVeryWide: 0.045,
	}
	for tt, expected := range want {
		got, err := ResolveTolerance(0.01, 1.5, tt)
		require.NoError(t, err)
		assert.InDelta(t, expected, got, 1e-12, tt)
	}
}

func TestResolveToleranceBounds(t *testing.T) {
	for _, base := range []float64{0.0001, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1} {
		for _, factor := range []float64{0.5, 0.75, 1, 1.5, 2} {
			prev := 0.0
			for _, tt := range allToleranceTypes {
				got, err := ResolveTolerance(base, factor, tt)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, MinResolvedTolerance)
				assert.LessOrEqual(t, got, MaxResolvedTolerance)
				assert.GreaterOrEqual(t, got, prev, "tolerance must not shrink as the multiplier grows")
				prev = got
			}
		}
	}
}

func TestResolveToleranceUnknownType(t *testing.T) {
	_, err := ResolveTolerance(0.01, 1, "HUGE")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestVolatilityFactorZeroVolatility(t *testing.T) {
	factor, fallback := VolatilityFactor(flatBars(60, 100), 14)
	assert.False(t, fallback)
	assert.Equal(t, MinVolatilityFactor, factor)

	spec, err := NewToleranceCalculator(nil).Calculate(context.Background(), ToleranceRequest{
		Bars: flatBars(60, 100), Type: domain.ToleranceStandard, BaseTolerance: 0.02, ATRPeriod: 14,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, spec.VolatilityFactor)
	assert.InDelta(t, 0.01, spec.ResolvedTolerance, 1e-12)
}

func TestVolatilityFactorFallsBackOnShortWindow(t *testing.T) {
	factor, fallback := VolatilityFactor(flatBars(13, 100), 14)
	assert.True(t, fallback)
	assert.Equal(t, 1.0, factor)

	calc := NewToleranceCalculator(nil)
	spec, err := calc.Calculate(context.Background(), ToleranceRequest{
		Bars: waveBars(10), Type: domain.ToleranceWide, BaseTolerance: 0.01, ATRPeriod: 14,
	})
	require.NoError(t, err)
	assert.True(t, spec.Fallback)
	assert.InDelta(t, 0.02, spec.ResolvedTolerance, 1e-12)

	_, err = calc.Calculate(context.Background(), ToleranceRequest{
		Bars: waveBars(10), Type: domain.ToleranceWide, BaseTolerance: 0.01, ATRPeriod: 14, RequireVolatility: true,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestVolatilityFactorSkipsNaNBars(t *testing.T) {
	bars := waveBars(20)
	for i := 2; i < 12; i++ {
		bars[i].High = math.NaN()
	}
	_, fallback := VolatilityFactor(bars, 14)
	assert.True(t, fallback, "10 usable bars is below the minimum")

	bars = waveBars(20)
	for i := 2; i < 5; i++ {
		bars[i].Close = math.NaN()
	}
	factor, fallback := VolatilityFactor(bars, 14)
	assert.False(t, fallback)
	assert.False(t, math.IsNaN(factor))
}

func TestVolatilityFactorRisesWithRecentVolatility(t *testing.T) {
	spreads := make([]float64, 70)
	for i := range spreads {
		spreads[i] = 1
		if i >= 50 {
			spreads[i] = 4
		}
	}
	factor, fallback := VolatilityFactor(rangeBars(spreads), 14)
	assert.False(t, fallback)
	assert.Greater(t, factor, 1.5)
	assert.LessOrEqual(t, factor, MaxVolatilityFactor)
}

func TestVolatilityFactorIgnoresSingleOldSpike(t *testing.T) {
	spreads := make([]float64, 100)
	for i := range spreads {
		spreads[i] = 1
	}
	spreads[40] = 200
	factor, _ := VolatilityFactor(rangeBars(spreads), 14)
	assert.Less(t, factor, MaxVolatilityFactor)
}

func TestToleranceCalculatorUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := newCountingCache()
	calc := NewToleranceCalculator(cache)
	req := ToleranceRequest{
		Symbol: "BTCUSDT", Timeframe: "1h", Bars: waveBars(40),
		Type: domain.ToleranceStandard, BaseTolerance: 0.02, ATRPeriod: 14,
	}

	first, err := calc.Calculate(ctx, req)
	require.NoError(t, err)
	second, err := calc.Calculate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)

	// a changed bar is a new key
	req.Bars = waveBars(40)
	req.Bars[39].Close += 0.01
	_, err = calc.Calculate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 2, cache.sets)
}

func TestToleranceCalculatorRejectsBadConfig(t *testing.T) {
	calc := NewToleranceCalculator(nil)
	ctx := context.Background()

	_, err := calc.Calculate(ctx, ToleranceRequest{Bars: waveBars(20), Type: "NARROW", BaseTolerance: 0.01, ATRPeriod: 14})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = calc.Calculate(ctx, ToleranceRequest{Bars: waveBars(20), Type: domain.ToleranceTight, BaseTolerance: -1, ATRPeriod: 14})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = calc.Calculate(ctx, ToleranceRequest{Bars: waveBars(20), Type: domain.ToleranceTight, BaseTolerance: 0.01})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestWindowHash(t *testing.T) {
	a := waveBars(30)
	b := waveBars(30)
	assert.Equal(t, WindowHash(a), WindowHash(b))

	b[10].Volume++
	assert.NotEqual(t, WindowHash(a), WindowHash(b))
	assert.NotEqual(t, WindowHash(a), WindowHash(a[1:]))
}
