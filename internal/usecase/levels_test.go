package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/domain"
)

func swingPair(low, high float64, active domain.SwingKind) domain.SwingPair {
	return domain.SwingPair{
		High:   domain.SwingPoint{Price: high, Kind: domain.SwingHigh},
		Low:    domain.SwingPoint{Price: low, Kind: domain.SwingLow},
		Active: active,
	}
}

func levelsByKey(levels []domain.FibonacciLevel) map[string]domain.FibonacciLevel {
	out := make(map[string]domain.FibonacciLevel, len(levels))
	for _, l := range levels {
		out[l.Key] = l
	}
	return out
}

func TestLevelGeneratorDefaultTable(t *testing.T) {
	gen, err := NewLevelGenerator(nil)
	require.NoError(t, err)

	levels := gen.Generate(swingPair(100, 200, domain.SwingHigh), "4h")
	require.Len(t, levels, 11)

	for i := 1; i < len(levels); i++ {
		assert.LessOrEqual(t, levels[i-1].Ratio, levels[i].Ratio)
	}

	byKey := levelsByKey(levels)
	assert.InDelta(t, 100.0, byKey["RET_0"].Price, 1e-9)
	assert.InDelta(t, 161.8, byKey["RET_618"].Price, 1e-9)
	assert.InDelta(t, 200.0, byKey["RET_1000"].Price, 1e-9)
	assert.InDelta(t, 261.8, byKey["EXT_1618"].Price, 1e-9)
	assert.Equal(t, domain.StrengthStrong, byKey["RET_618"].Strength)
	assert.Equal(t, domain.LevelExtension, byKey["EXT_1618"].Kind)
	assert.Equal(t, "4h", byKey["RET_500"].Timeframe)
	assert.Equal(t, "4h:RET_500", byKey["RET_500"].QualifiedKey())
}

func TestLevelGeneratorExtensionsFollowActiveLow(t *testing.T) {
	gen, err := NewLevelGenerator(nil)
	require.NoError(t, err)

	byKey := levelsByKey(gen.Generate(swingPair(100, 200, domain.SwingLow), "1h"))
	assert.InDelta(t, 72.8, byKey["EXT_1272"].Price, 1e-9)
	assert.InDelta(t, 38.2, byKey["EXT_1618"].Price, 1e-9)
	assert.InDelta(t, 161.8, byKey["RET_618"].Price, 1e-9)
}

func TestLevelGeneratorDropsNonPositiveProjections(t *testing.T) {
	gen, err := NewLevelGenerator(nil)
	require.NoError(t, err)

	levels := gen.Generate(swingPair(10, 100, domain.SwingLow), "1d")
	assert.Len(t, levels, 7)
	for _, l := range levels {
		assert.Equal(t, domain.LevelRetrace, l.Kind)
	}
}

func TestLevelGeneratorCustomTable(t *testing.T) {
	gen, err := NewLevelGenerator([]domain.RatioSpec{
		{Key: "EXT_1500", Ratio: 1.5, Kind: domain.LevelExtension, Strength: domain.StrengthWeak},
		{Key: "MID", Name: "Midpoint", Ratio: 0.5, Kind: domain.LevelRetrace, Strength: domain.StrengthStrong},
	})
	require.NoError(t, err)

	levels := gen.Generate(swingPair(0.5, 1.5, domain.SwingHigh), "1h")
	require.Len(t, levels, 2)
	assert.Equal(t, "MID", levels[0].Key)
	assert.Equal(t, "Midpoint", levels[0].Name)
	assert.Equal(t, "EXT_1500", levels[1].Name, "rows without a name use the key")
	assert.InDelta(t, 2.0, levels[1].Price, 1e-9)
}

func TestLevelGeneratorRejectsInvalidTable(t *testing.T) {
	_, err := NewLevelGenerator([]domain.RatioSpec{
		{Key: "BAD", Ratio: 0.9, Kind: domain.LevelExtension, Strength: domain.StrengthWeak},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
