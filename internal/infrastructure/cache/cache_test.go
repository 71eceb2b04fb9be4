package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/domain"
)

func testKey(hash uint64) domain.ToleranceKey {
	return domain.ToleranceKey{
		Symbol:        "BTCUSDT",
		Timeframe:     "1h",
		WindowHash:    hash,
		Type:          domain.ToleranceStandard,
		BaseTolerance: 0.02,
		ATRPeriod:     14,
	}
}

func TestMemoryToleranceCache_SetGet(t *testing.T) {
	c := NewMemoryToleranceCache(time.Minute, 10)
	ctx := context.Background()

	_, ok := c.Get(ctx, testKey(1))
	assert.False(t, ok)

	spec := domain.ToleranceSpec{BaseTolerance: 0.02, Type: domain.ToleranceStandard, VolatilityFactor: 1.2, ResolvedTolerance: 0.024}
	c.Set(ctx, testKey(1), spec)

	got, ok := c.Get(ctx, testKey(1))
	require.True(t, ok)
	assert.Equal(t, spec, got)

	_, ok = c.Get(ctx, testKey(2))
	assert.False(t, ok, "different window hash must miss")
}

func TestMemoryToleranceCache_Expiry(t *testing.T) {
	c := NewMemoryToleranceCache(time.Minute, 10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, testKey(1), domain.ToleranceSpec{ResolvedTolerance: 0.01})
	now = now.Add(2 * time.Minute)

	_, ok := c.Get(ctx, testKey(1))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryToleranceCache_Bounded(t *testing.T) {
	c := NewMemoryToleranceCache(time.Hour, 3)
	ctx := context.Background()

	for i := uint64(0); i < 10; i++ {
		c.Set(ctx, testKey(i), domain.ToleranceSpec{})
	}
	assert.LessOrEqual(t, c.Len(), 3)
	_, ok := c.Get(ctx, testKey(9))
	assert.True(t, ok, "latest entry survives the reset")
}

func TestToleranceKeyString(t *testing.T) {
	k := testKey(0xabc)
	assert.Equal(t, "tolerance:BTCUSDT:1h:0000000000000abc:STANDARD:0.02:14", ToleranceKeyString(k))

	k2 := k
	k2.ATRPeriod = 21
	assert.NotEqual(t, ToleranceKeyString(k), ToleranceKeyString(k2))
}
