package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneStrengthForScore(t *testing.T) {
	cases := map[float64]ZoneStrength{
		0.95: ZoneVeryStrong,
		0.75: ZoneVeryStrong,
		0.74: ZoneStrong,
		0.55: ZoneStrong,
		0.35: ZoneSignificant,
		0.34: ZoneWeak,
		0:    ZoneWeak,
	}
	for score, want := range cases {
		assert.Equal(t, want, ZoneStrengthForScore(score), "score %v", score)
	}
}

func TestParseZoneStrength(t *testing.T) {
	z, err := ParseZoneStrength("very-strong")
	require.NoError(t, err)
	assert.Equal(t, ZoneVeryStrong, z)

	_, err = ParseZoneStrength("huge")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestZoneStrengthAtLeast(t *testing.T) {
	assert.True(t, ZoneVeryStrong.AtLeast(ZoneStrong))
	assert.True(t, ZoneStrong.AtLeast(ZoneStrong))
	assert.False(t, ZoneSignificant.AtLeast(ZoneStrong))
	assert.False(t, ZoneStrength("").AtLeast(ZoneWeak))
}

func TestConfluenceZoneContains(t *testing.T) {
	z := ConfluenceZone{LowerPrice: 99, UpperPrice: 101}
	assert.True(t, z.Contains(99))
	assert.True(t, z.Contains(101))
	assert.False(t, z.Contains(101.01))
}
