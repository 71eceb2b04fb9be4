package domain

import (
	"fmt"
	"strings"
)

// ZoneStrength is the label derived from a confluence score.
type ZoneStrength string

const (
	ZoneVeryStrong  ZoneStrength = "VERY_STRONG"
	ZoneStrong      ZoneStrength = "STRONG"
	ZoneSignificant ZoneStrength = "SIGNIFICANT"
	ZoneWeak        ZoneStrength = "WEAK"
)

// ParseZoneStrength accepts any casing of a known zone strength.
func ParseZoneStrength(s string) (ZoneStrength, error) {
	z := ZoneStrength(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	if z.Rank() == 0 {
		return "", fmt.Errorf("%w: unknown zone strength %q", ErrInvalidConfiguration, s)
	}
	return z, nil
}

// Rank orders strengths from WEAK (1) to VERY_STRONG (4); unknown values are 0.
func (z ZoneStrength) Rank() int {
	switch z {
	case ZoneVeryStrong:
		return 4
	case ZoneStrong:
		return 3
	case ZoneSignificant:
		return 2
	case ZoneWeak:
		return 1
	}
	return 0
}

// AtLeast reports whether z ranks at or above min.
func (z ZoneStrength) AtLeast(min ZoneStrength) bool {
	return z.Rank() >= min.Rank() && z.Rank() > 0
}

// ZoneStrengthForScore applies the fixed score thresholds.
func ZoneStrengthForScore(score float64) ZoneStrength {
	switch {
	case score >= 0.75:
		return ZoneVeryStrong
	case score >= 0.55:
		return ZoneStrong
	case score >= 0.35:
		return ZoneSignificant
	default:
		return ZoneWeak
	}
}

// ConfluenceZone is a price band where levels from one or more timeframes overlap.
type ConfluenceZone struct {
	CenterPrice           float64      `json:"centerPrice"`
	LowerPrice            float64      `json:"lowerPrice"`
	UpperPrice            float64      `json:"upperPrice"`
	ContributingLevelKeys []string     `json:"contributingLevelKeys"`
	Timeframes            []string     `json:"timeframes"`
	SignalCount           int          `json:"signalCount"`
	Strength              ZoneStrength `json:"strength"`
	ConfluenceScore       float64      `json:"confluenceScore"`
}

// Contains reports whether price lies inside the zone band.
func (z ConfluenceZone) Contains(price float64) bool {
	return price >= z.LowerPrice && price <= z.UpperPrice
}
