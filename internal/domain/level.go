package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SwingKind marks a swing point as a high or a low.
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// SwingPoint is a price extreme inside an analysis window.
type SwingPoint struct {
	Index     int       `json:"index"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Kind      SwingKind `json:"kind"`
}

// SwingPair holds the two endpoints anchoring the level math. Active is the more
// recent extreme, Anchor the older one.
type SwingPair struct {
	High   SwingPoint `json:"high"`
	Low    SwingPoint `json:"low"`
	Active SwingKind  `json:"active"`
}

// Range returns high - low.
func (p SwingPair) Range() float64 {
	return p.High.Price - p.Low.Price
}

// LevelKind distinguishes levels inside the swing range from projections beyond it.
type LevelKind string

const (
	LevelRetrace   LevelKind = "RETRACE"
	LevelExtension LevelKind = "EXTENSION"
)

// Strength is the fixed significance assigned to a ratio.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
)

// Strengths lists every level strength, strongest first.
var Strengths = []Strength{StrengthStrong, StrengthModerate, StrengthWeak}

// ParseStrength accepts any casing of a known strength.
func ParseStrength(s string) (Strength, error) {
	switch Strength(strings.ToUpper(strings.TrimSpace(s))) {
	case StrengthStrong:
		return StrengthStrong, nil
	case StrengthModerate:
		return StrengthModerate, nil
	case StrengthWeak:
		return StrengthWeak, nil
	}
	return "", fmt.Errorf("%w: unknown strength %q", ErrInvalidConfiguration, s)
}

// RatioSpec is one row of the level ratio table.
type RatioSpec struct {
	Key      string    `json:"key" yaml:"key"`
	Name     string    `json:"name" yaml:"name"`
	Ratio    float64   `json:"ratio" yaml:"ratio"`
	Kind     LevelKind `json:"kind" yaml:"kind"`
	Strength Strength  `json:"strength" yaml:"strength"`
}

// FibonacciLevel is a named price level derived from a swing pair.
type FibonacciLevel struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Ratio     float64   `json:"ratio"`
	Price     float64   `json:"price"`
	Kind      LevelKind `json:"kind"`
	Strength  Strength  `json:"strength"`
	Timeframe string    `json:"timeframe"`
}

// QualifiedKey identifies a level across timeframes, e.g. "4h:RET_618".
func (l FibonacciLevel) QualifiedKey() string {
	return l.Timeframe + ":" + l.Key
}

// ToleranceType selects the tolerance multiplier.
type ToleranceType string

const (
	ToleranceTight    ToleranceType = "TIGHT"
	ToleranceStandard ToleranceType = "STANDARD"
	ToleranceWide     ToleranceType = "WIDE"
	ToleranceVeryWide ToleranceType = "VERY_WIDE"
)

// ParseToleranceType accepts any casing, and "-" in place of "_".
func ParseToleranceType(s string) (ToleranceType, error) {
	t := ToleranceType(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	switch t {
	case ToleranceTight, ToleranceStandard, ToleranceWide, ToleranceVeryWide:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown tolerance type %q", ErrInvalidConfiguration, s)
}

// Multiplier returns the scale applied to the base tolerance.
func (t ToleranceType) Multiplier() (float64, error) {
	switch t {
	case ToleranceTight:
		return 0.5, nil
	case ToleranceStandard:
		return 1.0, nil
	case ToleranceWide:
		return 2.0, nil
	case ToleranceVeryWide:
		return 3.0, nil
	}
	return 0, fmt.Errorf("%w: unknown tolerance type %q", ErrInvalidConfiguration, string(t))
}

// ToleranceSpec is the resolved tolerance band for one window.
// ResolvedTolerance is a fractional price distance in [0.005, 0.05].
type ToleranceSpec struct {
	BaseTolerance     float64       `json:"baseTolerance"`
	Type              ToleranceType `json:"type"`
	VolatilityFactor  float64       `json:"volatilityFactor"`
	ResolvedTolerance float64       `json:"resolvedTolerance"`
	Fallback          bool          `json:"fallback"`
}

// DefaultRatioTable is the built-in level table.
func DefaultRatioTable() []RatioSpec {
	return []RatioSpec{
		{Key: "RET_0", Name: "0% Retracement", Ratio: 0, Kind: LevelRetrace, Strength: StrengthModerate},
		{Key: "RET_236", Name: "23.6% Retracement", Ratio: 0.236, Kind: LevelRetrace, Strength: StrengthModerate},
		{Key: "RET_382", Name: "38.2% Retracement", Ratio: 0.382, Kind: LevelRetrace, Strength: StrengthModerate},
		{Key: "RET_500", Name: "50% Retracement", Ratio: 0.5, Kind: LevelRetrace, Strength: StrengthStrong},
		{Key: "RET_618", Name: "61.8% Retracement", Ratio: 0.618, Kind: LevelRetrace, Strength: StrengthStrong},
		{Key: "RET_786", Name: "78.6% Retracement", Ratio: 0.786, Kind: LevelRetrace, Strength: StrengthStrong},
		{Key: "RET_1000", Name: "100% Retracement", Ratio: 1.0, Kind: LevelRetrace, Strength: StrengthModerate},
		{Key: "EXT_1272", Name: "127.2% Extension", Ratio: 1.272, Kind: LevelExtension, Strength: StrengthModerate},
		{Key: "EXT_1618", Name: "161.8% Extension", Ratio: 1.618, Kind: LevelExtension, Strength: StrengthStrong},
		{Key: "EXT_2000", Name: "200% Extension", Ratio: 2.0, Kind: LevelExtension, Strength: StrengthWeak},
		{Key: "EXT_2618", Name: "261.8% Extension", Ratio: 2.618, Kind: LevelExtension, Strength: StrengthWeak},
	}
}

// ValidateRatioTable checks a level table: non-empty, unique keys, retracement
// ratios in [0, 1], extension ratios above 1 and a known strength on every row.
func ValidateRatioTable(table []RatioSpec) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty level table", ErrInvalidConfiguration)
	}
	seen := make(map[string]struct{}, len(table))
	for i, r := range table {
		if strings.TrimSpace(r.Key) == "" {
			return fmt.Errorf("%w: level %d has no key", ErrInvalidConfiguration, i)
		}
		if _, dup := seen[r.Key]; dup {
			return fmt.Errorf("%w: duplicate level key %q", ErrInvalidConfiguration, r.Key)
		}
		seen[r.Key] = struct{}{}

		if math.IsNaN(r.Ratio) || math.IsInf(r.Ratio, 0) || r.Ratio < 0 {
			return fmt.Errorf("%w: level %s ratio %g", ErrInvalidConfiguration, r.Key, r.Ratio)
		}
		switch r.Kind {
		case LevelRetrace:
			if r.Ratio > 1 {
				return fmt.Errorf("%w: retracement %s ratio %g above 1", ErrInvalidConfiguration, r.Key, r.Ratio)
			}
		case LevelExtension:
			if r.Ratio <= 1 {
				return fmt.Errorf("%w: extension %s ratio %g not above 1", ErrInvalidConfiguration, r.Key, r.Ratio)
			}
		default:
			return fmt.Errorf("%w: level %s has unknown kind %q", ErrInvalidConfiguration, r.Key, r.Kind)
		}
		if _, err := ParseStrength(string(r.Strength)); err != nil {
			return fmt.Errorf("level %s: %w", r.Key, err)
		}
	}
	return nil
}
