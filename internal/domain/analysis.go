package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// SwingSource selects which price field the swing detector scans.
type SwingSource string

const (
	SwingSourceClose   SwingSource = "CLOSE"
	SwingSourceHighLow SwingSource = "HIGH_LOW"
)

// Engine defaults.
const (
	DefaultBaseTolerance = 0.02
	DefaultATRPeriod     = 14
	DefaultWindow        = 150
	DefaultRecentBars    = 1
	DefaultMinZoneLevels = 2

	// MaxBaseTolerance bounds the configurable base tolerance. Anything wider would
	// always clamp to the resolved upper bound.
	MaxBaseTolerance = 0.1
)

// DefaultTimeframes is the timeframe set analysed when none is configured.
var DefaultTimeframes = []string{"1h", "4h", "1d"}

// AnalysisConfig tunes one analysis run.
type AnalysisConfig struct {
	ToleranceType     ToleranceType `json:"toleranceType,omitempty"`
	BaseTolerance     float64       `json:"baseTolerance,omitempty"`
	ATRPeriod         int           `json:"atrPeriod,omitempty"`
	Window            int           `json:"window,omitempty"`
	Timeframes        []string      `json:"timeframes,omitempty"`
	SwingSource       SwingSource   `json:"swingSource,omitempty"`
	RecentBars        int           `json:"recentBars,omitempty"`
	MinZoneLevels     int           `json:"minZoneLevels,omitempty"`
	RequireVolatility bool          `json:"requireVolatility,omitempty"`
}

// DefaultAnalysisConfig returns the engine defaults.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ToleranceType: ToleranceStandard,
		BaseTolerance: DefaultBaseTolerance,
		ATRPeriod:     DefaultATRPeriod,
		Window:        DefaultWindow,
		Timeframes:    append([]string(nil), DefaultTimeframes...),
		SwingSource:   SwingSourceClose,
		RecentBars:    DefaultRecentBars,
		MinZoneLevels: DefaultMinZoneLevels,
	}
}

// WithDefaults fills zero-valued fields from def. An explicitly empty but non-nil
// Timeframes slice is kept so Validate can reject it.
func (c AnalysisConfig) WithDefaults(def AnalysisConfig) AnalysisConfig {
	if c.ToleranceType == "" {
		c.ToleranceType = def.ToleranceType
	}
	if c.BaseTolerance == 0 {
		c.BaseTolerance = def.BaseTolerance
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = def.ATRPeriod
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.Timeframes == nil {
		c.Timeframes = append([]string(nil), def.Timeframes...)
	}
	if c.SwingSource == "" {
		c.SwingSource = def.SwingSource
	}
	if c.RecentBars == 0 {
		c.RecentBars = def.RecentBars
	}
	if c.MinZoneLevels == 0 {
		c.MinZoneLevels = def.MinZoneLevels
	}
	return c
}

// Validate rejects configurations the engine cannot run with.
func (c AnalysisConfig) Validate() error {
	if _, err := c.ToleranceType.Multiplier(); err != nil {
		return err
	}
	if math.IsNaN(c.BaseTolerance) || c.BaseTolerance <= 0 || c.BaseTolerance > MaxBaseTolerance {
		return fmt.Errorf("%w: base tolerance %g outside (0, %g]", ErrInvalidConfiguration, c.BaseTolerance, MaxBaseTolerance)
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("%w: atr period %d", ErrInvalidConfiguration, c.ATRPeriod)
	}
	if c.Window < 2 {
		return fmt.Errorf("%w: window %d, need at least 2 bars", ErrInvalidConfiguration, c.Window)
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("%w: empty timeframe list", ErrInvalidConfiguration)
	}
	seen := make(map[string]struct{}, len(c.Timeframes))
	for _, tf := range c.Timeframes {
		if _, err := ParseTimeframe(tf); err != nil {
			return err
		}
		if _, dup := seen[tf]; dup {
			return fmt.Errorf("%w: duplicate timeframe %q", ErrInvalidConfiguration, tf)
		}
		seen[tf] = struct{}{}
	}
	switch c.SwingSource {
	case SwingSourceClose, SwingSourceHighLow:
	default:
		return fmt.Errorf("%w: unknown swing source %q", ErrInvalidConfiguration, c.SwingSource)
	}
	if c.RecentBars < 1 {
		return fmt.Errorf("%w: recent bars %d", ErrInvalidConfiguration, c.RecentBars)
	}
	if c.MinZoneLevels < 1 {
		return fmt.Errorf("%w: min zone levels %d", ErrInvalidConfiguration, c.MinZoneLevels)
	}
	return nil
}

// AnalysisInput is a request to analyse one symbol. Bars is the base series; Frames
// optionally supplies a native series per timeframe, otherwise the timeframe is
// resampled from Bars.
type AnalysisInput struct {
	Symbol string                `json:"symbol"`
	Bars   []PriceBar            `json:"bars"`
	Frames map[string][]PriceBar `json:"frames,omitempty"`
	Config AnalysisConfig        `json:"config"`
}

// TimeframeAnalysis is the per-timeframe detail of a result.
type TimeframeAnalysis struct {
	Timeframe string           `json:"timeframe"`
	Bars      int              `json:"bars"`
	Price     float64          `json:"price"`
	SwingHigh SwingPoint       `json:"swingHigh"`
	SwingLow  SwingPoint       `json:"swingLow"`
	Active    SwingKind        `json:"activeSwing"`
	Tolerance ToleranceSpec    `json:"tolerance"`
	Levels    []FibonacciLevel `json:"levels"`
	Signals   []Signal         `json:"signals"`
}

// Summary condenses an analysis result.
type Summary struct {
	TotalSignals        int             `json:"totalSignals"`
	ConfluenceZoneCount int             `json:"confluenceZoneCount"`
	StrongestZone       *ConfluenceZone `json:"strongestZone"`
	TimeframesAnalyzed  []string        `json:"timeframesAnalyzed"`
}

// AnalysisResult is the structured engine output.
type AnalysisResult struct {
	Symbol          string              `json:"symbol"`
	Price           float64             `json:"price"`
	AsOf            time.Time           `json:"asOf"`
	SwingHigh       float64             `json:"swingHigh"`
	SwingLow        float64             `json:"swingLow"`
	SwingRange      float64             `json:"swingRange"`
	Levels          []FibonacciLevel    `json:"levels"`
	Signals         []Signal            `json:"signals"`
	ConfluenceZones []ConfluenceZone    `json:"confluenceZones"`
	Timeframes      []TimeframeAnalysis `json:"timeframes"`
	Summary         Summary             `json:"summary"`
}

// Truncate caps the number of levels, zones and signals, keeping the leading
// entries of each already-ordered list. A limit <= 0 leaves that list untouched.
// The summary keeps describing the full analysis.
func (r AnalysisResult) Truncate(maxLevels, maxZones, maxSignals int) AnalysisResult {
	if maxLevels > 0 && len(r.Levels) > maxLevels {
		r.Levels = r.Levels[:maxLevels:maxLevels]
	}
	if maxZones > 0 && len(r.ConfluenceZones) > maxZones {
		r.ConfluenceZones = r.ConfluenceZones[:maxZones:maxZones]
	}
	if maxSignals > 0 && len(r.Signals) > maxSignals {
		r.Signals = r.Signals[:maxSignals:maxSignals]
	}
	return r
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
