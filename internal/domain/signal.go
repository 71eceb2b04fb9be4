package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a signal. The set is closed.
type Category string

const (
	CategoryRetracement             Category = "RETRACEMENT"
	CategoryExtension               Category = "EXTENSION"
	CategoryMultiTimeframeAlignment Category = "MULTI_TIMEFRAME_ALIGNMENT"
)

// ParseCategory accepts any casing of a known category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryRetracement, CategoryExtension, CategoryMultiTimeframeAlignment:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown signal category %q", ErrInvalidConfiguration, s)
}

// CategoryForLevel maps a level kind onto the signal category it produces.
func CategoryForLevel(kind LevelKind) Category {
	if kind == LevelExtension {
		return CategoryExtension
	}
	return CategoryRetracement
}

// Signal is an observed interaction between price and a level.
type Signal struct {
	LevelKey       string    `json:"levelKey"`
	LevelName      string    `json:"levelName"`
	Timeframe      string    `json:"timeframe"`
	Category       Category  `json:"category"`
	Strength       Strength  `json:"strength"`
	DetectedAt     time.Time `json:"detectedAt"`
	Price          float64   `json:"price"`
	ReferencePrice float64   `json:"referencePrice"`
	Distance       float64   `json:"distance"`
	BarsAgo        int       `json:"barsAgo"`
	Description    string    `json:"description"`
}
