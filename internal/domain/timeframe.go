package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe converts labels such as "15m", "4h", "1d" or "1w" into a duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	tf = strings.TrimSpace(strings.ToLower(tf))
	if len(tf) < 2 {
		return 0, fmt.Errorf("%w: timeframe %q", ErrInvalidConfiguration, tf)
	}

	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: timeframe %q", ErrInvalidConfiguration, tf)
	}

	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: timeframe %q has unknown unit", ErrInvalidConfiguration, tf)
	}
	return time.Duration(n) * unit, nil
}
