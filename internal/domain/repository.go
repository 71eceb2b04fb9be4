package domain

import (
	"context"
	"time"
)

// AnalysisRepository holds the latest analysis per symbol.
type AnalysisRepository interface {
	Save(ctx context.Context, result AnalysisResult) error
	Get(ctx context.Context, symbol string) (AnalysisResult, bool, error)
	List(ctx context.Context) ([]AnalysisResult, error)
}

// ToleranceKey identifies a memoised tolerance computation. WindowHash changes
// whenever any bar in the window changes, so stale entries are never served.
type ToleranceKey struct {
	Symbol        string
	Timeframe     string
	WindowHash    uint64
	Type          ToleranceType
	BaseTolerance float64
	ATRPeriod     int
}

// ToleranceCache memoises tolerance results. Implementations must be safe for
// concurrent use.
type ToleranceCache interface {
	Get(ctx context.Context, key ToleranceKey) (ToleranceSpec, bool)
	Set(ctx context.Context, key ToleranceKey, spec ToleranceSpec)
}

// BarSource fetches bar history from a market data provider.
type BarSource interface {
	Bars(ctx context.Context, symbol, timeframe string, limit int) ([]PriceBar, error)
}

// AnalysisPublisher fans an analysis out to subscribers.
type AnalysisPublisher interface {
	Publish(ctx context.Context, result AnalysisResult) error
}

// Notifier pushes a message to registered devices.
type Notifier interface {
	IsEnabled() bool
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// DeviceToken is a registered push notification target.
type DeviceToken struct {
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeviceRepository stores push notification targets.
type DeviceRepository interface {
	Register(token, platform string, at time.Time)
	Unregister(token string) bool
	Tokens() []string
	Count() int
}
