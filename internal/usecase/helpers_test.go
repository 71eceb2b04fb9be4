package usecase

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// closesToBars builds hourly bars with a fixed 1.0 high-low spread.
func closesToBars(closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = domain.PriceBar{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, c) + 0.5,
			Low:       math.Min(open, c) - 0.5,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

// flatBars returns n identical bars.
func flatBars(n int, price float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return bars
}

// rangeBars returns bars around a constant close whose high-low spread is given
// per bar.
func rangeBars(spreads []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(spreads))
	for i, s := range spreads {
		bars[i] = domain.PriceBar{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 100 + s/2, Low: 100 - s/2, Close: 100, Volume: 1,
		}
	}
	return bars
}

// waveBars is a deterministic trending sine wave of hourly bars.
func waveBars(n int) []domain.PriceBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/20) + float64(i)*0.05
	}
	return closesToBars(closes...)
}

type countingCache struct {
	mu    sync.Mutex
	items map[domain.ToleranceKey]domain.ToleranceSpec
	hits  int
	sets  int
}

func newCountingCache() *countingCache {
	return &countingCache{items: make(map[domain.ToleranceKey]domain.ToleranceSpec)}
}

func (c *countingCache) Get(_ context.Context, key domain.ToleranceKey) (domain.ToleranceSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.items[key]
	if ok {
		c.hits++
	}
	return spec, ok
}

func (c *countingCache) Set(_ context.Context, key domain.ToleranceKey, spec domain.ToleranceSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = spec
	c.sets++
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeNotifier struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    []string
	tokens  [][]string
}

func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func (f *fakeNotifier) SendMulticast(_ context.Context, tokens []string, title, _ string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, title)
	f.tokens = append(f.tokens, tokens)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, res domain.AnalysisResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, res.Symbol)
	return p.err
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, domain.AnalysisResult) error {
	return errors.New("unavailable")
}

func (failingRepo) Get(context.Context, string) (domain.AnalysisResult, bool, error) {
	return domain.AnalysisResult{}, false, errors.New("unavailable")
}

func (failingRepo) List(context.Context) ([]domain.AnalysisResult, error) {
	return nil, errors.New("unavailable")
}
