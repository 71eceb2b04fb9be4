package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/metrics"
)

// recordRetention bounds how long auto-recorded signal keys are remembered.
const recordRetention = 48 * time.Hour

// Scanner periodically analyses a fixed symbol list from a BarSource, stores
// and publishes each result, and optionally notifies devices and records
// fresh signals for performance tracking.
type Scanner struct {
	source   domain.BarSource
	service  *AnalysisService
	notifier *ZoneNotifier
	tracker  *PerformanceTracker
	cfg      config.ScannerConfig
	logger   *logrus.Entry

	recorded map[string]time.Time
	mu       sync.Mutex
}

// ScanReport summarises one pass over the symbol list.
type ScanReport struct {
	Analyzed int
	Failed   int
	Notified int
	Recorded int
	Duration time.Duration
}

func NewScanner(source domain.BarSource, service *AnalysisService, cfg config.ScannerConfig, logger *logrus.Logger) *Scanner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scanner{
		source:   source,
		service:  service,
		cfg:      cfg,
		logger:   logger.WithField("component", "scanner"),
		recorded: make(map[string]time.Time),
	}
}

// WithNotifier enables push notifications for qualifying zones.
func (s *Scanner) WithNotifier(n *ZoneNotifier) *Scanner {
	s.notifier = n
	return s
}

// WithTracker enables auto-recording of fresh signals when configured.
func (s *Scanner) WithTracker(t *PerformanceTracker) *Scanner {
	s.tracker = t
	return s
}

// Run scans immediately and then on every interval until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"symbols":  len(s.cfg.Symbols),
		"interval": s.cfg.Interval,
	}).Info("Scanner started")

	s.ScanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce analyses every configured symbol with bounded concurrency.
func (s *Scanner) ScanOnce(ctx context.Context) ScanReport {
	start := time.Now()
	var (
		report ScanReport
		wg     sync.WaitGroup
		mu     sync.Mutex
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for _, sym := range s.cfg.Symbols {
		symbol := domain.NormalizeSymbol(sym)
		if symbol == "" {
			continue
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			notified, recorded, err := s.scanSymbol(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				metrics.ScanCycles.WithLabelValues(symbol, "error").Inc()
				s.logger.WithError(err).WithField("symbol", symbol).Warn("scan failed")
				return
			}
			report.Analyzed++
			report.Recorded += recorded
			if notified {
				report.Notified++
			}
			metrics.ScanCycles.WithLabelValues(symbol, "ok").Inc()
		}(symbol)
	}
	wg.Wait()

	s.pruneRecorded(time.Now())
	report.Duration = time.Since(start)
	s.logger.WithFields(logrus.Fields{
		"analyzed": report.Analyzed,
		"failed":   report.Failed,
		"notified": report.Notified,
		"recorded": report.Recorded,
		"duration": report.Duration,
	}).Info("Scan cycle completed")
	return report
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (bool, int, error) {
	in, err := s.fetchInput(ctx, symbol)
	if err != nil {
		return false, 0, err
	}

	res, err := s.service.Analyze(ctx, in)
	if err != nil {
		return false, 0, err
	}
	if err := s.service.Store(ctx, res); err != nil {
		return false, 0, err
	}

	notified := false
	if s.notifier != nil {
		notified = s.notifier.Notify(ctx, res)
	}
	recorded := 0
	if s.cfg.AutoRecord && s.tracker != nil {
		recorded = s.recordSignals(ctx, res)
	}
	return notified, recorded, nil
}

// fetchInput loads the base series plus one explicit series per configured
// timeframe, so higher frames are not limited by the base history.
func (s *Scanner) fetchInput(ctx context.Context, symbol string) (domain.AnalysisInput, error) {
	base, err := s.source.Bars(ctx, symbol, s.cfg.BaseTimeframe, s.cfg.BarLimit)
	if err != nil {
		return domain.AnalysisInput{}, err
	}

	defaults := s.service.Defaults()
	frames := make(map[string][]domain.PriceBar, len(defaults.Timeframes))
	for _, tf := range defaults.Timeframes {
		if strings.EqualFold(tf, s.cfg.BaseTimeframe) {
			frames[tf] = base
			continue
		}
		bars, err := s.source.Bars(ctx, symbol, tf, defaults.Window)
		if err != nil {
			return domain.AnalysisInput{}, fmt.Errorf("timeframe %s: %w", tf, err)
		}
		frames[tf] = bars
	}

	return domain.AnalysisInput{Symbol: symbol, Bars: base, Frames: frames}, nil
}

// recordSignals logs fresh level signals once each. Alignment signals
// summarise others and are not tracked.
func (s *Scanner) recordSignals(ctx context.Context, res domain.AnalysisResult) int {
	count := 0
	for _, sig := range res.Signals {
		if sig.Category == domain.CategoryMultiTimeframeAlignment || sig.BarsAgo != 0 {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s|%d", res.Symbol, sig.Timeframe, sig.LevelKey, sig.DetectedAt.UnixNano())

		s.mu.Lock()
		_, seen := s.recorded[key]
		if !seen {
			s.recorded[key] = sig.DetectedAt
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		_, err := s.tracker.Record(ctx, sig, res.Symbol, map[string]string{"source": "scanner"})
		if err != nil {
			s.logger.WithError(err).WithField("symbol", res.Symbol).Warn("auto-record failed")
			s.mu.Lock()
			delete(s.recorded, key)
			s.mu.Unlock()
			continue
		}
		count++
	}
	return count
}

func (s *Scanner) pruneRecorded(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.recorded {
		if now.Sub(at) > recordRetention {
			delete(s.recorded, k)
		}
	}
}
