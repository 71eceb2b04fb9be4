package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/metrics"
)

// AnalysisService wraps the pure Analyzer with metrics, storage of the latest
// result per symbol and fan-out to subscribers.
type AnalysisService struct {
	analyzer  *Analyzer
	store     domain.AnalysisRepository
	mirrors   []domain.AnalysisRepository
	publisher domain.AnalysisPublisher
	logger    *logrus.Entry
}

// NewAnalysisService builds the service. store answers reads; mirrors only
// receive writes and their failures are logged, not returned.
func NewAnalysisService(analyzer *Analyzer, store domain.AnalysisRepository, logger *logrus.Logger) *AnalysisService {
	return &AnalysisService{
		analyzer: analyzer,
		store:    store,
		logger:   logger.WithField("component", "analysis"),
	}
}

// WithMirror adds a write-only copy of every stored analysis.
func (s *AnalysisService) WithMirror(repo domain.AnalysisRepository) *AnalysisService {
	if repo != nil {
		s.mirrors = append(s.mirrors, repo)
	}
	return s
}

// WithPublisher sets where stored analyses are published.
func (s *AnalysisService) WithPublisher(p domain.AnalysisPublisher) *AnalysisService {
	s.publisher = p
	return s
}

// Defaults returns the engine configuration defaults.
func (s *AnalysisService) Defaults() domain.AnalysisConfig {
	return s.analyzer.Defaults()
}

// Analyze runs one analysis without storing it.
func (s *AnalysisService) Analyze(ctx context.Context, in domain.AnalysisInput) (domain.AnalysisResult, error) {
	start := time.Now()
	res, err := s.analyzer.Analyze(ctx, in)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return domain.AnalysisResult{}, err
	}

	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	for _, sig := range res.Signals {
		metrics.SignalsDetected.WithLabelValues(sig.Timeframe, string(sig.Category)).Inc()
	}
	for _, z := range res.ConfluenceZones {
		metrics.ZonesDetected.WithLabelValues(string(z.Strength)).Inc()
	}
	return res, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, domain.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

// Store saves res as the latest analysis for its symbol, copies it to the
// mirrors and publishes it.
func (s *AnalysisService) Store(ctx context.Context, res domain.AnalysisResult) error {
	if err := s.store.Save(ctx, res); err != nil {
		return fmt.Errorf("save analysis %s: %w", res.Symbol, err)
	}

	log := s.logger.WithField("symbol", res.Symbol)
	for _, m := range s.mirrors {
		if err := m.Save(ctx, res); err != nil {
			log.WithError(err).Warn("mirror save failed")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, res); err != nil {
			log.WithError(err).Warn("publish failed")
		}
	}
	return nil
}

// Latest returns the stored analysis for symbol.
func (s *AnalysisService) Latest(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error) {
	return s.store.Get(ctx, symbol)
}

// All returns every stored analysis ordered by symbol.
func (s *AnalysisService) All(ctx context.Context) ([]domain.AnalysisResult, error) {
	return s.store.List(ctx)
}
