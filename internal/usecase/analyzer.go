package usecase

import (
	"context"
	"fmt"
	"sync"

	"confluence-backend/internal/domain"
)

const maxConcurrentFrames = 4

// Analyzer runs the full level pipeline for one symbol across timeframes. It holds
// no per-call state; concurrent calls are safe.
type Analyzer struct {
	tolerance *ToleranceCalculator
	levels    *LevelGenerator
	defaults  domain.AnalysisConfig
}

func NewAnalyzer(levels *LevelGenerator, cache domain.ToleranceCache, defaults domain.AnalysisConfig) *Analyzer {
	return &Analyzer{
		tolerance: NewToleranceCalculator(cache),
		levels:    levels,
		defaults:  defaults.WithDefaults(domain.DefaultAnalysisConfig()),
	}
}

// Defaults returns the configuration applied to unset request fields.
func (a *Analyzer) Defaults() domain.AnalysisConfig {
	return a.defaults
}

type frameResult struct {
	detail domain.TimeframeAnalysis
	window []domain.PriceBar
	err    error
}

// Analyze validates the input, computes every timeframe and assembles the result.
// The same input always yields the same result.
func (a *Analyzer) Analyze(ctx context.Context, in domain.AnalysisInput) (domain.AnalysisResult, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: symbol is required", domain.ErrMalformedInput)
	}
	cfg := in.Config.WithDefaults(a.defaults)
	if err := cfg.Validate(); err != nil {
		return domain.AnalysisResult{}, err
	}
	if err := domain.ValidateSeries(in.Bars); err != nil {
		return domain.AnalysisResult{}, err
	}
	for tf, frame := range in.Frames {
		if err := domain.ValidateSeries(frame); err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("timeframe %s: %w", tf, err)
		}
	}

	results := make([]frameResult, len(cfg.Timeframes))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFrames)
	for i, tf := range cfg.Timeframes {
		wg.Add(1)
		go func(i int, tf string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i].err = err
				return
			}
			results[i] = a.analyzeFrame(ctx, symbol, tf, in, cfg)
		}(i, tf)
	}
	wg.Wait()

	for i, r := range results {
		if r.err != nil {
			return domain.AnalysisResult{}, fmt.Errorf("timeframe %s: %w", cfg.Timeframes[i], r.err)
		}
	}
	return a.assemble(symbol, cfg, in.Bars, results), nil
}

func (a *Analyzer) analyzeFrame(ctx context.Context, symbol, tf string, in domain.AnalysisInput, cfg domain.AnalysisConfig) frameResult {
	series, ok := in.Frames[tf]
	if !ok {
		d, err := domain.ParseTimeframe(tf)
		if err != nil {
			return frameResult{err: err}
		}
		series = Resample(in.Bars, d)
	}
	window := domain.TrailingWindow(series, cfg.Window)
	if len(window) < 2 {
		return frameResult{err: fmt.Errorf("%w: %d bars available, need at least 2", domain.ErrInsufficientData, len(window))}
	}

	pair, err := SwingDetector{Source: cfg.SwingSource}.Detect(window)
	if err != nil {
		return frameResult{err: err}
	}
	// A flat window has no range to project levels from.
	if !(pair.Range() > 0) {
		return frameResult{err: fmt.Errorf("%w: swing range is zero over %d bars", domain.ErrInsufficientData, len(window))}
	}
	tol, err := a.tolerance.Calculate(ctx, ToleranceRequest{
		Symbol:            symbol,
		Timeframe:         tf,
		Bars:              window,
		Type:              cfg.ToleranceType,
		BaseTolerance:     cfg.BaseTolerance,
		ATRPeriod:         cfg.ATRPeriod,
		RequireVolatility: cfg.RequireVolatility,
	})
	if err != nil {
		return frameResult{err: err}
	}

	levels := a.levels.Generate(pair, tf)
	signals := SignalDetector{RecentBars: cfg.RecentBars}.Detect(window, levels, tol, tf)

	return frameResult{
		window: window,
		detail: domain.TimeframeAnalysis{
			Timeframe: tf,
			Bars:      len(window),
			Price:     domain.LastClose(window),
			SwingHigh: pair.High,
			SwingLow:  pair.Low,
			Active:    pair.Active,
			Tolerance: tol,
			Levels:    levels,
			Signals:   signals,
		},
	}
}

func (a *Analyzer) assemble(symbol string, cfg domain.AnalysisConfig, base []domain.PriceBar, results []frameResult) domain.AnalysisResult {
	primary := results[0]
	res := domain.AnalysisResult{
		Symbol:          symbol,
		Price:           primary.detail.Price,
		AsOf:            primary.window[len(primary.window)-1].Timestamp,
		SwingHigh:       primary.detail.SwingHigh.Price,
		SwingLow:        primary.detail.SwingLow.Price,
		SwingRange:      primary.detail.SwingHigh.Price - primary.detail.SwingLow.Price,
		Levels:          make([]domain.FibonacciLevel, 0),
		Signals:         make([]domain.Signal, 0),
		Timeframes:      make([]domain.TimeframeAnalysis, 0, len(results)),
		ConfluenceZones: make([]domain.ConfluenceZone, 0),
	}

	if n := len(base); n > 0 && base[n-1].Timestamp.After(res.AsOf) {
		res.AsOf = base[n-1].Timestamp
	}

	var zoneLevels []ZoneLevel
	for _, r := range results {
		last := r.window[len(r.window)-1].Timestamp
		if last.After(res.AsOf) {
			res.AsOf = last
		}
		res.Timeframes = append(res.Timeframes, r.detail)
		res.Levels = append(res.Levels, r.detail.Levels...)
		res.Signals = append(res.Signals, r.detail.Signals...)
		for _, l := range r.detail.Levels {
			zoneLevels = append(zoneLevels, ZoneLevel{Level: l, Tolerance: r.detail.Tolerance.ResolvedTolerance})
		}
	}

	res.ConfluenceZones = ConfluenceScorer{MinZoneLevels: cfg.MinZoneLevels}.Score(zoneLevels, res.Signals)
	res.Signals = append(res.Signals, AlignSignals(res.Signals)...)

	res.Summary = domain.Summary{
		TotalSignals:        len(res.Signals),
		ConfluenceZoneCount: len(res.ConfluenceZones),
		TimeframesAnalyzed:  append([]string(nil), cfg.Timeframes...),
	}
	if len(res.ConfluenceZones) > 0 {
		strongest := res.ConfluenceZones[0]
		res.Summary.StrongestZone = &strongest
	}
	return res
}
