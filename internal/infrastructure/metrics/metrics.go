package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "confluence_analyses_total", Help: "Analyses run, by outcome"},
		[]string{"outcome"},
	)
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "confluence_analysis_duration_seconds",
			Help:    "Wall time of a full multi-timeframe analysis",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
	SignalsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "confluence_signals_detected_total", Help: "Level signals detected"},
		[]string{"timeframe", "category"},
	)
	ZonesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "confluence_zones_detected_total", Help: "Confluence zones emitted"},
		[]string{"strength"},
	)
	SignalRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "confluence_signal_records_total", Help: "Signal records by lifecycle result"},
		[]string{"result"},
	)
	ScanCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "confluence_scan_symbols_total", Help: "Scanner symbol runs"},
		[]string{"symbol", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(AnalysesTotal, AnalysisDuration, SignalsDetected, ZonesDetected, SignalRecords, ScanCycles)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
