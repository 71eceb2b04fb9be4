package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
	"confluence-backend/internal/repository"
	"confluence-backend/internal/usecase"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func wave(n int) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/20) + float64(i)*0.05
		bars[i] = domain.PriceBar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      prev,
			High:      math.Max(prev, c) + 0.5,
			Low:       math.Min(prev, c) - 0.5,
			Close:     c,
			Volume:    100,
		}
		prev = c
	}
	return bars
}

type testServer struct {
	handler  http.Handler
	service  *usecase.AnalysisService
	records  *repository.InMemorySignalRecordRepository
	devices  *repository.TokenRepository
	checkErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	gen, err := usecase.NewLevelGenerator(nil)
	require.NoError(t, err)
	analyzer := usecase.NewAnalyzer(gen, nil, domain.DefaultAnalysisConfig())

	ts := &testServer{
		service: usecase.NewAnalysisService(analyzer, repository.NewInMemoryAnalysisRepository(), log),
		records: repository.NewInMemorySignalRecordRepository(),
		devices: repository.NewTokenRepository(),
	}
	ts.handler = NewRouter(RouterDeps{
		Analysis: NewAnalysisHandler(ts.service, 1<<20, log),
		Signals:  NewSignalHandler(usecase.NewPerformanceTracker(ts.records), 1<<20, log),
		Devices:  NewDeviceHandler(ts.devices, 1<<20),
		Checks: map[string]HealthCheck{
			"store": func(context.Context) error { return ts.checkErr },
		},
		Security: config.SecurityConfig{CORSOrigins: []string{"*"}, CORSMethods: []string{"GET", "POST"}},
		Metrics:  true,
		Logger:   log,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/analysis?maxLevels=3&maxZones=1", domain.AnalysisInput{
		Symbol: "btcusdt",
		Bars:   wave(400),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.LessOrEqual(t, len(res.Levels), 3)
	assert.LessOrEqual(t, len(res.ConfluenceZones), 1)
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"insufficient data", "/api/v1/analysis", domain.AnalysisInput{Symbol: "BTCUSDT", Bars: wave(1)}, http.StatusUnprocessableEntity},
		{"bad config", "/api/v1/analysis", domain.AnalysisInput{Symbol: "BTCUSDT", Bars: wave(100), Config: domain.AnalysisConfig{BaseTolerance: 0.5}}, http.StatusBadRequest},
		{"missing symbol", "/api/v1/analysis", domain.AnalysisInput{Bars: wave(100)}, http.StatusBadRequest},
		{"bad limit", "/api/v1/analysis?maxZones=-1", domain.AnalysisInput{Symbol: "BTCUSDT", Bars: wave(100)}, http.StatusBadRequest},
		{"unknown field", "/api/v1/analysis", map[string]string{"ticker": "BTC"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())

			var e ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestLatestAnalysisEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/analysis/BTCUSDT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ctx := context.Background()
	res, err := ts.service.Analyze(ctx, domain.AnalysisInput{Symbol: "BTCUSDT", Bars: wave(300)})
	require.NoError(t, err)
	require.NoError(t, ts.service.Store(ctx, res))

	rec = ts.do(t, http.MethodGet, "/api/v1/analysis/btcusdt", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestSignalLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	sig := domain.Signal{
		LevelKey:       "4h:RETRACE_618",
		LevelName:      "61.8% Retracement",
		Timeframe:      "4h",
		Category:       domain.CategoryRetracement,
		Strength:       domain.StrengthStrong,
		DetectedAt:     start,
		Price:          100,
		ReferencePrice: 101,
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/signals", RecordSignalRequest{Symbol: "BTCUSDT", Signal: sig})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.SignalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.ResultPending, created.Result)
	assert.Equal(t, domain.DirectionBullish, created.Direction)

	rec = ts.do(t, http.MethodGet, "/api/v1/signals/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	at := start.Add(4 * time.Hour)
	rec = ts.do(t, http.MethodPost, "/api/v1/signals/"+created.ID+"/resolve", ResolveSignalRequest{ResultPrice: 105, ResultTime: &at})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved domain.SignalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, domain.ResultWin, resolved.Result)

	rec = ts.do(t, http.MethodPost, "/api/v1/signals/"+created.ID+"/resolve", ResolveSignalRequest{ResultPrice: 90})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/signals/missing/resolve", ResolveSignalRequest{ResultPrice: 90})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/signals/metrics?symbol=btcusdt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.PerformanceMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 1, m.TotalSignals)
	assert.Equal(t, 1.0, m.WinRate)
	assert.InDelta(t, 0.05, m.AverageMovePercent, 1e-12)

	from := start.Add(time.Hour).Format(time.RFC3339)
	rec = ts.do(t, http.MethodGet, "/api/v1/signals?from="+from, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.SignalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestSignalEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/signals", RecordSignalRequest{Symbol: "BTCUSDT", Signal: domain.Signal{Price: -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/signals?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/signals?strength=HUGE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/signals?from=%s&to=%s",
		start.Add(time.Hour).Format(time.RFC3339), start.Format(time.RFC3339)), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/devices", RegisterDeviceRequest{Token: "abc", Platform: "iOS"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, ts.devices.Count())

	rec = ts.do(t, http.MethodPost, "/api/v1/devices", RegisterDeviceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/devices/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/devices/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ts.devices.Count())

	rec = ts.do(t, http.MethodDelete, "/api/v1/devices/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)

	ts.checkErr = errors.New("down")
	rec = ts.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusForError(fmt.Errorf("x: %w", domain.ErrInsufficientData)))
	assert.Equal(t, http.StatusBadRequest, statusForError(domain.ErrInvalidConfiguration))
	assert.Equal(t, http.StatusBadRequest, statusForError(domain.ErrMalformedInput))
	assert.Equal(t, http.StatusNotFound, statusForError(domain.ErrRecordNotFound))
	assert.Equal(t, http.StatusConflict, statusForError(domain.ErrAlreadyResolved))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}
