package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
)

const (
	FapiBaseURL = "https://fapi.binance.com"

	// MaxKlineLimit is the largest page the futures klines endpoint serves.
	MaxKlineLimit = 1500
)

// Client reads futures market data and serves it as price bars.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ domain.BarSource = (*Client)(nil)

func NewClient(cfg config.BinanceConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = FapiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	QuoteAsset string `json:"quoteAsset"`
}

// APIError is a non-200 answer from Binance.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("binance API error: %d (code %d: %s)", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance API error: %d", e.StatusCode)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ActiveSymbols returns USDT-quoted symbols with status "TRADING".
func (c *Client) ActiveSymbols(ctx context.Context) ([]string, error) {
	var info ExchangeInfo
	if err := c.get(ctx, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	var active []string
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == "USDT" {
			active = append(active, s.Symbol)
		}
	}
	return active, nil
}

// GetKlines returns raw candlestick rows:
// [open_time, open, high, low, close, volume, ...] with prices as strings.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([][]interface{}, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var klines [][]interface{}
	if err := c.get(ctx, "/fapi/v1/klines", q, &klines); err != nil {
		return nil, err
	}
	return klines, nil
}

// Bars fetches the most recent limit bars, oldest first.
func (c *Client) Bars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.PriceBar, error) {
	if _, err := domain.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}
	symbol = domain.NormalizeSymbol(symbol)

	raw, err := c.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, timeframe, err)
	}
	return ParseKlines(raw)
}

// ParseKlines converts raw kline rows into bars.
func ParseKlines(raw [][]interface{}) ([]domain.PriceBar, error) {
	bars := make([]domain.PriceBar, 0, len(raw))
	for i, k := range raw {
		if len(k) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(k))
		}
		var vals [6]float64
		for j := 0; j < 6; j++ {
			v, err := parseValue(k[j])
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j, err)
			}
			vals[j] = v
		}
		bars = append(bars, domain.PriceBar{
			Timestamp: time.UnixMilli(int64(vals[0])).UTC(),
			Open:      vals[1],
			High:      vals[2],
			Low:       vals[3],
			Close:     vals[4],
			Volume:    vals[5],
		})
	}
	return bars, nil
}

func parseValue(v interface{}) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	case json.Number:
		return val.Float64()
	}
	return 0, fmt.Errorf("unexpected value type %T", v)
}
