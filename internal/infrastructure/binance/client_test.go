package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.BinanceConfig{BaseURL: srv.URL, Timeout: time.Second})
}

func TestClient_Bars(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[
			[1704067200000,"100.0","110.5","95.25","105.0","1234.5",1704070799999,"0",10,"0","0","0"],
			[1704070800000,"105.0","112.0","101.0","111.0","999",1704074399999,"0",10,"0","0","0"]
		]`)
	})

	bars, err := c.Bars(context.Background(), "btcusdt", "1h", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Contains(t, gotQuery, "symbol=BTCUSDT")
	assert.Contains(t, gotQuery, "interval=1h")
	assert.Contains(t, gotQuery, "limit=2")

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 110.5, bars[0].High)
	assert.Equal(t, 95.25, bars[0].Low)
	assert.Equal(t, 111.0, bars[1].Close)
	assert.Equal(t, 999.0, bars[1].Volume)
}

func TestClient_BarsRejectsBadTimeframe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Bars(context.Background(), "BTCUSDT", "7x", 10)
	assert.Error(t, err)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	})

	_, err := c.Bars(context.Background(), "NOPE", "1h", 10)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, -1121, apiErr.Code)
}

func TestClient_ActiveSymbols(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","quoteAsset":"USDT"},
			{"symbol":"ETHBUSD","status":"TRADING","quoteAsset":"BUSD"},
			{"symbol":"OLDUSDT","status":"SETTLING","quoteAsset":"USDT"}
		]}`)
	})

	syms, err := c.ActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, syms)
}

func TestParseKlines_Malformed(t *testing.T) {
	_, err := ParseKlines([][]interface{}{{1.0, "1", "2"}})
	assert.Error(t, err)

	_, err = ParseKlines([][]interface{}{{1.0, "x", "2", "1", "1", "1"}})
	assert.Error(t, err)
}
