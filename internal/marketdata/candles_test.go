package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candlePayload = `{
	"status": "success",
	"data": {
		"candles": [
			["2026-08-27T09:15:00+05:30", 3500.0, 3512.5, 3498.0, 3510.0, 125000],
			["2026-08-27T09:20:00+05:30", 3510.0, 3520.0, 3505.0, 3518.5, 98000]
		]
	}
}`

func TestParseCandles(t *testing.T) {
	candles, err := parseCandles([]byte(candlePayload))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, 2026, first.Timestamp.Year())
	assert.InDelta(t, 3500.0, first.Open, 1e-9)
	assert.InDelta(t, 3512.5, first.High, 1e-9)
	assert.InDelta(t, 3498.0, first.Low, 1e-9)
	assert.InDelta(t, 3510.0, first.Close, 1e-9)
	assert.Equal(t, int64(125000), first.Volume)
}

func TestParseCandlesRejectsMalformedPayload(t *testing.T) {
	_, err := parseCandles([]byte(`{"data": {}}`))
	assert.Error(t, err, "missing candles array")

	_, err = parseCandles([]byte(`{"data": {"candles": [["2026-08-27T09:15:00+05:30", 1.0]]}}`))
	assert.Error(t, err, "short row")

	_, err = parseCandles([]byte(`{"data": {"candles": [["not-a-time", 1, 2, 3, 4, 5]]}}`))
	assert.Error(t, err, "bad timestamp")
}

func TestFetchCandlesServesFromCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/instruments/historical/TCS/5minute", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))
		fmt.Fprint(w, candlePayload)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, zerolog.Nop())
	ctx := context.Background()
	from, to := time.Now().Add(-time.Hour), time.Now()

	first, err := c.FetchCandles(ctx, "TCS", "5minute", from, to)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.FetchCandles(ctx, "TCS", "5minute", from, to)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second fetch must be served from cache")

	// A different interval is a separate cache entry.
	_, err = c.FetchCandles(ctx, "TCS", "day", from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchCandlesSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchCandles(context.Background(), "TCS", "5minute", time.Now().Add(-time.Hour), time.Now())
	assert.ErrorContains(t, err, "status 500")
}
