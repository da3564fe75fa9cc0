// Package marketdata provides historical candle fetching and reference-data
// lookups with simple caching. These are I/O conveniences at the engine
// boundary; nothing here carries coordination invariants.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"signal-engine/internal/models"
	"signal-engine/internal/resilience"
	"signal-engine/pkg/utils"
)

// Config holds candle fetcher configuration.
type Config struct {
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Client fetches historical candles over HTTP and caches them per
// symbol/interval for the configured TTL.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
	retry   utils.RetryConfig
	logger  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedCandles
}

type cachedCandles struct {
	candles   []models.Candle
	fetchedAt time.Time
}

// NewClient creates a candle fetcher.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 2
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig(), logger),
		retry:   retry,
		logger:  logger.With().Str("component", "marketdata").Logger(),
		cache:   make(map[string]cachedCandles),
	}
}

// FetchCandles returns historical candles for the symbol and interval, serving
// from cache when a fresh entry exists.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	cacheKey := symbol + ":" + interval

	c.mu.RLock()
	if entry, ok := c.cache[cacheKey]; ok && time.Since(entry.fetchedAt) < c.cfg.CacheTTL {
		c.mu.RUnlock()
		return entry.candles, nil
	}
	c.mu.RUnlock()

	var candles []models.Candle
	err := utils.Retry(ctx, c.retry, func() error {
		return c.breaker.Do(func() error {
			var fetchErr error
			candles, fetchErr = c.fetch(ctx, symbol, interval, from, to)
			return fetchErr
		})
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[cacheKey] = cachedCandles{candles: candles, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("count", len(candles)).
		Msg("Candles fetched")
	return candles, nil
}

func (c *Client) fetch(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	endpoint := fmt.Sprintf("%s/instruments/historical/%s/%s", c.cfg.BaseURL, url.PathEscape(symbol), url.PathEscape(interval))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building candle request: %w", err)
	}
	q := req.URL.Query()
	q.Set("from", from.Format("2006-01-02 15:04:05"))
	q.Set("to", to.Format("2006-01-02 15:04:05"))
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching candles for %s: status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading candle response: %w", err)
	}
	return parseCandles(body)
}

// parseCandles decodes the broker's historical-data payload: an array of
// [timestamp, open, high, low, close, volume] rows under data.candles.
func parseCandles(body []byte) ([]models.Candle, error) {
	rows := gjson.GetBytes(body, "data.candles")
	if !rows.Exists() {
		return nil, fmt.Errorf("candle payload missing data.candles")
	}

	var candles []models.Candle
	var parseErr error
	rows.ForEach(func(_, row gjson.Result) bool {
		fields := row.Array()
		if len(fields) < 6 {
			parseErr = fmt.Errorf("candle row has %d fields, want 6", len(fields))
			return false
		}
		ts, err := time.Parse(time.RFC3339, fields[0].String())
		if err != nil {
			parseErr = fmt.Errorf("parsing candle timestamp %q: %w", fields[0].String(), err)
			return false
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      fields[1].Float(),
			High:      fields[2].Float(),
			Low:       fields[3].Float(),
			Close:     fields[4].Float(),
			Volume:    fields[5].Int(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return candles, nil
}
