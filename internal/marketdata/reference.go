package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"signal-engine/internal/models"
)

// ReferenceClient looks up company names and pivot values. Both are fetched
// once per symbol and cached for the process's lifetime: names never change
// intraday and pivots are fixed by the previous session.
type ReferenceClient struct {
	candles *Client

	mu     sync.RWMutex
	names  map[string]string
	pivots map[string]models.PivotLevels
}

// NewReferenceClient creates a reference-data client over the candle fetcher.
func NewReferenceClient(candles *Client) *ReferenceClient {
	return &ReferenceClient{
		candles: candles,
		names:   make(map[string]string),
		pivots:  make(map[string]models.PivotLevels),
	}
}

// CompanyName returns the company name for a trading symbol.
func (r *ReferenceClient) CompanyName(ctx context.Context, symbol string) (string, error) {
	r.mu.RLock()
	if name, ok := r.names[symbol]; ok {
		r.mu.RUnlock()
		return name, nil
	}
	r.mu.RUnlock()

	endpoint := fmt.Sprintf("%s/instruments/lookup/%s", r.candles.cfg.BaseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building lookup request: %w", err)
	}
	resp, err := r.candles.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("looking up %s: status %d", symbol, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading lookup response: %w", err)
	}

	name := gjson.GetBytes(body, "data.name").String()
	if name == "" {
		return "", fmt.Errorf("no company name for %s", symbol)
	}

	r.mu.Lock()
	r.names[symbol] = name
	r.mu.Unlock()
	return name, nil
}

// Pivots returns classic pivot levels for a symbol, computed from the previous
// session's daily candle.
func (r *ReferenceClient) Pivots(ctx context.Context, symbol string) (models.PivotLevels, error) {
	r.mu.RLock()
	if levels, ok := r.pivots[symbol]; ok {
		r.mu.RUnlock()
		return levels, nil
	}
	r.mu.RUnlock()

	to := time.Now()
	from := to.AddDate(0, 0, -7)
	candles, err := r.candles.FetchCandles(ctx, symbol, "day", from, to)
	if err != nil {
		return models.PivotLevels{}, err
	}
	if len(candles) < 2 {
		return models.PivotLevels{}, fmt.Errorf("not enough daily candles for %s pivots", symbol)
	}

	prev := candles[len(candles)-2]
	levels := computePivots(prev.High, prev.Low, prev.Close)

	r.mu.Lock()
	r.pivots[symbol] = levels
	r.mu.Unlock()
	return levels, nil
}

// computePivots derives classic floor-trader pivots from the prior session.
func computePivots(high, low, close float64) models.PivotLevels {
	p := (high + low + close) / 3
	return models.PivotLevels{
		Pivot: p,
		R1:    2*p - low,
		S1:    2*p - high,
		R2:    p + (high - low),
		S2:    p - (high - low),
		R3:    high + 2*(p-low),
		S3:    low - 2*(high-p),
	}
}
