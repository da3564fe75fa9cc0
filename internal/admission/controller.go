// Package admission provides the per-class rate gate protecting outbound broker calls.
//
// The broker enforces rolling per-second limits, so each operation class gets an
// independent token bucket rather than a fixed window counter. Callers must obtain
// a permit before issuing the matching broker call; a denied permit is final and
// retry policy belongs to the caller.
package admission

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Class identifies an outbound broker operation class.
type Class string

const (
	ClassOrder      Class = "order"
	ClassQuote      Class = "quote"
	ClassPosition   Class = "position"
	ClassMarketData Class = "marketData"
)

// DefaultAcquireTimeout is the wait budget used when the caller does not supply one.
const DefaultAcquireTimeout = 5 * time.Second

// Config holds steady-state permits-per-second rates for each class.
type Config struct {
	OrdersPerSecond     float64
	QuotesPerSecond     float64
	PositionsPerSecond  float64
	MarketDataPerSecond float64
	AcquireTimeout      time.Duration
}

// DefaultConfig returns conservative broker-safe defaults.
func DefaultConfig() Config {
	return Config{
		OrdersPerSecond:     1,
		QuotesPerSecond:     5,
		PositionsPerSecond:  2,
		MarketDataPerSecond: 10,
		AcquireTimeout:      DefaultAcquireTimeout,
	}
}

// Controller is the admission gate. It is safe for unbounded concurrent callers;
// the only blocking happens inside Acquire, bounded by the wait budget.
type Controller struct {
	limiters       map[Class]*rate.Limiter
	defaultTimeout time.Duration
	logger         zerolog.Logger
}

// NewController creates an admission controller with one token bucket per class.
func NewController(cfg Config, logger zerolog.Logger) *Controller {
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Controller{
		limiters: map[Class]*rate.Limiter{
			ClassOrder:      newLimiter(cfg.OrdersPerSecond),
			ClassQuote:      newLimiter(cfg.QuotesPerSecond),
			ClassPosition:   newLimiter(cfg.PositionsPerSecond),
			ClassMarketData: newLimiter(cfg.MarketDataPerSecond),
		},
		defaultTimeout: timeout,
		logger:         logger.With().Str("component", "admission").Logger(),
	}
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		perSec = 1
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// Acquire blocks until a permit for the class is available or the default wait
// budget elapses. Returns true iff a permit was granted.
func (c *Controller) Acquire(ctx context.Context, class Class) bool {
	return c.AcquireTimeout(ctx, class, c.defaultTimeout)
}

// AcquireTimeout blocks until a permit is available or timeout elapses. A zero or
// negative timeout never blocks: the permit is granted only if a token is already
// available. Context cancellation is treated identically to timeout: the permit is
// denied and the caller decides what to do next. No automatic retries.
func (c *Controller) AcquireTimeout(ctx context.Context, class Class, timeout time.Duration) bool {
	limiter, ok := c.limiters[class]
	if !ok {
		c.logger.Error().Str("class", string(class)).Msg("Unknown operation class")
		return false
	}

	if timeout <= 0 {
		return limiter.Allow()
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := limiter.Wait(waitCtx); err != nil {
		c.logger.Warn().
			Str("class", string(class)).
			Dur("timeout", timeout).
			Err(err).
			Msg("Permit not granted within wait budget")
		return false
	}
	return true
}

// SetRate adjusts the steady-state rate for a class at runtime. The burst is
// resized to match so a lowered rate cannot keep serving the old burst.
func (c *Controller) SetRate(class Class, perSec float64) bool {
	limiter, ok := c.limiters[class]
	if !ok || perSec <= 0 {
		return false
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	limiter.SetLimit(rate.Limit(perSec))
	limiter.SetBurst(burst)
	c.logger.Info().
		Str("class", string(class)).
		Float64("per_second", perSec).
		Msg("Rate limit adjusted")
	return true
}

// Rates returns the currently configured permits-per-second for every class.
// Read-only; no side effects.
func (c *Controller) Rates() map[Class]float64 {
	rates := make(map[Class]float64, len(c.limiters))
	for class, limiter := range c.limiters {
		rates[class] = float64(limiter.Limit())
	}
	return rates
}
