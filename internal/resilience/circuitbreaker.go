// Package resilience provides the circuit breaker guarding outbound
// market-data calls.
package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signal-engine/internal/errors"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a consecutive-failure circuit breaker. After the threshold is
// reached calls fail fast with ErrCircuitOpen until the cooldown elapses; the
// first call after cooldown probes the dependency and one success closes the
// breaker again.
type Breaker struct {
	cfg    BreakerConfig
	logger zerolog.Logger

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a circuit breaker.
func NewBreaker(cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger.With().Str("component", "breaker").Logger(),
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return errors.ErrCircuitOpen
	}
	b.state = BreakerHalfOpen
	b.logger.Info().Msg("Circuit breaker probing after cooldown")
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			b.logger.Info().Msg("Circuit breaker closed")
		}
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.logger.Warn().
			Int("failures", b.failures).
			Dur("cooldown", b.cfg.Cooldown).
			Msg("Circuit breaker opened")
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
