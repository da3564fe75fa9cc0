// Package predictions reads ML model outputs from the shared key-value store.
package predictions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"signal-engine/internal/errors"
	"signal-engine/internal/models"
	"signal-engine/internal/store"
)

// Config holds prediction reader configuration.
type Config struct {
	// KeyPrefix is prepended to the symbol to form the store key.
	KeyPrefix string
	// MaxAge is the freshness budget; older predictions are rejected.
	MaxAge time.Duration
}

// Reader performs a single keyed read plus a freshness check. Predictions are
// written by an external model runner; the engine only consumes them.
type Reader struct {
	cfg    Config
	kv     store.KVStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewReader creates a prediction reader over the shared store.
func NewReader(cfg Config, kv store.KVStore, logger zerolog.Logger) *Reader {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ml:prediction:"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	return &Reader{
		cfg:    cfg,
		kv:     kv,
		logger: logger.With().Str("component", "predictions").Logger(),
		now:    time.Now,
	}
}

type storedPrediction struct {
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"`
	Probability float64 `json:"probability"`
	GeneratedAt int64   `json:"generatedAtMillis"`
}

// Latest returns the current prediction for a symbol. A missing key returns
// ErrNotFound; a prediction older than the freshness budget returns
// ErrStalePrediction with the prediction still populated so callers can log it.
func (r *Reader) Latest(ctx context.Context, symbol string) (models.Prediction, error) {
	raw, ok, err := r.kv.Get(ctx, r.cfg.KeyPrefix+symbol)
	if err != nil {
		return models.Prediction{}, errors.NewPersistenceError("get", r.cfg.KeyPrefix+symbol, err)
	}
	if !ok {
		return models.Prediction{}, errors.ErrNotFound
	}

	var stored storedPrediction
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return models.Prediction{}, errors.NewPersistenceError("decode", r.cfg.KeyPrefix+symbol, err)
	}

	pred := models.Prediction{
		Symbol:      stored.Symbol,
		Direction:   models.SignalType(stored.Direction),
		Probability: stored.Probability,
		GeneratedAt: time.UnixMilli(stored.GeneratedAt),
	}

	if !pred.Fresh(r.now(), r.cfg.MaxAge) {
		r.logger.Warn().
			Str("symbol", symbol).
			Time("generated_at", pred.GeneratedAt).
			Dur("max_age", r.cfg.MaxAge).
			Msg("Prediction is stale")
		return pred, errors.ErrStalePrediction
	}
	return pred, nil
}
