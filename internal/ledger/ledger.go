// Package ledger provides the authoritative per-instrument position record and
// the append-only order log.
//
// The backing key-value store offers no compare-and-swap, so correctness of the
// read-modify-write in UpdatePosition depends entirely on the in-process
// per-instrument lock. The design assumes single-process ownership of the
// ledger; there is no cross-process consistency.
package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signal-engine/internal/models"
	"signal-engine/internal/store"
)

const (
	positionKeyPrefix = "wallet:positions:"
	orderKeyPrefix    = "wallet:orders:"
)

// Ledger records fills against per-instrument positions. Updates to one
// instrument are fully serialized; different instruments proceed independently.
type Ledger struct {
	kv      store.KVStore
	journal *store.Journal
	logger  zerolog.Logger

	mu sync.Mutex
	// Per-instrument locks, created lazily and retained for the process's
	// lifetime. Bounded by the tradable instrument universe, which is finite
	// and small (a few thousand symbols at most).
	locks map[string]*sync.Mutex
}

// New creates a ledger over the given key-value store. journal may be nil; when
// set, recorded orders are mirrored to it best-effort.
func New(kv store.KVStore, journal *store.Journal, logger zerolog.Logger) *Ledger {
	return &Ledger{
		kv:      kv,
		journal: journal,
		logger:  logger.With().Str("component", "ledger").Logger(),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(symbol string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[symbol] = lock
	}
	return lock
}

// RecordOrder persists an immutable order record and returns its generated ID.
// A persistence failure is non-fatal: it is logged and the empty string is
// returned so the caller can decide whether to alert.
func (l *Ledger) RecordOrder(ctx context.Context, symbol string, side models.OrderSide, qty int, price float64, mode models.OrderMode) string {
	rec := models.OrderRecord{
		OrderID:   uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Mode:      mode,
		Timestamp: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		l.logger.Error().Err(err).Str("symbol", symbol).Msg("Order record serialization failed")
		return ""
	}
	if err := l.kv.Set(ctx, orderKeyPrefix+rec.OrderID, string(payload)); err != nil {
		l.logger.Error().Err(err).Str("order_id", rec.OrderID).Msg("Order record persistence failed")
		return ""
	}

	if l.journal != nil {
		if err := l.journal.AppendOrder(ctx, rec); err != nil {
			l.logger.Warn().Err(err).Str("order_id", rec.OrderID).Msg("Order journal write failed")
		}
	}

	l.logger.Info().
		Str("order_id", rec.OrderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Int("quantity", qty).
		Float64("price", price).
		Msg("Order recorded")
	return rec.OrderID
}

// UpdatePosition applies a fill to the instrument's position record and writes
// it back. It is the sole mutator for an instrument's record.
//
// BUY averages the fill price into the position; a fill onto a flat or short
// record, or a fill with no price, resets the average to the fill price. SELL
// reduces quantity, clamped at zero, and leaves the average price unchanged
// even through a full exit: the next BUY from zero resets it.
func (l *Ledger) UpdatePosition(ctx context.Context, symbol string, side models.OrderSide, qty int, price float64) (models.PositionRecord, bool) {
	lock := l.lockFor(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.readPosition(ctx, symbol)
	if err != nil {
		l.logger.Error().Err(err).Str("symbol", symbol).Msg("Position read failed")
		return models.PositionRecord{}, false
	}

	switch side {
	case models.OrderSideBuy:
		newQty := pos.Quantity + qty
		if pos.Quantity <= 0 || price == 0 {
			pos.AveragePrice = price
		} else {
			pos.AveragePrice = (pos.AveragePrice*float64(pos.Quantity) + price*float64(qty)) / float64(newQty)
		}
		pos.Quantity = newQty
	case models.OrderSideSell:
		pos.Quantity -= qty
		if pos.Quantity < 0 {
			pos.Quantity = 0
		}
	default:
		l.logger.Error().Str("side", string(side)).Str("symbol", symbol).Msg("Unknown order side")
		return models.PositionRecord{}, false
	}

	if err := l.writePosition(ctx, pos); err != nil {
		l.logger.Error().Err(err).Str("symbol", symbol).Msg("Position write failed")
		return models.PositionRecord{}, false
	}
	return pos, true
}

// Position returns the current record for an instrument. A missing record is
// returned as a zero position, not an error.
func (l *Ledger) Position(ctx context.Context, symbol string) (models.PositionRecord, error) {
	return l.readPosition(ctx, symbol)
}

func (l *Ledger) readPosition(ctx context.Context, symbol string) (models.PositionRecord, error) {
	raw, ok, err := l.kv.Get(ctx, positionKeyPrefix+symbol)
	if err != nil {
		return models.PositionRecord{}, err
	}
	if !ok {
		return models.PositionRecord{Symbol: symbol}, nil
	}
	var pos models.PositionRecord
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return models.PositionRecord{}, err
	}
	return pos, nil
}

func (l *Ledger) writePosition(ctx context.Context, pos models.PositionRecord) error {
	payload, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, positionKeyPrefix+pos.Symbol, string(payload))
}
