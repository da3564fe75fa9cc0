// Package replay provides the sequential candle-replay runner for dry runs.
//
// The runner walks a candle series in order, lets a strategy emit candidate
// signals, and drives them through the same selection, allocation, and ledger
// path live trading uses. Windows are closed explicitly after each candle, so
// a replay never waits on wall-clock timers.
package replay

import (
	"context"

	"github.com/rs/zerolog"

	"signal-engine/internal/allocation"
	"signal-engine/internal/errors"
	"signal-engine/internal/ledger"
	"signal-engine/internal/models"
	"signal-engine/internal/selector"
)

// Strategy emits zero or more candidate signals for a candle.
type Strategy func(symbol string, candle models.Candle) []models.CandidateSignal

// SectorLookup resolves an instrument to its sector tag.
type SectorLookup func(symbol string) string

// Result summarizes a replay run.
type Result struct {
	CandlesReplayed  int
	SignalsEmitted   int
	SignalsRejected  int
	TradesAdmitted   int
	TradesAllocated  int
	OrdersRecorded   int
	FinalUtilization float64
}

// Runner replays candles through the engine core.
type Runner struct {
	selector *selector.Selector
	alloc    *allocation.Engine
	ledger   *ledger.Ledger
	sector   SectorLookup
	logger   zerolog.Logger
}

// NewRunner creates a replay runner over live engine components.
func NewRunner(sel *selector.Selector, alloc *allocation.Engine, led *ledger.Ledger, sector SectorLookup, logger zerolog.Logger) *Runner {
	if sector == nil {
		sector = func(string) string { return "UNKNOWN" }
	}
	return &Runner{
		selector: sel,
		alloc:    alloc,
		ledger:   led,
		sector:   sector,
		logger:   logger.With().Str("component", "replay").Logger(),
	}
}

// Run replays the candle series for one symbol through the strategy. Each
// candle's signals are submitted, the window is closed immediately, and any
// admitted trade is allocated and entered at the candle close, then exited on
// the next candle so the replay exercises the full reserve/release cycle.
func (r *Runner) Run(ctx context.Context, symbol string, candles []models.Candle, strategy Strategy) (Result, error) {
	var res Result
	var openTradeID string

	for _, candle := range candles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.CandlesReplayed++

		// Exit the previous candle's trade before considering new signals.
		if openTradeID != "" {
			r.closeTrade(ctx, symbol, candle.Open, &res)
			openTradeID = ""
		}

		for _, sig := range strategy(symbol, candle) {
			res.SignalsEmitted++
			sig.QueuedAt = candle.Timestamp
			if err := r.selector.Submit(sig); err != nil {
				res.SignalsRejected++
				if !errors.Is(err, errors.ErrTradeActive) && !errors.Is(err, errors.ErrSelectionRejected) {
					return res, err
				}
			}
		}
		r.selector.CloseWindowNow()

		trade, ok := r.selector.ActiveTrade()
		if !ok {
			continue
		}
		res.TradesAdmitted++

		size := r.alloc.DiversifiedPositionSize(trade.Symbol, trade.EntryPrice, trade.StopLoss, 0)
		if size <= 0 {
			r.selector.RemoveActiveTrade(trade.Symbol)
			continue
		}
		if err := r.alloc.ReserveCapitalForTrade(trade.TradeID, trade.Symbol, r.sector(trade.Symbol), trade.EntryPrice, size); err != nil {
			r.logger.Debug().Err(err).Str("trade_id", trade.TradeID).Msg("Replay reservation rejected")
			r.selector.RemoveActiveTrade(trade.Symbol)
			continue
		}
		res.TradesAllocated++

		if orderID := r.ledger.RecordOrder(ctx, trade.Symbol, models.OrderSideBuy, size, candle.Close, models.OrderModePaper); orderID != "" {
			res.OrdersRecorded++
		}
		r.ledger.UpdatePosition(ctx, trade.Symbol, models.OrderSideBuy, size, candle.Close)
		openTradeID = trade.TradeID
	}

	// Flatten at the end of the series.
	if openTradeID != "" && len(candles) > 0 {
		r.closeTrade(ctx, symbol, candles[len(candles)-1].Close, &res)
	}

	res.FinalUtilization = r.alloc.Snapshot().UtilizationPercent
	return res, nil
}

func (r *Runner) closeTrade(ctx context.Context, symbol string, price float64, res *Result) {
	trade, ok := r.selector.ActiveTrade()
	if !ok {
		return
	}
	pos, _ := r.ledger.Position(ctx, symbol)
	if pos.Quantity > 0 {
		if orderID := r.ledger.RecordOrder(ctx, symbol, models.OrderSideSell, pos.Quantity, price, models.OrderModePaper); orderID != "" {
			res.OrdersRecorded++
		}
		r.ledger.UpdatePosition(ctx, symbol, models.OrderSideSell, pos.Quantity, price)
	}
	r.alloc.ReleaseCapitalForTrade(trade.TradeID)
	r.selector.RemoveActiveTrade(symbol)
}
