// Package selector provides the time-boxed trade selector.
//
// Candidate signals are collected into a fixed-duration window; when the window
// closes every queued signal is scored and at most one winner is admitted as the
// active trade. While a trade is active all intake is rejected.
package selector

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signal-engine/internal/errors"
	"signal-engine/internal/models"
	"signal-engine/internal/signals"
)

// State represents the selector's collection state.
type State string

const (
	StateIdle       State = "IDLE"
	StateCollecting State = "COLLECTING"
	StateSelecting  State = "SELECTING"
)

// DefaultWindow is the selection window used when none is configured.
const DefaultWindow = 2 * time.Minute

// Config holds selector configuration.
type Config struct {
	// Window is how long signals are collected before one is chosen.
	Window time.Duration
	// MinScore is the admission threshold. The composite score is compared
	// against it directly, on the same 10x scale. Historically this constant
	// was configured as a minimum risk-reward ratio; the comparison against
	// the scaled score is preserved as-is.
	MinScore float64
	// SignalTTL is the time-to-live applied to queued signals.
	SignalTTL time.Duration
}

// Selector collects signals into a window and admits at most one active trade
// system-wide. All methods are safe for concurrent use.
type Selector struct {
	cfg    Config
	index  *signals.Index
	logger zerolog.Logger

	mu          sync.Mutex
	state       State
	queue       []models.CandidateSignal
	timer       *time.Timer
	windowSeq   uint64
	activeTrade *models.ActiveTradeRecord

	// onAdmit, when set, is invoked after a winner is admitted, outside the lock.
	onAdmit func(models.ActiveTradeRecord)

	now func() time.Time
}

// New creates a selector sharing the given pending-signal index.
func New(cfg Config, index *signals.Index, logger zerolog.Logger) *Selector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Selector{
		cfg:    cfg,
		index:  index,
		logger: logger.With().Str("component", "selector").Logger(),
		state:  StateIdle,
		now:    time.Now,
	}
}

// OnAdmit registers a callback invoked whenever a winner is admitted.
func (s *Selector) OnAdmit(fn func(models.ActiveTradeRecord)) {
	s.mu.Lock()
	s.onAdmit = fn
	s.mu.Unlock()
}

// Submit offers a candidate signal to the selector.
//
// While a trade is active every new signal is evaluated against it and rejected;
// the one-trade-at-a-time policy admits nothing else. Otherwise the signal is
// enqueued, and if the queue was empty immediately before this insert a window
// timer is started. At most one timer runs per idle-to-collecting transition.
func (s *Selector) Submit(sig models.CandidateSignal) error {
	s.mu.Lock()

	if s.activeTrade != nil {
		active := *s.activeTrade
		s.mu.Unlock()
		s.logger.Info().
			Str("signal_id", sig.ID).
			Str("symbol", sig.Symbol).
			Str("active_trade", active.TradeID).
			Msg("Signal rejected: trade already active")
		return errors.ErrTradeActive
	}

	if s.index.HasPendingSignal(sig.Symbol, sig.Strategy) {
		s.mu.Unlock()
		s.logger.Debug().
			Str("signal_id", sig.ID).
			Str("symbol", sig.Symbol).
			Str("strategy", sig.Strategy).
			Msg("Signal rejected: duplicate strategy submission")
		return errors.ErrSelectionRejected
	}

	if sig.QueuedAt.IsZero() {
		sig.QueuedAt = s.now()
	}
	if sig.ExpiresAt.IsZero() && s.cfg.SignalTTL > 0 {
		sig.ExpiresAt = sig.QueuedAt.Add(s.cfg.SignalTTL)
	}

	wasEmpty := len(s.queue) == 0
	s.queue = append(s.queue, sig)
	s.index.Add(sig)

	if wasEmpty {
		s.state = StateCollecting
		s.windowSeq++
		seq := s.windowSeq
		s.timer = time.AfterFunc(s.cfg.Window, func() { s.selectNow(seq) })
		s.logger.Info().
			Str("signal_id", sig.ID).
			Dur("window", s.cfg.Window).
			Msg("Selection window opened")
	}
	s.mu.Unlock()
	return nil
}

// selectNow runs when the window timer fires. The sequence number makes
// cancellation idempotent: a timer cancelled after firing finds a newer
// sequence and does nothing.
func (s *Selector) selectNow(seq uint64) {
	s.mu.Lock()
	if seq != s.windowSeq || s.state != StateCollecting {
		s.mu.Unlock()
		return
	}
	s.state = StateSelecting

	now := s.now()
	var (
		winner   models.CandidateSignal
		topScore float64
		found    bool
	)
	// First signal to reach the maximum score wins ties, in insertion order.
	for _, sig := range s.queue {
		score := Score(sig, now)
		if !found || score > topScore {
			winner, topScore, found = sig, score, true
		}
	}

	admitted := found && topScore >= s.cfg.MinScore

	var record models.ActiveTradeRecord
	if admitted {
		record = models.ActiveTradeRecord{
			TradeID:    uuid.NewString(),
			Symbol:     winner.Symbol,
			Strategy:   winner.Strategy,
			Type:       winner.Type,
			SignalTime: winner.QueuedAt,
			EntryPrice: winner.EntryPrice,
			StopLoss:   winner.StopLoss,
			Target1:    winner.Target1,
			Target2:    winner.Target2,
			Target3:    winner.Target3,
			Status:     models.TradeWaitingForEntry,
		}
		s.activeTrade = &record
	}

	for _, sig := range s.queue {
		s.index.Remove(sig.ID)
		if admitted && sig.ID == winner.ID {
			continue
		}
		s.logger.Info().
			Str("signal_id", sig.ID).
			Str("symbol", sig.Symbol).
			Float64("score", Score(sig, now)).
			Msg("Signal rejected at selection")
	}
	s.queue = nil
	s.state = StateIdle
	onAdmit := s.onAdmit
	s.mu.Unlock()

	if admitted {
		s.logger.Info().
			Str("trade_id", record.TradeID).
			Str("symbol", record.Symbol).
			Float64("score", topScore).
			Msg("Trade admitted")
		if onAdmit != nil {
			onAdmit(record)
		}
	} else {
		s.logger.Info().
			Float64("threshold", s.cfg.MinScore).
			Msg("No signal met the admission threshold")
	}
}

// Score computes the composite selection score for a signal.
//
// score = riskReward*10 + confidence bonus + freshness bonus + target bonus.
// Fresh signals earn up to 0.5; a second target adds 1.0 and a third 0.5 more.
func Score(sig models.CandidateSignal, now time.Time) float64 {
	score := sig.RiskReward * 10
	if sig.Confidence == models.ConfidenceHigh {
		score += 5
	}
	if bonus := (5 - sig.AgeMinutes(now)) * 0.1; bonus > 0 {
		score += bonus
	}
	if sig.Target2 > 0 {
		score += 1.0
	}
	if sig.Target3 > 0 {
		score += 0.5
	}
	return score
}

// RemoveActiveTrade clears the active trade for the instrument and permits new
// intake. Returns false if no trade was active for that instrument.
func (s *Selector) RemoveActiveTrade(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeTrade == nil || s.activeTrade.Symbol != symbol {
		return false
	}
	s.logger.Info().
		Str("trade_id", s.activeTrade.TradeID).
		Str("symbol", symbol).
		Msg("Active trade removed")
	s.activeTrade = nil
	return true
}

// ActiveTrade returns a copy of the active trade record, if any.
func (s *Selector) ActiveTrade() (models.ActiveTradeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeTrade == nil {
		return models.ActiveTradeRecord{}, false
	}
	return *s.activeTrade, true
}

// TradeActive reports whether a trade is currently active.
func (s *Selector) TradeActive() bool {
	_, ok := s.ActiveTrade()
	return ok
}

// State returns the current collection state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueLen returns the number of signals waiting in the open window.
func (s *Selector) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CloseWindowNow forces the open window to close and selection to run without
// waiting for the timer. Used by the replay runner; a no-op when no window is
// open. The fired timer finds a stale sequence and does nothing.
func (s *Selector) CloseWindowNow() {
	s.mu.Lock()
	if s.state != StateCollecting {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	seq := s.windowSeq
	s.mu.Unlock()
	s.selectNow(seq)
}

// Stop cancels any open window and clears the queue so no stale signals survive
// an interrupted window. Idempotent; safe to call with no window open.
func (s *Selector) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windowSeq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for _, sig := range s.queue {
		s.index.Remove(sig.ID)
	}
	s.queue = nil
	s.state = StateIdle
}
