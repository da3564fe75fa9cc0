// Package allocation provides the capital-allocation engine.
//
// Capital reserved per trade follows a tiered heuristic keyed on how many trades
// are already active, with hard caps on concurrency and per-sector exposure.
package allocation

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"signal-engine/internal/errors"
	"signal-engine/internal/models"
)

// Config holds capital allocation configuration. Percent fields are whole
// percentages (10 means 10%).
type Config struct {
	TotalCapital             float64
	MaxSinglePositionPercent float64
	MaxSectorExposurePercent float64
	MaxSimultaneousTrades    int
	CapitalSplitPercent      float64
}

// Engine computes and reserves capital per active trade. The sector-exposure
// check and the reservation write execute under one critical section, so two
// same-sector reservations can never both pass the check and jointly breach
// the cap.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	allocations map[string]models.TradeAllocation
}

// NewEngine creates an allocation engine.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		logger:      logger.With().Str("component", "allocation").Logger(),
		allocations: make(map[string]models.TradeAllocation),
	}
}

// CapitalAllocation returns the capital granted to the next trade given the
// number of already-active trades. The tiering is a deliberate heuristic:
//
//	0 active: totalCapital * maxSingle%
//	1 active: totalCapital * capitalSplit%
//	2+ active: (totalCapital / maxSimultaneousTrades) * capitalSplit%
func (e *Engine) CapitalAllocation(activeCount int) float64 {
	switch {
	case activeCount <= 0:
		return e.cfg.TotalCapital * e.cfg.MaxSinglePositionPercent / 100
	case activeCount == 1:
		return e.cfg.TotalCapital * e.cfg.CapitalSplitPercent / 100
	default:
		return (e.cfg.TotalCapital / float64(e.cfg.MaxSimultaneousTrades)) * e.cfg.CapitalSplitPercent / 100
	}
}

// DiversifiedPositionSize returns the share count for a new trade, sized off
// the per-trade risk budget and clamped so the position value cannot exceed
// the allocated capital. Returns 0 when the concurrency cap is reached or the
// inputs admit no position.
func (e *Engine) DiversifiedPositionSize(symbol string, entry, stop, riskReward float64) int {
	e.mu.Lock()
	activeCount := len(e.allocations)
	e.mu.Unlock()

	if activeCount >= e.cfg.MaxSimultaneousTrades {
		e.logger.Debug().
			Str("symbol", symbol).
			Int("active", activeCount).
			Msg("Position size 0: concurrency cap reached")
		return 0
	}

	riskPerShare := math.Abs(entry - stop)
	if riskPerShare <= 0 || entry <= 0 {
		return 0
	}

	allocated := e.CapitalAllocation(activeCount)
	maxRisk := allocated * e.cfg.MaxSinglePositionPercent / 100
	size := int(maxRisk / riskPerShare)

	// Clamp so size*entry never exceeds the allocated capital.
	if maxByValue := int(allocated / entry); size > maxByValue {
		size = maxByValue
	}
	if size < 0 {
		size = 0
	}
	return size
}

// ReserveCapitalForTrade computes the tiered allocation for the trade and
// records it, unless doing so would push the trade's sector past the exposure
// cap. Check and reserve run atomically.
func (e *Engine) ReserveCapitalForTrade(tradeID, symbol, sector string, entry float64, size int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.allocations) >= e.cfg.MaxSimultaneousTrades {
		return errors.NewAllocationError(tradeID, sector,
			float64(len(e.allocations)), float64(e.cfg.MaxSimultaneousTrades),
			errors.ErrMaxTradesReached)
	}

	allocated := e.capitalAllocationLocked(len(e.allocations))
	sectorLimit := e.cfg.TotalCapital * e.cfg.MaxSectorExposurePercent / 100
	sectorCurrent := e.sectorExposureLocked(sector)

	if sectorCurrent+allocated > sectorLimit {
		e.logger.Warn().
			Str("trade_id", tradeID).
			Str("sector", sector).
			Float64("current", sectorCurrent).
			Float64("requested", allocated).
			Float64("limit", sectorLimit).
			Msg("Reservation rejected: sector exposure cap")
		return errors.NewAllocationError(tradeID, sector, sectorCurrent+allocated, sectorLimit,
			errors.ErrSectorExposure)
	}

	e.allocations[tradeID] = models.TradeAllocation{
		TradeID:          tradeID,
		Symbol:           symbol,
		Sector:           sector,
		AllocatedCapital: allocated,
		RiskAmount:       allocated * e.cfg.MaxSinglePositionPercent / 100,
		PositionSize:     size,
		Active:           true,
	}
	e.logger.Info().
		Str("trade_id", tradeID).
		Str("symbol", symbol).
		Str("sector", sector).
		Float64("allocated", allocated).
		Int("size", size).
		Msg("Capital reserved")
	return nil
}

// capitalAllocationLocked mirrors CapitalAllocation for use under the lock.
func (e *Engine) capitalAllocationLocked(activeCount int) float64 {
	switch {
	case activeCount <= 0:
		return e.cfg.TotalCapital * e.cfg.MaxSinglePositionPercent / 100
	case activeCount == 1:
		return e.cfg.TotalCapital * e.cfg.CapitalSplitPercent / 100
	default:
		return (e.cfg.TotalCapital / float64(e.cfg.MaxSimultaneousTrades)) * e.cfg.CapitalSplitPercent / 100
	}
}

func (e *Engine) sectorExposureLocked(sector string) float64 {
	var total float64
	for _, alloc := range e.allocations {
		if alloc.Sector == sector && alloc.Active {
			total += alloc.AllocatedCapital
		}
	}
	return total
}

// ReleaseCapitalForTrade removes the trade's allocation. If exactly one
// allocation remains it is bumped to the full single-position tier: an
// opportunistic rebalance, not transactional with any order in flight.
func (e *Engine) ReleaseCapitalForTrade(tradeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.allocations[tradeID]; !ok {
		return false
	}
	delete(e.allocations, tradeID)

	if len(e.allocations) == 1 {
		for id, alloc := range e.allocations {
			alloc.AllocatedCapital = e.capitalAllocationLocked(0)
			e.allocations[id] = alloc
			e.logger.Info().
				Str("trade_id", id).
				Float64("allocated", alloc.AllocatedCapital).
				Msg("Sole remaining allocation rebalanced")
		}
	}

	e.logger.Info().Str("trade_id", tradeID).Msg("Capital released")
	return true
}

// CanAccommodateNewTrade reports whether a hypothetical reservation in the
// sector would pass both the concurrency and sector-exposure checks.
func (e *Engine) CanAccommodateNewTrade(sector string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.allocations) >= e.cfg.MaxSimultaneousTrades {
		return false
	}
	allocated := e.capitalAllocationLocked(len(e.allocations))
	sectorLimit := e.cfg.TotalCapital * e.cfg.MaxSectorExposurePercent / 100
	return e.sectorExposureLocked(sector)+allocated <= sectorLimit
}

// SectorExposure returns the aggregate allocated capital for a sector.
func (e *Engine) SectorExposure(sector string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sectorExposureLocked(sector)
}

// Allocation returns the allocation recorded for a trade.
func (e *Engine) Allocation(tradeID string) (models.TradeAllocation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alloc, ok := e.allocations[tradeID]
	return alloc, ok
}

// ActiveCount returns the number of active allocations.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.allocations)
}

// EmergencyReset unconditionally clears all allocations. Administrative kill
// switch; positions already opened are unaffected.
func (e *Engine) EmergencyReset() {
	e.mu.Lock()
	n := len(e.allocations)
	e.allocations = make(map[string]models.TradeAllocation)
	e.mu.Unlock()
	e.logger.Warn().Int("cleared", n).Msg("Emergency reset: all allocations cleared")
}

// Stats is a read-only snapshot of allocation utilization.
type Stats struct {
	TotalCapital       float64
	AllocatedCapital   float64
	AvailableCapital   float64
	UtilizationPercent float64
	ActiveTrades       int
	BySector           map[string]float64
}

// Snapshot returns current utilization. No side effects.
func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		TotalCapital: e.cfg.TotalCapital,
		ActiveTrades: len(e.allocations),
		BySector:     make(map[string]float64),
	}
	for _, alloc := range e.allocations {
		stats.AllocatedCapital += alloc.AllocatedCapital
		stats.BySector[alloc.Sector] += alloc.AllocatedCapital
	}
	stats.AvailableCapital = stats.TotalCapital - stats.AllocatedCapital
	if stats.TotalCapital > 0 {
		stats.UtilizationPercent = stats.AllocatedCapital / stats.TotalCapital * 100
	}
	return stats
}
