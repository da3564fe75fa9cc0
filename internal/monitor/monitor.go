// Package monitor provides read-only stat snapshots of the engine core.
package monitor

import (
	"time"

	"signal-engine/internal/admission"
	"signal-engine/internal/allocation"
	"signal-engine/internal/models"
	"signal-engine/internal/selector"
	"signal-engine/internal/signals"
)

// Snapshot is a point-in-time view of the engine. Building one has no side
// effects on any component.
type Snapshot struct {
	Timestamp time.Time

	// Configured permits-per-second per operation class.
	Rates map[admission.Class]float64

	// Capital utilization.
	Allocation allocation.Stats

	// Pending signal counts.
	PendingSignals    int
	PendingByStrategy map[string]int
	PendingByType     map[models.SignalType]int

	// Selector state.
	SelectorState selector.State
	WindowQueue   int
	TradeActive   bool
	ActiveTrade   models.ActiveTradeRecord
}

// Monitor aggregates component introspection into snapshots.
type Monitor struct {
	admission *admission.Controller
	alloc     *allocation.Engine
	index     *signals.Index
	selector  *selector.Selector
}

// New creates a monitor over the engine components.
func New(adm *admission.Controller, alloc *allocation.Engine, index *signals.Index, sel *selector.Selector) *Monitor {
	return &Monitor{
		admission: adm,
		alloc:     alloc,
		index:     index,
		selector:  sel,
	}
}

// Snapshot collects the current state of every component.
func (m *Monitor) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:         time.Now(),
		Rates:             m.admission.Rates(),
		Allocation:        m.alloc.Snapshot(),
		PendingSignals:    m.index.Len(),
		PendingByStrategy: m.index.CountsByStrategy(),
		PendingByType:     m.index.CountsByType(),
		SelectorState:     m.selector.State(),
		WindowQueue:       m.selector.QueueLen(),
	}
	if trade, ok := m.selector.ActiveTrade(); ok {
		snap.TradeActive = true
		snap.ActiveTrade = trade
	}
	return snap
}
