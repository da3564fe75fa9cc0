// Package signals provides the concurrent index of candidate signals awaiting selection.
package signals

import (
	"sync"
	"time"

	"signal-engine/internal/models"
)

// Index stores candidate signals keyed by ID with a secondary per-instrument
// index for constant-time duplicate-strategy checks. A single lock guards both
// maps, so readers never observe a signal present in one index and permanently
// absent from the other.
type Index struct {
	mu       sync.RWMutex
	byID     map[string]models.CandidateSignal
	bySymbol map[string]map[string]struct{}
}

// NewIndex creates an empty signal index.
func NewIndex() *Index {
	return &Index{
		byID:     make(map[string]models.CandidateSignal),
		bySymbol: make(map[string]map[string]struct{}),
	}
}

// Add inserts a signal into both indexes. An existing signal with the same ID
// is overwritten.
func (i *Index) Add(sig models.CandidateSignal) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if old, ok := i.byID[sig.ID]; ok && old.Symbol != sig.Symbol {
		i.removeFromSymbolLocked(old.Symbol, old.ID)
	}

	i.byID[sig.ID] = sig
	ids, ok := i.bySymbol[sig.Symbol]
	if !ok {
		ids = make(map[string]struct{})
		i.bySymbol[sig.Symbol] = ids
	}
	ids[sig.ID] = struct{}{}
}

// Remove deletes a signal from both indexes. When an instrument's secondary
// set becomes empty its bucket is deleted too. Returns false if the ID was
// not present.
func (i *Index) Remove(signalID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	sig, ok := i.byID[signalID]
	if !ok {
		return false
	}
	delete(i.byID, signalID)
	i.removeFromSymbolLocked(sig.Symbol, signalID)
	return true
}

func (i *Index) removeFromSymbolLocked(symbol, signalID string) {
	ids, ok := i.bySymbol[symbol]
	if !ok {
		return
	}
	delete(ids, signalID)
	if len(ids) == 0 {
		delete(i.bySymbol, symbol)
	}
}

// Get returns the signal with the given ID.
func (i *Index) Get(signalID string) (models.CandidateSignal, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	sig, ok := i.byID[signalID]
	return sig, ok
}

// SignalsFor returns all signals queued for an instrument.
func (i *Index) SignalsFor(symbol string) []models.CandidateSignal {
	i.mu.RLock()
	defer i.mu.RUnlock()

	ids, ok := i.bySymbol[symbol]
	if !ok {
		return nil
	}
	out := make([]models.CandidateSignal, 0, len(ids))
	for id := range ids {
		if sig, ok := i.byID[id]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// HasPendingSignal reports whether a signal for the instrument/strategy pair is
// already queued. Used to prevent duplicate strategy submissions.
func (i *Index) HasPendingSignal(symbol, strategy string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for id := range i.bySymbol[symbol] {
		if sig, ok := i.byID[id]; ok && sig.Strategy == strategy {
			return true
		}
	}
	return false
}

// ExpireOlderThan sweeps both indexes and removes every signal whose expiry has
// passed at the given instant. Returns the number of signals removed. Safe to
// invoke concurrently with inserts and removes.
func (i *Index) ExpireOlderThan(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for id, sig := range i.byID {
		if sig.Expired(now) {
			delete(i.byID, id)
			i.removeFromSymbolLocked(sig.Symbol, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of queued signals.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byID)
}

// CountsByStrategy returns the number of queued signals per strategy tag.
func (i *Index) CountsByStrategy() map[string]int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[string]int)
	for _, sig := range i.byID {
		counts[sig.Strategy]++
	}
	return counts
}

// CountsByType returns the number of queued signals per signal type.
func (i *Index) CountsByType() map[models.SignalType]int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[models.SignalType]int)
	for _, sig := range i.byID {
		counts[sig.Type]++
	}
	return counts
}
