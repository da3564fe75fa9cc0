package signals

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-engine/internal/models"
)

func testSignal(id, symbol, strategy string) models.CandidateSignal {
	return models.CandidateSignal{
		ID:         id,
		Symbol:     symbol,
		Strategy:   strategy,
		Type:       models.SignalLong,
		EntryPrice: 100,
		StopLoss:   98,
		RiskReward: 2,
		Confidence: models.ConfidenceMedium,
		QueuedAt:   time.Now(),
		ExpiresAt:  time.Now().Add(15 * time.Minute),
	}
}

func TestAddThenRemove(t *testing.T) {
	idx := NewIndex()
	idx.Add(testSignal("s1", "RELIANCE", "orb"))

	_, ok := idx.Get("s1")
	require.True(t, ok)
	require.Len(t, idx.SignalsFor("RELIANCE"), 1)

	require.True(t, idx.Remove("s1"))

	_, ok = idx.Get("s1")
	assert.False(t, ok, "primary lookup must be absent after remove")
	assert.Empty(t, idx.SignalsFor("RELIANCE"), "per-instrument lookup must be absent after remove")
	assert.False(t, idx.Remove("s1"), "second remove must report absence")
}

func TestRemoveLeavesSiblingRetrievable(t *testing.T) {
	idx := NewIndex()
	idx.Add(testSignal("s1", "TCS", "orb"))
	idx.Add(testSignal("s2", "TCS", "vwap"))

	require.True(t, idx.Remove("s1"))

	sigs := idx.SignalsFor("TCS")
	require.Len(t, sigs, 1)
	assert.Equal(t, "s2", sigs[0].ID)
}

func TestHasPendingSignal(t *testing.T) {
	idx := NewIndex()
	idx.Add(testSignal("s1", "INFY", "orb"))

	assert.True(t, idx.HasPendingSignal("INFY", "orb"))
	assert.False(t, idx.HasPendingSignal("INFY", "vwap"))
	assert.False(t, idx.HasPendingSignal("TCS", "orb"))
}

func TestExpireOlderThan(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	fresh := testSignal("fresh", "SBIN", "orb")
	fresh.ExpiresAt = now.Add(10 * time.Minute)
	stale := testSignal("stale", "SBIN", "vwap")
	stale.ExpiresAt = now.Add(-time.Minute)
	staleOther := testSignal("stale2", "ITC", "orb")
	staleOther.ExpiresAt = now.Add(-time.Second)

	idx.Add(fresh)
	idx.Add(stale)
	idx.Add(staleOther)

	removed := idx.ExpireOlderThan(now)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Len())

	_, ok := idx.Get("fresh")
	assert.True(t, ok)
	assert.Empty(t, idx.SignalsFor("ITC"), "emptied instrument bucket must be deleted")
}

func TestAddOverwriteMovesSymbol(t *testing.T) {
	idx := NewIndex()
	idx.Add(testSignal("s1", "TCS", "orb"))

	moved := testSignal("s1", "INFY", "orb")
	idx.Add(moved)

	assert.Empty(t, idx.SignalsFor("TCS"))
	require.Len(t, idx.SignalsFor("INFY"), 1)
	assert.Equal(t, 1, idx.Len())
}

func TestCounts(t *testing.T) {
	idx := NewIndex()
	idx.Add(testSignal("s1", "TCS", "orb"))
	idx.Add(testSignal("s2", "INFY", "orb"))
	short := testSignal("s3", "SBIN", "vwap")
	short.Type = models.SignalShort
	idx.Add(short)

	assert.Equal(t, map[string]int{"orb": 2, "vwap": 1}, idx.CountsByStrategy())
	assert.Equal(t, map[models.SignalType]int{models.SignalLong: 2, models.SignalShort: 1}, idx.CountsByType())
}

func TestConcurrentAddRemoveExpire(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("g%d-s%d", g, i)
				sig := testSignal(id, fmt.Sprintf("SYM%d", i%10), "orb")
				if i%2 == 0 {
					sig.ExpiresAt = now.Add(-time.Minute)
				}
				idx.Add(sig)
				if i%3 == 0 {
					idx.Remove(id)
				}
				if i%50 == 0 {
					idx.ExpireOlderThan(now)
				}
			}
		}(g)
	}
	wg.Wait()

	idx.ExpireOlderThan(now)

	// Every surviving signal must be present in both indexes.
	for _, counts := range []int{idx.Len()} {
		total := 0
		for sym := 0; sym < 10; sym++ {
			total += len(idx.SignalsFor(fmt.Sprintf("SYM%d", sym)))
		}
		assert.Equal(t, counts, total, "primary and secondary indexes disagree")
	}
}
