package allocation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-engine/internal/errors"
)

func testEngine(cfg Config) *Engine {
	return NewEngine(cfg, zerolog.Nop())
}

func testConfig() Config {
	return Config{
		TotalCapital:             1_000_000,
		MaxSinglePositionPercent: 10,
		MaxSectorExposurePercent: 30,
		MaxSimultaneousTrades:    3,
		CapitalSplitPercent:      25,
	}
}

func TestCapitalAllocationTiers(t *testing.T) {
	e := testEngine(testConfig())

	assert.InDelta(t, 100_000, e.CapitalAllocation(0), 1e-6)
	assert.InDelta(t, 250_000, e.CapitalAllocation(1), 1e-6)
	assert.InDelta(t, 1_000_000.0/3*0.25, e.CapitalAllocation(2), 1e-6)
	// Beyond two active the tier stays flat.
	assert.InDelta(t, e.CapitalAllocation(2), e.CapitalAllocation(5), 1e-6)
}

func TestReserveAcrossSectors(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))
	require.NoError(t, e.ReserveCapitalForTrade("t3", "SUNPHARMA", "PHARMA", 900, 50))

	alloc, ok := e.Allocation("t1")
	require.True(t, ok)
	assert.InDelta(t, 100_000, alloc.AllocatedCapital, 1e-6)
	assert.Equal(t, "IT", alloc.Sector)
	assert.Equal(t, 500, alloc.PositionSize)

	alloc, _ = e.Allocation("t2")
	assert.InDelta(t, 250_000, alloc.AllocatedCapital, 1e-6)
	alloc, _ = e.Allocation("t3")
	assert.InDelta(t, 1_000_000.0/3*0.25, alloc.AllocatedCapital, 1e-6)

	err := e.ReserveCapitalForTrade("t4", "ITC", "FMCG", 400, 100)
	assert.ErrorIs(t, err, errors.ErrMaxTradesReached)
	assert.Equal(t, 3, e.ActiveCount())
}

func TestReserveRejectsSectorBreach(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	// Second-tier grant is 250k; IT already carries 100k against a 300k cap.
	err := e.ReserveCapitalForTrade("t2", "INFY", "IT", 1500, 100)
	require.ErrorIs(t, err, errors.ErrSectorExposure)

	var allocErr *errors.AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "t2", allocErr.TradeID)
	assert.Equal(t, "IT", allocErr.Sector)

	// The failed reservation must leave no residue.
	assert.Equal(t, 1, e.ActiveCount())
	assert.InDelta(t, 100_000, e.SectorExposure("IT"), 1e-6)

	// A different sector still has headroom for the same grant.
	assert.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))
}

func TestReleaseRebalancesSoleSurvivor(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))

	require.True(t, e.ReleaseCapitalForTrade("t1"))

	alloc, ok := e.Allocation("t2")
	require.True(t, ok)
	assert.InDelta(t, 100_000, alloc.AllocatedCapital, 1e-6,
		"sole survivor must be rebalanced to the single-trade tier")

	assert.False(t, e.ReleaseCapitalForTrade("t1"), "double release must report absence")
	assert.False(t, e.ReleaseCapitalForTrade("unknown"))
}

func TestReserveReleaseLeavesNoResidue(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.True(t, e.ReleaseCapitalForTrade("t1"))

	stats := e.Snapshot()
	assert.Zero(t, stats.ActiveTrades)
	assert.Zero(t, stats.AllocatedCapital)
	assert.InDelta(t, stats.TotalCapital, stats.AvailableCapital, 1e-6)
	assert.Zero(t, stats.UtilizationPercent)
	assert.Zero(t, e.SectorExposure("IT"))

	// The cycle must not poison the next reservation.
	require.NoError(t, e.ReserveCapitalForTrade("t2", "TCS", "IT", 100, 500))
	alloc, _ := e.Allocation("t2")
	assert.InDelta(t, 100_000, alloc.AllocatedCapital, 1e-6)
}

func TestConcurrentSameSectorReservations(t *testing.T) {
	// A 12% sector cap (120k) admits the first-tier grant (100k) exactly once;
	// every competing reservation must lose the race cleanly.
	cfg := testConfig()
	cfg.MaxSectorExposurePercent = 12
	e := testEngine(cfg)

	var wg sync.WaitGroup
	granted := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			if e.ReserveCapitalForTrade(id, "TCS", "IT", 100, 500) == nil {
				granted <- id
			}
		}(i)
	}
	wg.Wait()
	close(granted)

	winners := 0
	for range granted {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one reservation fits under the cap")
	assert.LessOrEqual(t, e.SectorExposure("IT"), 120_000.0)
	assert.Equal(t, 1, e.ActiveCount())
}

func TestDiversifiedPositionSize(t *testing.T) {
	e := testEngine(testConfig())

	// Risk budget 10k over a 2-rupee stop is 5000 shares, but 100k of capital
	// at entry 100 caps the position at 1000.
	assert.Equal(t, 1000, e.DiversifiedPositionSize("TCS", 100, 98, 2))

	// A wide stop leaves the risk budget binding.
	assert.Equal(t, 200, e.DiversifiedPositionSize("TCS", 100, 50, 2))

	assert.Zero(t, e.DiversifiedPositionSize("TCS", 100, 100, 2), "zero risk per share")
	assert.Zero(t, e.DiversifiedPositionSize("TCS", 0, 98, 2), "non-positive entry")
}

func TestDiversifiedPositionSizeAtConcurrencyCap(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))
	require.NoError(t, e.ReserveCapitalForTrade("t3", "SUNPHARMA", "PHARMA", 900, 50))

	assert.Zero(t, e.DiversifiedPositionSize("ITC", 400, 395, 2))
}

func TestCanAccommodateNewTrade(t *testing.T) {
	e := testEngine(testConfig())

	assert.True(t, e.CanAccommodateNewTrade("IT"))
	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))

	// The next grant is 250k; IT holds 100k against a 300k cap.
	assert.False(t, e.CanAccommodateNewTrade("IT"))
	assert.True(t, e.CanAccommodateNewTrade("BANKING"))
}

func TestEmergencyReset(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))

	e.EmergencyReset()

	assert.Zero(t, e.ActiveCount())
	assert.Zero(t, e.SectorExposure("IT"))
	require.NoError(t, e.ReserveCapitalForTrade("t3", "ITC", "FMCG", 400, 100))
	alloc, _ := e.Allocation("t3")
	assert.InDelta(t, 100_000, alloc.AllocatedCapital, 1e-6)
}

func TestSnapshotBySector(t *testing.T) {
	e := testEngine(testConfig())

	require.NoError(t, e.ReserveCapitalForTrade("t1", "TCS", "IT", 100, 500))
	require.NoError(t, e.ReserveCapitalForTrade("t2", "SBIN", "BANKING", 500, 200))

	stats := e.Snapshot()
	assert.Equal(t, 2, stats.ActiveTrades)
	assert.InDelta(t, 350_000, stats.AllocatedCapital, 1e-6)
	assert.InDelta(t, 650_000, stats.AvailableCapital, 1e-6)
	assert.InDelta(t, 35, stats.UtilizationPercent, 1e-6)
	assert.InDelta(t, 100_000, stats.BySector["IT"], 1e-6)
	assert.InDelta(t, 250_000, stats.BySector["BANKING"], 1e-6)
}
