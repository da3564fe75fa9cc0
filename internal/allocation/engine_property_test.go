package allocation

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

// Property: for any interleaving of reservations across sectors, no sector's
// aggregate allocation ever exceeds the configured exposure cap, and the
// snapshot totals stay consistent with the per-trade allocations.
func TestProperty_SectorCapNeverBreached(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	sectors := []string{"IT", "BANKING", "PHARMA", "FMCG", "AUTO"}

	properties.Property("sector exposure stays under the cap", prop.ForAll(
		func(totalCapital float64, sectorPct float64, attempts []int) bool {
			e := NewEngine(Config{
				TotalCapital:             totalCapital,
				MaxSinglePositionPercent: 10,
				MaxSectorExposurePercent: sectorPct,
				MaxSimultaneousTrades:    3,
				CapitalSplitPercent:      25,
			}, zerolog.Nop())

			for i, pick := range attempts {
				sector := sectors[pick%len(sectors)]
				e.ReserveCapitalForTrade(fmt.Sprintf("t%d", i), "SYM", sector, 100, 10)
			}

			limit := totalCapital * sectorPct / 100
			var sum float64
			for _, sector := range sectors {
				exposure := e.SectorExposure(sector)
				if exposure > limit+1e-6 {
					return false
				}
				sum += exposure
			}

			stats := e.Snapshot()
			if math.Abs(stats.AllocatedCapital-sum) > 1e-6 {
				return false
			}
			return math.Abs(stats.AvailableCapital-(totalCapital-sum)) < 1e-6
		},
		gen.Float64Range(100_000, 10_000_000),
		gen.Float64Range(5, 50),
		gen.SliceOfN(10, gen.IntRange(0, 100)),
	))

	// Property: releasing everything that was reserved always restores the
	// engine to a clean state, regardless of the reserve/release interleaving.
	properties.Property("full release restores all capital", prop.ForAll(
		func(totalCapital float64, count int) bool {
			e := NewEngine(Config{
				TotalCapital:             totalCapital,
				MaxSinglePositionPercent: 10,
				MaxSectorExposurePercent: 100,
				MaxSimultaneousTrades:    3,
				CapitalSplitPercent:      25,
			}, zerolog.Nop())

			var reserved []string
			for i := 0; i < count; i++ {
				id := fmt.Sprintf("t%d", i)
				if e.ReserveCapitalForTrade(id, "SYM", sectors[i%len(sectors)], 100, 10) == nil {
					reserved = append(reserved, id)
				}
			}
			for _, id := range reserved {
				if !e.ReleaseCapitalForTrade(id) {
					return false
				}
			}

			stats := e.Snapshot()
			return stats.ActiveTrades == 0 &&
				stats.AllocatedCapital == 0 &&
				math.Abs(stats.AvailableCapital-totalCapital) < 1e-6
		},
		gen.Float64Range(100_000, 10_000_000),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
