package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"signal-engine/internal/models"
	"signal-engine/internal/replay"
)

// newReplayCmd replays historical candles through the live selection,
// allocation, and ledger path. Signal generation proper is external to the
// engine; the built-in breakout rule exists only so a dry run has something
// to drive the pipeline with.
func newReplayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <symbol>",
		Short: "Replay historical candles through the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			days, _ := cmd.Flags().GetInt("days")
			interval, _ := cmd.Flags().GetString("interval")
			sector, _ := cmd.Flags().GetString("sector")

			to := time.Now()
			from := to.AddDate(0, 0, -days)

			candles, err := app.MarketData.FetchCandles(cmd.Context(), symbol, interval, from, to)
			if err != nil {
				return fmt.Errorf("fetching candles: %w", err)
			}
			if len(candles) == 0 {
				return fmt.Errorf("no candles for %s in the last %d days", symbol, days)
			}

			runner := replay.NewRunner(app.Selector, app.Allocator, app.Ledger,
				func(string) string { return sector }, app.Logger)

			result, err := runner.Run(cmd.Context(), symbol, candles, breakoutStrategy())
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			fmt.Printf("Replayed %d candles for %s\n", result.CandlesReplayed, symbol)
			fmt.Printf("  Signals emitted:  %d (rejected %d)\n", result.SignalsEmitted, result.SignalsRejected)
			fmt.Printf("  Trades admitted:  %d (allocated %d)\n", result.TradesAdmitted, result.TradesAllocated)
			fmt.Printf("  Orders recorded:  %d\n", result.OrdersRecorded)
			fmt.Printf("  Utilization:      %.1f%%\n", result.FinalUtilization)
			return nil
		},
	}
	cmd.Flags().Int("days", 5, "days of history to replay")
	cmd.Flags().String("interval", "5minute", "candle interval")
	cmd.Flags().String("sector", "UNKNOWN", "sector tag for allocations")
	return cmd
}

// breakoutStrategy emits a long signal when a candle closes above the previous
// candle's high. Dry-run harness only.
func breakoutStrategy() replay.Strategy {
	var prev *models.Candle
	return func(symbol string, candle models.Candle) []models.CandidateSignal {
		defer func() {
			c := candle
			prev = &c
		}()
		if prev == nil || candle.Close <= prev.High {
			return nil
		}
		risk := candle.Close - prev.Low
		if risk <= 0 {
			return nil
		}
		return []models.CandidateSignal{{
			ID:         uuid.NewString(),
			Symbol:     symbol,
			Strategy:   "replay-breakout",
			Type:       models.SignalLong,
			EntryPrice: candle.Close,
			StopLoss:   prev.Low,
			Target1:    candle.Close + 2*risk,
			RiskReward: 2,
			Confidence: models.ConfidenceMedium,
			QueuedAt:   candle.Timestamp,
		}}
	}
}
