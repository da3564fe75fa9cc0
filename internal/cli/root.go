// Package cli provides the command-line interface for the execution engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-engine/internal/admission"
	"signal-engine/internal/allocation"
	"signal-engine/internal/config"
	"signal-engine/internal/ledger"
	"signal-engine/internal/logging"
	"signal-engine/internal/marketdata"
	"signal-engine/internal/models"
	"signal-engine/internal/monitor"
	"signal-engine/internal/notify"
	"signal-engine/internal/predictions"
	"signal-engine/internal/selector"
	"signal-engine/internal/signals"
	"signal-engine/internal/store"
	"signal-engine/pkg/utils"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	KV          store.KVStore
	Journal     *store.Journal
	Admission   *admission.Controller
	Index       *signals.Index
	Selector    *selector.Selector
	Allocator   *allocation.Engine
	Ledger      *ledger.Ledger
	Monitor     *monitor.Monitor
	Predictions *predictions.Reader
	MarketData  *marketdata.Client
	Reference   *marketdata.ReferenceClient
	Notifier    notify.Notifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{Config: cfg, Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "engine",
		Short: "Signal Engine - single-process trade coordination core",
		Long: `Signal Engine coordinates automated trading decisions: it gates outbound
broker calls, collects competing trade signals into a selection window, admits
at most one active trade, reserves capital under sector-exposure caps, and
records fills against a position ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return app.wire(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-engine)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))
	rootCmd.AddCommand(newReplayCmd(app))

	return rootCmd
}

// wire constructs the engine components. Redis is preferred for the ledger
// store; when unreachable the engine falls back to the in-memory store so
// paper runs and replays still work.
func (a *App) wire(ctx context.Context) error {
	if a.KV != nil {
		return nil // already wired
	}

	cfg := a.Config

	kv, err := store.NewRedisStore(ctx, store.RedisConfig{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Redis unavailable, using in-memory store")
		a.KV = store.NewMemoryStore()
	} else {
		a.KV = kv
		a.Logger.Debug().Str("addr", cfg.Store.RedisAddr).Msg("Redis store initialized")
	}

	if cfg.Store.JournalPath != "" {
		journal, err := store.NewJournal(cfg.Store.JournalPath)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to initialize journal, journaling disabled")
		} else {
			a.Journal = journal
			a.Logger.Debug().Str("path", cfg.Store.JournalPath).Msg("Journal initialized")
		}
	}

	a.Admission = admission.NewController(admission.Config{
		OrdersPerSecond:     cfg.RateLimits.OrdersPerSecond,
		QuotesPerSecond:     cfg.RateLimits.QuotesPerSecond,
		PositionsPerSecond:  cfg.RateLimits.PositionsPerSecond,
		MarketDataPerSecond: cfg.RateLimits.MarketDataPerSecond,
		AcquireTimeout:      cfg.RateLimits.AcquireTimeout(),
	}, a.Logger)

	a.Index = signals.NewIndex()
	a.Selector = selector.New(selector.Config{
		Window:    cfg.Selection.Window(),
		MinScore:  cfg.Selection.MinScore,
		SignalTTL: cfg.Selection.SignalTTL(),
	}, a.Index, a.Logger)

	a.Allocator = allocation.NewEngine(allocation.Config{
		TotalCapital:             cfg.Capital.TotalCapital,
		MaxSinglePositionPercent: cfg.Capital.MaxSinglePositionPercent,
		MaxSectorExposurePercent: cfg.Capital.MaxSectorExposurePercent,
		MaxSimultaneousTrades:    cfg.Capital.MaxSimultaneousTrades,
		CapitalSplitPercent:      cfg.Capital.CapitalSplitPercent,
	}, a.Logger)

	a.Ledger = ledger.New(a.KV, a.Journal, a.Logger)
	a.Monitor = monitor.New(a.Admission, a.Allocator, a.Index, a.Selector)
	a.Predictions = predictions.NewReader(predictions.Config{
		KeyPrefix: cfg.Predictions.KeyPrefix,
		MaxAge:    cfg.Predictions.MaxAge(),
	}, a.KV, a.Logger)
	a.MarketData = marketdata.NewClient(marketdata.Config{
		BaseURL:  cfg.MarketData.BaseURL,
		CacheTTL: cfg.MarketData.CacheTTL(),
		Timeout:  cfg.MarketData.Timeout(),
	}, a.Logger)
	a.Reference = marketdata.NewReferenceClient(a.MarketData)
	a.Notifier = notify.NewTerminalNotifier(os.Stdout)

	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Signal Engine v%s\n", Version)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				data, err := json.MarshalIndent(app.Config, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			showConfig(app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.DefaultConfigDir())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Config.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(cfg *config.Config) {
	fmt.Println("Capital")
	fmt.Printf("  Total Capital:   %.2f\n", cfg.Capital.TotalCapital)
	fmt.Printf("  Max Single %%:    %.1f%%\n", cfg.Capital.MaxSinglePositionPercent)
	fmt.Printf("  Max Sector %%:    %.1f%%\n", cfg.Capital.MaxSectorExposurePercent)
	fmt.Printf("  Max Trades:      %d\n", cfg.Capital.MaxSimultaneousTrades)
	fmt.Printf("  Split %%:         %.1f%%\n", cfg.Capital.CapitalSplitPercent)
	fmt.Println("Selection")
	fmt.Printf("  Window:          %s\n", cfg.Selection.Window())
	fmt.Printf("  Min Score:       %.2f\n", cfg.Selection.MinScore)
	fmt.Printf("  Signal TTL:      %s\n", cfg.Selection.SignalTTL())
	fmt.Println("Rate Limits (per second)")
	fmt.Printf("  Orders:          %.1f\n", cfg.RateLimits.OrdersPerSecond)
	fmt.Printf("  Quotes:          %.1f\n", cfg.RateLimits.QuotesPerSecond)
	fmt.Printf("  Positions:       %.1f\n", cfg.RateLimits.PositionsPerSecond)
	fmt.Printf("  Market Data:     %.1f\n", cfg.RateLimits.MarketDataPerSecond)
}

// newRunCmd starts the engine loop: an expiry sweeper over the signal index
// plus a periodic status log, until interrupted.
func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app.Selector.OnAdmit(func(trade models.ActiveTradeRecord) {
				allocated := 0.0
				size := 0
				if alloc, ok := app.Allocator.Allocation(trade.TradeID); ok {
					allocated = alloc.AllocatedCapital
					size = alloc.PositionSize
				}
				app.Notifier.TradeAdmitted(trade, allocated, size)
			})

			app.Logger.Info().
				Str("market", string(utils.MarketStatusAt(time.Now()))).
				Msg("Engine started")

			sweep := time.NewTicker(time.Minute)
			defer sweep.Stop()
			status := time.NewTicker(5 * time.Minute)
			defer status.Stop()

			for {
				select {
				case <-ctx.Done():
					app.Selector.Stop()
					app.Logger.Info().Msg("Engine stopped")
					return nil
				case <-sweep.C:
					if removed := app.Index.ExpireOlderThan(time.Now()); removed > 0 {
						app.Logger.Info().Int("removed", removed).Msg("Expired signals swept")
					}
				case <-status.C:
					snap := app.Monitor.Snapshot()
					app.Logger.Info().
						Int("pending", snap.PendingSignals).
						Bool("trade_active", snap.TradeActive).
						Float64("utilization_pct", snap.Allocation.UtilizationPercent).
						Msg("Engine status")
				}
			}
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a snapshot of engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := app.Monitor.Snapshot()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Snapshot at %s\n", snap.Timestamp.Format(time.RFC3339))
			fmt.Printf("  Selector:        %s (queue %d)\n", snap.SelectorState, snap.WindowQueue)
			fmt.Printf("  Pending signals: %d\n", snap.PendingSignals)
			if snap.TradeActive {
				fmt.Printf("  Active trade:    %s %s (%s)\n", snap.ActiveTrade.TradeID, snap.ActiveTrade.Symbol, snap.ActiveTrade.Status)
			} else {
				fmt.Println("  Active trade:    none")
			}
			fmt.Printf("  Capital used:    %s / %s (%s)\n",
				utils.FormatIndianCurrency(snap.Allocation.AllocatedCapital),
				utils.FormatIndianCurrency(snap.Allocation.TotalCapital),
				utils.FormatPercent(snap.Allocation.UtilizationPercent))
			for class, rate := range snap.Rates {
				fmt.Printf("  Rate %-12s %.1f/s\n", string(class)+":", rate)
			}
			return nil
		},
	}
}

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the local order journal",
	}

	ordersCmd := &cobra.Command{
		Use:   "orders [symbol]",
		Short: "List recent recorded orders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Journal == nil {
				return fmt.Errorf("journal is not configured")
			}
			symbol := ""
			if len(args) > 0 {
				symbol = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")
			orders, err := app.Journal.Orders(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			for _, o := range orders {
				fmt.Printf("%s  %-10s %-4s %6d @ %.2f  %s\n",
					time.UnixMilli(o.Timestamp).Format("2006-01-02 15:04:05"),
					o.Symbol, o.Side, o.Quantity, o.Price, o.Mode)
			}
			return nil
		},
	}
	ordersCmd.Flags().Int("limit", 50, "maximum orders to list")
	cmd.AddCommand(ordersCmd)

	return cmd
}
