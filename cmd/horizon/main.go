package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/broker"
	"github.com/sawpanic/horizon/internal/config"
	"github.com/sawpanic/horizon/internal/data"
	"github.com/sawpanic/horizon/internal/domain"
	"github.com/sawpanic/horizon/internal/engine"
	"github.com/sawpanic/horizon/internal/events"
	"github.com/sawpanic/horizon/internal/httpapi"
	"github.com/sawpanic/horizon/internal/metrics"
	"github.com/sawpanic/horizon/internal/perf"
	"github.com/sawpanic/horizon/internal/persistence/postgres"
	"github.com/sawpanic/horizon/internal/regime"
	"github.com/sawpanic/horizon/internal/risk"
	"github.com/sawpanic/horizon/internal/strategy"
)

const version = "0.1.0"

// demoUniverse backs `scan`/`serve` when no config file is given, paired
// with the simulated feed so the binary works out of the box.
var demoUniverse = []string{
	"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK",
	"BHARTIARTL", "SBIN", "LT", "ITC", "ASIANPAINT",
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:     "horizon",
		Short:   "Multi-horizon equity trading engine",
		Version: version,
		Long: `Horizon runs four position books side by side, from intraday
breakouts to multi-year compounders, under a shared capital allocator
that scores each horizon's realized performance and shifts weight
toward what is working.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (defaults apply when omitted)")

	root.AddCommand(newScanCmd(&cfgPath))
	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newStatusCmd())
	return root
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if len(cfg.Universe.Symbols) == 0 {
		cfg.Universe.Symbols = demoUniverse
	}
	return cfg, nil
}

// stack bundles everything a command needs to run the engine.
type stack struct {
	engine    *engine.Engine
	allocator *alloc.Allocator
	metrics   *metrics.Registry
	sink      events.Sink
}

func (s *stack) close() {
	if err := s.sink.Close(); err != nil {
		log.Warn().Err(err).Msg("Event sink close failed")
	}
}

func buildStack(cfg config.Config) (*stack, error) {
	provider := data.NewCachedProvider(
		data.NewGuardedProvider(data.NewSimProvider(), data.GuardConfig{
			Name:        "sim",
			RPS:         cfg.Data.RPS,
			Burst:       cfg.Data.Burst,
			CallTimeout: cfg.Data.CallTimeout.Std(),
		}),
		data.NewAutoCache(),
	)

	regimes := regime.NewCache(regime.NewClassifier(), func(ctx context.Context, symbol string, tf domain.Timeframe) ([]domain.Bar, error) {
		return provider.Bars(ctx, symbol, tf, regimeBarLimit(tf))
	})

	allocator, err := alloc.New(cfg.AllocatorConfig(), perf.NewTracker(), cfg.Capital.Total)
	if err != nil {
		return nil, err
	}

	strategies := map[domain.Horizon]strategy.Strategy{
		domain.Intraday: strategy.NewIntraday(strategy.DefaultSession(), risk.NewChecklist(cfg.Risk.MinRiskReward)),
		domain.Swing:    strategy.NewSwing(),
		domain.MidTerm:  strategy.NewMidTerm(),
		domain.LongTerm: strategy.NewLongTerm(),
	}

	var sink events.Sink = events.NopSink{}
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(cfg.Database.DSN, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect journal database: %w", err)
		}
		sink = postgres.NewJournalSink(db, 5*time.Second)
	}

	reg := metrics.NewRegistry()

	engCfg := engine.DefaultConfig()
	engCfg.Symbols = cfg.Universe.Symbols
	engCfg.IndexSymbol = cfg.Universe.IndexSymbol
	engCfg.RiskFractions = cfg.RiskFractionByHorizon()
	engCfg.MaxOpen = cfg.MaxOpenByHorizon()
	engCfg.FetchWorkers = cfg.Data.FetchWorkers

	eng, err := engine.New(engCfg, provider, regimes, allocator,
		strategies, broker.NewPaper(cfg.Broker.CommissionBps, cfg.Broker.SlippageBps), sink, reg)
	if err != nil {
		return nil, err
	}

	return &stack{engine: eng, allocator: allocator, metrics: reg, sink: sink}, nil
}

func regimeBarLimit(tf domain.Timeframe) int {
	switch tf {
	case domain.TF15Min:
		return 100
	case domain.TFWeekly:
		return 30
	default:
		return 220
	}
}

func newScanCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and print the resulting book state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := st.engine.RunCycle(ctx); err != nil {
				return err
			}
			st.engine.PollExits(ctx)

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"allocation": st.allocator.Summary(),
				"positions":  st.engine.Positions(),
			})
		},
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine loop with the status and metrics server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := httpapi.NewServer(cfg.Server.Addr, st.engine, st.allocator, st.metrics)
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server stopped")
					stop()
				}
			}()
			log.Info().
				Str("addr", cfg.Server.Addr).
				Int("symbols", len(cfg.Universe.Symbols)).
				Msg("Horizon engine starting")

			err = st.engine.Run(ctx, cfg.Data.ScanInterval.Std(), cfg.Data.ExitInterval.Std())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
				log.Warn().Err(sErr).Msg("HTTP shutdown failed")
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
			log.Info().Msg("Horizon engine stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override, e.g. :8080")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running engine's allocation and open positions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := addr
			if !strings.Contains(url, "://") {
				if strings.HasPrefix(url, ":") {
					url = "localhost" + url
				}
				url = "http://" + url
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/status", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("engine unreachable at %s: %w", url, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("engine returned %s", resp.Status)
			}

			var body any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address of the running engine")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
