// Command simulate runs a single strategy backtest and prints its metrics.
//
// Price data comes from a CSV file (token,timestamp,price rows) or from a
// ClickHouse history store. The scenario file holds the strategy blocks and
// the backtest window; an optimization job file works unchanged, its search
// sections are ignored.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/metrics"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/reporting"
	"defi-strategy-lab/internal/simulation"
	chstore "defi-strategy-lab/internal/storage/clickhouse"
)

func main() {
	// Parse flags
	scenarioPath := flag.String("scenario", "", "Scenario YAML file: strategy plus backtest window (required)")
	pricesPath := flag.String("prices", "", "Price history CSV (token,timestamp,price)")
	volumesPath := flag.String("volumes", "", "Volume history CSV (token,timestamp,volume)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string, used when no --prices file is given")

	// Output
	equityCSV := flag.String("equity-csv", "", "Write the equity curve to this CSV file")
	tradesCSV := flag.String("trades-csv", "", "Write the trade log to this CSV file")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	// Validate required flags
	if *scenarioPath == "" {
		logger.Fatal("--scenario is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load scenario
	sc, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}
	cfg, err := sc.Backtest.ToDomain()
	if err != nil {
		logger.Fatalf("invalid backtest window: %v", err)
	}

	// Build price sources
	oracle, volumes, cleanup, err := buildSources(ctx, *pricesPath, *volumesPath, *clickhouseDSN)
	if err != nil {
		logger.Fatal(err)
	}
	defer cleanup()

	// Run simulation
	runner := simulation.NewRunner(simulation.RunnerOptions{
		Oracle:  oracle,
		Volumes: volumes,
	})
	res, err := runner.Run(ctx, sc.Blocks(), cfg)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}

	// Optional CSV outputs
	if *equityCSV != "" {
		if err := os.WriteFile(*equityCSV, []byte(reporting.RenderEquityCSV(res.EquityCurve)), 0o644); err != nil {
			logger.Fatalf("write equity curve: %v", err)
		}
		logger.Printf("Equity curve written to %s", *equityCSV)
	}
	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(res.Trades)), 0o644); err != nil {
			logger.Fatalf("write trade log: %v", err)
		}
		logger.Printf("Trade log written to %s", *tradesCSV)
	}

	// Output result
	if *outputJSON {
		printJSON(res)
	} else {
		printSummary(sc, cfg, res)
	}
}

// buildSources resolves the price oracle and volume source: CSV files when
// given, the ClickHouse history store otherwise. The cleanup closes the
// store connection when one was opened.
func buildSources(ctx context.Context, pricesPath, volumesPath, clickhouseDSN string) (pricing.Oracle, pricing.VolumeSource, func(), error) {
	noop := func() {}

	if pricesPath != "" {
		prices, err := pricing.LoadPricesCSV(pricesPath)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("load prices: %w", err)
		}
		var volumes map[string][]domain.VolumePoint
		if volumesPath != "" {
			volumes, err = pricing.LoadVolumesCSV(volumesPath)
			if err != nil {
				return nil, nil, noop, fmt.Errorf("load volumes: %w", err)
			}
		}
		o := pricing.NewStaticOracle(prices, volumes)
		return o, o, noop, nil
	}

	if clickhouseDSN == "" {
		return nil, nil, noop, errors.New("price data required: pass --prices or --clickhouse-dsn")
	}
	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, noop, fmt.Errorf("connect to clickhouse: %w", err)
	}
	o := pricing.NewStoreOracle(chstore.NewPriceHistoryStore(conn), chstore.NewVolumeHistoryStore(conn))
	return o, o, func() { conn.Close() }, nil
}

// printJSON outputs the metrics and run counters as JSON.
func printJSON(res *simulation.Result) {
	out := struct {
		Metrics      *metrics.Metrics `json:"metrics"`
		Steps        int              `json:"steps"`
		SkippedSteps int              `json:"skippedSteps"`
		Trades       int              `json:"trades"`
	}{
		Metrics:      res.Metrics,
		Steps:        res.Steps,
		SkippedSteps: res.SkippedSteps,
		Trades:       len(res.Trades),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

// printSummary outputs a human-readable backtest result.
func printSummary(sc *config.Scenario, cfg domain.BacktestConfig, res *simulation.Result) {
	m := res.Metrics

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	if sc.Strategy.Name != "" {
		fmt.Printf("Strategy:           %s\n", sc.Strategy.Name)
	}
	fmt.Printf("Window:             %s .. %s\n",
		time.UnixMilli(cfg.StartMs).UTC().Format(time.RFC3339),
		time.UnixMilli(cfg.EndMs).UTC().Format(time.RFC3339))
	fmt.Printf("Initial Capital:    %.2f %s\n", cfg.InitialCapital, cfg.CapitalToken)
	fmt.Printf("Steps:              %d (%d skipped for missing prices)\n", res.Steps, res.SkippedSteps)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Total Return:     %.2f%%\n", m.TotalReturnPct)
	fmt.Printf("  Sharpe Ratio:     %.4f\n", m.SharpeRatio)
	fmt.Printf("  Sortino Ratio:    %.4f\n", m.SortinoRatio)
	fmt.Printf("  Calmar Ratio:     %.4f\n", m.CalmarRatio)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", m.MaxDrawdownPct)
	fmt.Println()

	fmt.Println("Trading:")
	fmt.Printf("  Trades:           %d\n", m.TotalTrades)
	fmt.Printf("  Win Rate:         %.2f%% (%d winning)\n", m.WinRatePct, m.WinTrades)
	fmt.Printf("  Gas Spent:        %.2f USD\n", m.TotalGasUsd)
	fmt.Printf("  Fees Spent:       %.2f USD\n", m.TotalFeesUsd)

	if len(res.EquityCurve) > 0 {
		final := res.EquityCurve[len(res.EquityCurve)-1]
		fmt.Println()
		fmt.Printf("Final Equity:       %.2f USD\n", final.EquityUsd)
	}
}
