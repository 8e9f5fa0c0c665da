// Command verify re-evaluates the persisted solutions of an optimization run
// and compares the recomputed scores against the recorded ones. The job file
// must be the one the run was optimized from, and the price data must cover
// the same window; with both fixed, any divergence means the engine changed.
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

	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/optimize"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/simulation"
	chstore "defi-strategy-lab/internal/storage/clickhouse"
	pgstore "defi-strategy-lab/internal/storage/postgres"
	"defi-strategy-lab/internal/verification"
)

func main() {
	// Parse flags
	jobPath := flag.String("job", "", "Job YAML the run was optimized from (required)")
	runID := flag.String("run-id", "", "Run to verify; empty picks the most recent run")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (env POSTGRES_DSN)")
	pricesPath := flag.String("prices", "", "Price history CSV (token,timestamp,price)")
	volumesPath := flag.String("volumes", "", "Volume history CSV (token,timestamp,volume)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string, used when no --prices file is given")
	verifyAll := flag.Bool("all", false, "Verify every solution, not just the Pareto frontier")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags)

	// Validate required flags
	if *jobPath == "" {
		logger.Fatal("--job is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
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

	// Load the job the run was optimized from
	job, err := config.LoadJob(*jobPath)
	if err != nil {
		logger.Fatalf("invalid job file: %v", err)
	}
	cfg, err := job.Backtest.ToDomain()
	if err != nil {
		logger.Fatalf("invalid backtest window: %v", err)
	}
	blocks := job.Blocks()
	objectives := job.Objectives
	if len(objectives) == 0 {
		objectives = domain.AllObjectives
	}

	// Load the persisted solutions
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	runs := pgstore.NewOptimizationStore(pool)

	record, err := resolveRun(ctx, runs, *runID)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	solutions, err := runs.GetSolutions(ctx, record.ID)
	if err != nil {
		logger.Fatalf("load solutions: %v", err)
	}
	if !*verifyAll {
		solutions = paretoSubset(solutions)
	}
	if len(solutions) == 0 {
		logger.Fatalf("run %s has no solutions to verify", record.ID)
	}

	// Build price sources
	oracle, volumes, cleanupSources, err := buildSources(ctx, *pricesPath, *volumesPath, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("price data unavailable: %v", err)
	}
	defer cleanupSources()

	// Re-evaluate through the same walk-forward pipeline
	runner := simulation.NewRunner(simulation.RunnerOptions{
		Oracle:  oracle,
		Volumes: volumes,
	})
	verifier := verification.NewVerifier(verification.VerifierOptions{
		Evaluator: optimize.NewEvaluator(runner, blocks, cfg, objectives),
	})

	logger.Printf("Verifying %d solutions of run %s", len(solutions), record.ID)
	report, err := verifier.VerifyAll(ctx, solutions)
	if err != nil {
		logger.Fatalf("verification failed: %v", err)
	}

	// Output summary
	if *outputJSON {
		printJSON(record.ID, report)
	} else {
		printSummary(record.ID, report)
	}

	if !report.AllMatch() {
		os.Exit(1)
	}
}

// resolveRun fetches the named run, or the most recently started one when no
// ID is given.
func resolveRun(ctx context.Context, runs *pgstore.OptimizationStore, runID string) (*domain.OptimizationRun, error) {
	if runID != "" {
		record, err := runs.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", runID, err)
		}
		return record, nil
	}

	all, err := runs.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no optimization runs persisted")
	}
	return all[len(all)-1], nil
}

// paretoSubset filters the solutions carrying the Pareto flag.
func paretoSubset(solutions []*domain.Solution) []*domain.Solution {
	var frontier []*domain.Solution
	for _, sol := range solutions {
		if sol.IsParetoOptimal {
			frontier = append(frontier, sol)
		}
	}
	return frontier
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

// verifyOutput is the JSON shape of the verification result.
type verifyOutput struct {
	RunID              string            `json:"run_id"`
	TotalSolutions     int               `json:"total_solutions"`
	MatchedSolutions   int               `json:"matched_solutions"`
	DivergentSolutions int               `json:"divergent_solutions"`
	Divergent          []divergentOutput `json:"divergent,omitempty"`
}

type divergentOutput struct {
	SolutionID  string             `json:"solution_id"`
	StateChange string             `json:"state_change,omitempty"`
	Divergences []divergenceOutput `json:"divergences,omitempty"`
}

type divergenceOutput struct {
	Field    string  `json:"field"`
	Recorded float64 `json:"recorded"`
	Actual   float64 `json:"actual"`
}

func printJSON(runID string, report *verification.Report) {
	out := verifyOutput{
		RunID:              runID,
		TotalSolutions:     report.TotalSolutions,
		MatchedSolutions:   report.MatchedSolutions,
		DivergentSolutions: report.DivergentSolutions,
	}
	for _, res := range report.Results {
		if res.Match {
			continue
		}
		div := divergentOutput{SolutionID: res.SolutionID, StateChange: res.StateChange}
		for _, d := range res.Divergences {
			div.Divergences = append(div.Divergences, divergenceOutput{
				Field:    d.Field,
				Recorded: d.Expected,
				Actual:   d.Actual,
			})
		}
		out.Divergent = append(out.Divergent, div)
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func printSummary(runID string, report *verification.Report) {
	fmt.Printf("\n=== Verification Summary ===\n")
	fmt.Printf("Run ID:       %s\n", runID)
	fmt.Printf("Solutions:    %d\n", report.TotalSolutions)
	fmt.Printf("Matched:      %d\n", report.MatchedSolutions)
	fmt.Printf("Divergent:    %d\n", report.DivergentSolutions)

	for _, res := range report.Results {
		if res.Match {
			continue
		}
		fmt.Printf("\nSolution %s:\n", res.SolutionID)
		if res.StateChange != "" {
			fmt.Printf("  %s\n", res.StateChange)
		}
		for _, d := range res.Divergences {
			fmt.Printf("  %-28s recorded=%.12g recomputed=%.12g\n", d.Field, d.Expected, d.Actual)
		}
	}

	if report.AllMatch() {
		fmt.Println("\nAll solutions reproduced their recorded scores.")
	}
}
