// Command optimize runs a multi-objective parameter search over a strategy
// and writes a report of the Pareto-optimal solutions.
//
// The job file names the strategy, the searchable parameters, the backtest
// window and the search settings. Price data comes from a CSV file or a
// ClickHouse history store. With --postgres-dsn the strategy, the run record
// and every evaluated solution are persisted; --verify re-evaluates the
// Pareto frontier afterwards and fails the process on any divergence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"defi-strategy-lab/internal/cache"
	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/idhash"
	"defi-strategy-lab/internal/logging"
	"defi-strategy-lab/internal/optimize"
	"defi-strategy-lab/internal/orchestrator"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/reporting"
	"defi-strategy-lab/internal/scheduler"
	"defi-strategy-lab/internal/simulation"
	"defi-strategy-lab/internal/storage"
	chstore "defi-strategy-lab/internal/storage/clickhouse"
	"defi-strategy-lab/internal/storage/migrations"
	pgstore "defi-strategy-lab/internal/storage/postgres"
	"defi-strategy-lab/internal/verification"
)

func main() {
	// Parse flags
	jobPath := flag.String("job", "", "Optimization job YAML file (required)")
	pricesPath := flag.String("prices", "", "Price history CSV (token,timestamp,price)")
	volumesPath := flag.String("volumes", "", "Volume history CSV (token,timestamp,volume)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string, used when no --prices file is given")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string; persists the run and its solutions")

	// Search execution
	workers := flag.Int("workers", 0, "Evaluation workers (0 = one per CPU, capped at 8)")
	evalTimeout := flag.Duration("eval-timeout", 0, "Per-evaluation timeout (0 = none)")
	redisAddr := flag.String("redis-addr", "", "Redis address for a shared evaluation cache (default in-process)")
	cacheEntries := flag.Int("cache-entries", 0, "In-process cache capacity (0 = default)")

	// Output
	outputDir := flag.String("output-dir", "reports", "Output directory for the report files")
	verify := flag.Bool("verify", false, "Re-evaluate the Pareto frontier after the run and fail on divergence")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	logger, err := logging.New(*logLevel, logging.FormatConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Validate required flags
	if *jobPath == "" {
		logger.Fatal().Msg("--job is required")
	}

	// Load and validate the job
	job, err := config.LoadJob(*jobPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid job file")
	}
	cfg, err := job.Backtest.ToDomain()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backtest window")
	}
	blocks := job.Blocks()
	objectives := job.Objectives
	if len(objectives) == 0 {
		objectives = domain.AllObjectives
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build price sources
	oracle, volumes, cleanupSources, err := buildSources(ctx, *pricesPath, *volumesPath, *clickhouseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("price data unavailable")
	}
	defer cleanupSources()

	// Optional persistence
	var strategies storage.StrategyStore
	var runs storage.OptimizationStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("run postgres migrations")
		}
		strategies = pgstore.NewStrategyStore(pool)
		runs = pgstore.NewOptimizationStore(pool)
	}

	// Build the evaluation pipeline
	runner := simulation.NewRunner(simulation.RunnerOptions{
		Oracle:  oracle,
		Volumes: volumes,
		Logger:  &logger,
	})
	evalCache, err := buildCache(*redisAddr, *cacheEntries)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to redis")
	}
	sched := scheduler.New(scheduler.Options{
		Runner:  runner,
		Workers: *workers,
		Cache:   evalCache,
		Logger:  &logger,
	})
	defer sched.Close()

	orch := orchestrator.New(orchestrator.Options{
		Scheduler:         sched,
		Blocks:            blocks,
		Definitions:       job.Definitions(),
		Objectives:        job.Objectives,
		Algorithm:         job.Algorithm,
		MaxIterations:     job.MaxIterations,
		Config:            cfg,
		Seed:              job.Seed,
		EvaluationTimeout: *evalTimeout,
		Logger:            &logger,
	})

	// First signal requests a graceful stop: in-flight evaluations finish
	// and the partial result is still reported. A second signal cancels.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn().Msg("stop requested, draining in-flight evaluations (signal again to abort)")
		orch.Stop()
		<-sigCh
		logger.Error().Msg("aborting")
		cancel()
	}()

	// Stream progress
	go func() {
		primary := objectives[0]
		for p := range orch.Progress() {
			evt := logger.Info().
				Int("iteration", p.Iteration).
				Int("max_iterations", p.MaxIterations).
				Int("workers", p.WorkersActive).
				Dur("eta", p.ETA)
			if p.BestSolution != nil {
				evt = evt.Float64("best_"+primary, p.BestSolution.OutOfSampleScores[primary])
			}
			evt.Msg("progress")
		}
	}()

	logger.Info().
		Str("job", job.Name).
		Str("algorithm", job.Algorithm).
		Int("max_iterations", job.MaxIterations).
		Strs("objectives", objectives).
		Msg("starting optimization")

	startedAt := time.Now()
	res, err := orch.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("optimization failed")
	}

	logger.Info().
		Str("run_id", res.RunID).
		Str("status", string(orch.Status())).
		Int("iterations", res.TotalIterations).
		Dur("total_time", res.TotalTime).
		Float64("cache_hit_rate", res.CacheHitRate).
		Int("frontier", len(res.ParetoFrontier)).
		Int("errors", len(res.Errors)).
		Msg("optimization finished")

	// Write report files
	gen := reporting.NewGenerator(strategyName(job), job.Algorithm, objectives, job.MaxIterations)
	report := gen.Build(res)
	if err := writeReports(*outputDir, report); err != nil {
		logger.Fatal().Err(err).Msg("write reports")
	}
	fmt.Println("Report generated:")
	fmt.Printf("  - %s\n", filepath.Join(*outputDir, reportFile))
	fmt.Printf("  - %s\n", filepath.Join(*outputDir, solutionsFile))

	// Persist the run
	if runs != nil {
		if err := persistRun(ctx, strategies, runs, job, blocks, orch, res, startedAt); err != nil {
			logger.Fatal().Err(err).Msg("persist run")
		}
		logger.Info().Str("run_id", res.RunID).Msg("run persisted")
	}

	// Re-evaluate the frontier
	if *verify && ctx.Err() == nil {
		verifier := verification.NewVerifier(verification.VerifierOptions{
			Evaluator: optimize.NewEvaluator(runner, blocks, cfg, objectives),
			Logger:    &logger,
		})
		vr, err := verifier.VerifyAll(ctx, res.ParetoFrontier)
		if err != nil {
			logger.Fatal().Err(err).Msg("verification failed")
		}
		logger.Info().
			Int("total", vr.TotalSolutions).
			Int("matched", vr.MatchedSolutions).
			Int("divergent", vr.DivergentSolutions).
			Msg("frontier verification")
		if !vr.AllMatch() {
			logger.Error().Msg("frontier verification found divergent solutions")
			os.Exit(1)
		}
	}
}

// Report file names inside the output directory.
const (
	reportFile    = "OPTIMIZATION_REPORT.md"
	solutionsFile = "SOLUTIONS.csv"
)

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

// buildCache picks the evaluation cache: Redis when an address is given so
// repeated runs of the same job reuse prior evaluations, in-process
// otherwise.
func buildCache(redisAddr string, entries int) (cache.Cache, error) {
	if redisAddr == "" {
		return cache.NewMemory(entries), nil
	}
	return cache.NewRedis(cache.RedisConfig{Addr: redisAddr})
}

// strategyName prefers the strategy's own name, falling back to the job
// name.
func strategyName(job *config.Job) string {
	if job.Strategy.Name != "" {
		return job.Strategy.Name
	}
	return job.Name
}

// writeReports renders the markdown report and the solutions CSV into dir.
func writeReports(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	md := filepath.Join(dir, reportFile)
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", md, err)
	}
	csv := filepath.Join(dir, solutionsFile)
	if err := os.WriteFile(csv, []byte(reporting.RenderSolutionsCSV(report.Solutions, report.Objectives)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", csv, err)
	}
	return nil
}

// persistRun stores the strategy, the run record and every evaluated
// solution.
func persistRun(
	ctx context.Context,
	strategies storage.StrategyStore,
	runs storage.OptimizationStore,
	job *config.Job,
	blocks []domain.Block,
	orch *orchestrator.Orchestrator,
	res *orchestrator.RunResult,
	startedAt time.Time,
) error {
	strategyID := idhash.ComputeStrategyID(blocks)
	now := time.Now().UnixMilli()

	err := strategies.Insert(ctx, &domain.Strategy{
		ID:          strategyID,
		Name:        strategyName(job),
		Blocks:      blocks,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("insert strategy: %w", err)
	}

	record := &domain.OptimizationRun{
		ID:              res.RunID,
		StrategyID:      strategyID,
		Algorithm:       job.Algorithm,
		Objectives:      job.Objectives,
		MaxIterations:   job.MaxIterations,
		Status:          orch.Status(),
		TotalIterations: res.TotalIterations,
		TotalTimeMs:     res.TotalTime.Milliseconds(),
		CacheHitRate:    res.CacheHitRate,
		StartedAtMs:     startedAt.UnixMilli(),
		CompletedAtMs:   time.Now().UnixMilli(),
	}
	if err := runs.InsertRun(ctx, record); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if len(res.Solutions) > 0 {
		if err := runs.InsertSolutions(ctx, res.RunID, res.Solutions); err != nil {
			return fmt.Errorf("insert solutions: %w", err)
		}
	}
	return nil
}
