// Command report regenerates the report files for a persisted optimization
// run. It reads the run record and its solutions from PostgreSQL, so the
// output matches what cmd/optimize wrote when the run finished.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/orchestrator"
	"defi-strategy-lab/internal/reporting"
	pgstore "defi-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (env POSTGRES_DSN)")
	runID := flag.String("run-id", "", "Run to report on; empty picks the most recent run")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	flag.Parse()

	// Validate flags
	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	runs := pgstore.NewOptimizationStore(pool)
	strategies := pgstore.NewStrategyStore(pool)

	// Resolve the run record
	record, err := resolveRun(ctx, runs, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	solutions, err := runs.GetSolutions(ctx, record.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading solutions: %v\n", err)
		os.Exit(1)
	}

	// The strategy may have been inserted by a run against a different
	// database, so a missing record only costs the display name.
	name := record.StrategyID
	if strat, err := strategies.GetByID(ctx, record.StrategyID); err == nil {
		name = strat.Name
	}

	objectives := record.Objectives
	if len(objectives) == 0 {
		objectives = domain.AllObjectives
	}

	// Rebuild the report from the persisted rows. The frontier is the
	// Pareto-optimal subset in insertion order; Build re-sorts it.
	gen := reporting.NewGenerator(name, record.Algorithm, objectives, record.MaxIterations)
	report := gen.Build(&orchestrator.RunResult{
		RunID:           record.ID,
		Solutions:       solutions,
		ParetoFrontier:  paretoSubset(solutions),
		TotalIterations: record.TotalIterations,
		TotalTime:       time.Duration(record.TotalTimeMs) * time.Millisecond,
		CacheHitRate:    record.CacheHitRate,
	})

	if err := writeReports(*outputDir, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing reports: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for run %s generated:\n", record.ID)
	fmt.Printf("  - %s\n", filepath.Join(*outputDir, reportFile))
	fmt.Printf("  - %s\n", filepath.Join(*outputDir, solutionsFile))
}

// Report file names inside the output directory, matching cmd/optimize.
const (
	reportFile    = "OPTIMIZATION_REPORT.md"
	solutionsFile = "SOLUTIONS.csv"
)

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
