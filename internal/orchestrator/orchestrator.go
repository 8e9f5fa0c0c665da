// Package orchestrator provides the top-level optimization loop.
// It draws candidates from a search strategy, evaluates them through the
// scheduler and folds results into a solution set and Pareto frontier,
// reporting progress after every evaluation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/idhash"
	"defi-strategy-lab/internal/observability"
	"defi-strategy-lab/internal/optimize"
	"defi-strategy-lab/internal/scheduler"
)

// DefaultMaxIterations bounds a run when the request does not.
const DefaultMaxIterations = 50

// recentErrorLimit caps how many error messages a progress event carries.
const recentErrorLimit = 5

// ErrAlreadyRan is returned when Run is called twice on one Orchestrator.
var ErrAlreadyRan = errors.New("orchestrator: run already started")

// Options for creating an Orchestrator.
type Options struct {
	// Scheduler evaluates candidates. Required.
	Scheduler *scheduler.Scheduler

	// Blocks is the strategy under optimization.
	Blocks []domain.Block
	// Definitions declare the searchable parameters.
	Definitions []domain.ParameterDef
	// Objectives to score; empty means all supported objectives.
	Objectives []string
	// Algorithm selects the search strategy: "bayesian" or "genetic".
	Algorithm string
	// MaxIterations bounds the number of evaluated candidates.
	MaxIterations int
	// Config is the backtest range and capital for every evaluation.
	Config domain.BacktestConfig

	// RunID names the run; generated when empty.
	RunID string
	// Seed fixes the search's random source for reproducible runs. Zero
	// seeds from the clock.
	Seed int64
	// InitialSamples overrides the search's initial batch size.
	InitialSamples int
	// EvaluationTimeout bounds each evaluation attempt.
	EvaluationTimeout time.Duration
	// ProgressBuffer sizes the progress channel. Events are dropped, not
	// blocked on, when the consumer falls behind.
	ProgressBuffer int

	Logger *zerolog.Logger
}

// Progress is one per-evaluation snapshot of a running optimization.
type Progress struct {
	Iteration      int
	MaxIterations  int
	BestSolution   *domain.Solution
	ParetoFrontier []domain.Solution
	ETA            time.Duration
	WorkersActive  int
	RecentErrors   []string
}

// RunResult is the final outcome of one optimization run.
type RunResult struct {
	RunID           string
	Solutions       []*domain.Solution
	ParetoFrontier  []*domain.Solution
	TotalIterations int
	TotalTime       time.Duration
	CacheHitRate    float64
	Errors          []string
}

// Orchestrator coordinates one optimization run.
type Orchestrator struct {
	sched       *scheduler.Scheduler
	blocks      []domain.Block
	definitions []domain.ParameterDef
	objectives  []string
	algorithm   string
	maxIter     int
	cfg         domain.BacktestConfig
	runID       string
	seed        int64
	initial     int
	evalTimeout time.Duration
	logger      zerolog.Logger

	progress chan Progress

	statusMu sync.RWMutex
	status   domain.RunStatus

	started  atomic.Bool
	stopFlag atomic.Bool
	taskSeq  atomic.Int64
}

// New creates an Orchestrator in the idle state.
func New(opts Options) *Orchestrator {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	objectives := opts.Objectives
	if len(objectives) == 0 {
		objectives = domain.AllObjectives
	}
	runID := opts.RunID
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	buffer := opts.ProgressBuffer
	if buffer <= 0 {
		buffer = 64
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Orchestrator{
		sched:       opts.Scheduler,
		blocks:      opts.Blocks,
		definitions: opts.Definitions,
		objectives:  objectives,
		algorithm:   opts.Algorithm,
		maxIter:     maxIter,
		cfg:         opts.Config,
		runID:       runID,
		seed:        opts.Seed,
		initial:     opts.InitialSamples,
		evalTimeout: opts.EvaluationTimeout,
		logger:      logger,
		progress:    make(chan Progress, buffer),
		status:      domain.RunIdle,
	}
}

// RunID returns the run's identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() domain.RunStatus {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Orchestrator) setStatus(s domain.RunStatus) {
	o.statusMu.Lock()
	o.status = s
	o.statusMu.Unlock()
}

// Progress returns the event channel. It is closed when the run finishes.
func (o *Orchestrator) Progress() <-chan Progress { return o.progress }

// Stop requests a cooperative stop. The loop exits at its next iteration
// boundary; in-flight evaluations run to completion.
func (o *Orchestrator) Stop() {
	if !o.stopFlag.Swap(true) {
		o.logger.Info().Str("run_id", o.runID).Msg("stop requested")
	}
}

func (o *Orchestrator) stopRequested() bool { return o.stopFlag.Load() }

// Run executes the optimization loop until the iteration budget is spent,
// the search is exhausted, or a stop is requested.
// Steps:
//  1. Build the search strategy for the requested algorithm
//  2. Draw a candidate batch (initial samples, then suggestions/generations)
//  3. Evaluate the batch through the scheduler, all candidates in flight
//  4. Fold each result into the solution set, observe it back into the
//     search, rebuild the frontier and emit a progress event
//  5. Repeat from 2
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if o.started.Swap(true) {
		return nil, ErrAlreadyRan
	}
	defer close(o.progress)

	rng := rand.New(rand.NewSource(o.seedOrNow()))
	search, err := optimize.FromAlgorithm(o.algorithm, optimize.SearchOptions{
		Definitions:    o.definitions,
		Primary:        o.objectives[0],
		InitialSamples: o.initial,
		Rand:           rng,
	})
	if err != nil {
		o.setStatus(domain.RunFailed)
		return nil, err
	}

	o.setStatus(domain.RunRunning)
	observability.IncOptimizationsRunning()
	defer observability.DecOptimizationsRunning()
	o.logger.Info().
		Str("run_id", o.runID).
		Str("algorithm", search.Name()).
		Int("max_iterations", o.maxIter).
		Strs("objectives", o.objectives).
		Msg("optimization started")

	startedAt := time.Now()
	var (
		solutions []*domain.Solution
		frontier  []*domain.Solution
		errs      []string
		cacheHits int
		iteration int
	)

	for iteration < o.maxIter && !o.stopRequested() && ctx.Err() == nil {
		var batch []domain.ParameterSet
		if iteration == 0 {
			batch = search.InitialBatch()
		} else {
			batch = search.NextBatch()
		}
		if len(batch) == 0 {
			break
		}
		if remaining := o.maxIter - iteration; len(batch) > remaining {
			batch = batch[:remaining]
		}

		for _, pend := range o.submitBatch(ctx, batch) {
			resp := pend.await()
			iteration++
			if resp.Cached {
				cacheHits++
			}

			sol := o.buildSolution(resp)
			solutions = append(solutions, sol)
			if sol.Failed {
				errs = append(errs, fmt.Sprintf("candidate %s: %s", sol.ID, sol.FailureReason))
			} else {
				search.Observe(optimize.Observation{
					Params: sol.Parameters,
					Scores: resp.Outcome.InSample,
				})
			}
			frontier = optimize.Frontier(solutions, o.objectives)

			observability.RecordIteration(search.Name())
			observability.RecordSolution(sol.Failed)
			observability.SetParetoFrontierSize(len(frontier))

			o.emit(iteration, solutions, frontier, errs, startedAt)
		}
	}

	status := domain.RunCompleted
	if o.stopRequested() || ctx.Err() != nil {
		status = domain.RunStopped
	}
	o.setStatus(status)

	result := &RunResult{
		RunID:           o.runID,
		Solutions:       solutions,
		ParetoFrontier:  frontier,
		TotalIterations: iteration,
		TotalTime:       time.Since(startedAt),
		CacheHitRate:    hitRate(cacheHits, iteration),
		Errors:          errs,
	}
	o.logger.Info().
		Str("run_id", o.runID).
		Str("status", string(status)).
		Int("iterations", result.TotalIterations).
		Int("frontier_size", len(result.ParetoFrontier)).
		Float64("cache_hit_rate", result.CacheHitRate).
		Dur("total_time", result.TotalTime).
		Msg("optimization finished")
	return result, nil
}

// pendingTask pairs a submitted candidate with its response channel so
// results can be folded in submission order, keeping seeded runs
// reproducible while the batch still evaluates concurrently.
type pendingTask struct {
	id     string
	params domain.ParameterSet
	ch     <-chan scheduler.TaskResponse
	err    error
}

func (p pendingTask) await() scheduler.TaskResponse {
	if p.err != nil {
		return scheduler.TaskResponse{ID: p.id, Parameters: p.params, Err: p.err}
	}
	return <-p.ch
}

func (o *Orchestrator) submitBatch(ctx context.Context, batch []domain.ParameterSet) []pendingTask {
	pending := make([]pendingTask, 0, len(batch))
	for _, params := range batch {
		task := scheduler.Task{
			ID:         fmt.Sprintf("%s-%d", o.runID, o.taskSeq.Add(1)),
			Blocks:     o.blocks,
			Parameters: params,
			Config:     o.cfg,
			Objectives: o.objectives,
			Timeout:    o.evalTimeout,
		}
		ch, err := o.sched.Submit(ctx, task)
		pending = append(pending, pendingTask{id: task.ID, params: params, ch: ch, err: err})
	}
	return pending
}

// buildSolution converts a task response into a Solution. A failed candidate
// becomes a failed Solution with maximal degradation so the search continues.
func (o *Orchestrator) buildSolution(resp scheduler.TaskResponse) *domain.Solution {
	if resp.Err != nil {
		return &domain.Solution{
			ID:                idhash.ComputeSolutionID(o.runID, resp.Parameters),
			Parameters:        resp.Parameters,
			InSampleScores:    domain.ObjectiveScores{},
			OutOfSampleScores: domain.ObjectiveScores{},
			DegradationPct:    100,
			Failed:            true,
			FailureReason:     resp.Err.Error(),
		}
	}
	return &domain.Solution{
		ID:                idhash.ComputeSolutionID(o.runID, resp.Parameters),
		Parameters:        resp.Parameters,
		InSampleScores:    resp.Outcome.InSample,
		OutOfSampleScores: resp.Outcome.OutOfSample,
		DegradationPct:    resp.Outcome.DegradationPct,
	}
}

// emit sends a progress event without blocking the loop. Frontier solutions
// are copied because their Pareto flags are rewritten on later folds.
func (o *Orchestrator) emit(iteration int, solutions, frontier []*domain.Solution, errs []string, startedAt time.Time) {
	front := make([]domain.Solution, len(frontier))
	for i, sol := range frontier {
		front[i] = *sol
	}

	var best *domain.Solution
	if b := bestSolution(solutions, o.objectives[0]); b != nil {
		copied := *b
		best = &copied
	}

	recent := errs
	if len(recent) > recentErrorLimit {
		recent = recent[len(recent)-recentErrorLimit:]
	}

	event := Progress{
		Iteration:      iteration,
		MaxIterations:  o.maxIter,
		BestSolution:   best,
		ParetoFrontier: front,
		ETA:            estimateRemaining(startedAt, iteration, o.maxIter),
		WorkersActive:  o.sched.Stats().ActiveWorkers,
		RecentErrors:   append([]string(nil), recent...),
	}

	select {
	case o.progress <- event:
	default:
		o.logger.Debug().Int("iteration", iteration).Msg("progress buffer full, dropping event")
	}
}

// bestSolution picks the best non-failed solution by the primary objective's
// out-of-sample score, respecting the objective's direction.
func bestSolution(solutions []*domain.Solution, primary string) *domain.Solution {
	var best *domain.Solution
	for _, sol := range solutions {
		if sol.Failed {
			continue
		}
		if best == nil || better(sol, best, primary) {
			best = sol
		}
	}
	return best
}

func better(a, b *domain.Solution, primary string) bool {
	av, bv := a.OutOfSampleScores[primary], b.OutOfSampleScores[primary]
	if domain.ObjectiveMaximized(primary) {
		return av > bv
	}
	return av < bv
}

// estimateRemaining extrapolates from the mean time per finished iteration.
func estimateRemaining(startedAt time.Time, done, max int) time.Duration {
	if done <= 0 || done >= max {
		return 0
	}
	perIteration := time.Since(startedAt) / time.Duration(done)
	return perIteration * time.Duration(max-done)
}

func hitRate(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (o *Orchestrator) seedOrNow() int64 {
	if o.seed != 0 {
		return o.seed
	}
	return time.Now().UnixNano()
}
