// Package scheduler runs candidate evaluations concurrently through a
// bounded worker pool. Results are cached by evaluation key so repeated
// candidates are never re-simulated, and transient failures retry with
// exponential backoff before being surfaced.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/cache"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/idhash"
	"defi-strategy-lab/internal/observability"
	"defi-strategy-lab/internal/optimize"
	"defi-strategy-lab/internal/simulation"
)

// Pool sizing and retry defaults.
const (
	MaxDefaultWorkers  = 8
	DefaultQueueSize   = 64
	DefaultBackoffBase = 100 * time.Millisecond

	// maxAttempts is one initial try plus two retries.
	maxAttempts = 3
)

// ErrClosed is returned by Submit after the pool has been closed.
var ErrClosed = errors.New("scheduler: closed")

// Task is one evaluation request. Tasks are self-contained so a single pool
// can serve several optimization runs at once.
type Task struct {
	ID         string
	Blocks     []domain.Block
	Parameters domain.ParameterSet
	Config     domain.BacktestConfig
	Objectives []string

	// Timeout bounds each evaluation attempt. Zero means no limit.
	Timeout time.Duration
}

// TaskResponse reports one finished task. Outcome and Err are mutually
// exclusive. Responses arrive out of submission order; correlate by ID.
type TaskResponse struct {
	ID         string
	Parameters domain.ParameterSet
	Outcome    *optimize.Evaluation
	Cached     bool
	Err        error
}

// Options for creating a Scheduler.
type Options struct {
	// Runner executes the simulations. Required.
	Runner *simulation.Runner

	// Workers is the pool size. Defaults to NumCPU capped at 8.
	Workers int
	// QueueSize bounds the pending task queue.
	QueueSize int

	// Cache holds finished evaluations. Defaults to an in-process cache.
	Cache cache.Cache
	// CacheTTL expires cached results. Zero keeps them indefinitely.
	CacheTTL time.Duration

	// BackoffBase is the first retry delay; it doubles per retry.
	BackoffBase time.Duration

	// OnError is invoked for every task that fails after retries. The queue
	// keeps processing regardless.
	OnError func(taskID string, werr *WorkerError)

	Logger *zerolog.Logger
}

type job struct {
	ctx  context.Context
	task Task
	resp chan TaskResponse
}

// Scheduler is a fixed pool of workers draining a task queue.
type Scheduler struct {
	runner      *simulation.Runner
	store       cache.Cache
	cacheTTL    time.Duration
	backoffBase time.Duration
	onError     func(string, *WorkerError)
	logger      zerolog.Logger
	workers     int

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
	active atomic.Int64
}

// New builds the pool and starts its workers.
func New(opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > MaxDefaultWorkers {
			workers = MaxDefaultWorkers
		}
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewMemory(0)
	}
	backoffBase := opts.BackoffBase
	if backoffBase <= 0 {
		backoffBase = DefaultBackoffBase
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Scheduler{
		runner:      opts.Runner,
		store:       store,
		cacheTTL:    opts.CacheTTL,
		backoffBase: backoffBase,
		onError:     opts.OnError,
		logger:      logger,
		workers:     workers,
		jobs:        make(chan job, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.logger.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("scheduler started")
	return s
}

// Submit enqueues a task and returns a channel that receives exactly one
// response. The context governs both the enqueue wait and the evaluation
// itself.
func (s *Scheduler) Submit(ctx context.Context, task Task) (<-chan TaskResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	resp := make(chan TaskResponse, 1)
	select {
	case s.jobs <- job{ctx: ctx, task: task, resp: resp}:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evaluate submits a task and blocks until its response arrives.
func (s *Scheduler) Evaluate(ctx context.Context, task Task) (*optimize.Evaluation, error) {
	respCh, err := s.Submit(ctx, task)
	if err != nil {
		return nil, err
	}
	select {
	case resp := <-respCh:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close rejects further submissions, waits for every accepted task to finish
// and shuts the workers down.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
}

// Stats is a point-in-time snapshot of the pool counters.
type Stats struct {
	Workers       int
	ActiveWorkers int
	CacheHits     int64
	CacheMisses   int64
}

// CacheHitRate returns hits/(hits+misses), or 0 before any lookup.
func (st Stats) CacheHitRate() float64 {
	total := st.CacheHits + st.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(st.CacheHits) / float64(total)
}

// Stats returns current counter values.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Workers:       s.workers,
		ActiveWorkers: int(s.active.Load()),
		CacheHits:     s.hits.Load(),
		CacheMisses:   s.misses.Load(),
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		s.active.Add(1)
		observability.SetWorkersActive(int(s.active.Load()))

		resp := s.process(j.ctx, j.task)

		s.active.Add(-1)
		observability.SetWorkersActive(int(s.active.Load()))

		j.resp <- resp
	}
}

// process serves one task: cache lookup, then evaluate with retries on miss.
func (s *Scheduler) process(ctx context.Context, task Task) TaskResponse {
	resp := TaskResponse{ID: task.ID, Parameters: task.Parameters}

	key := idhash.ComputeEvaluationKey(task.Blocks, task.Config, task.Objectives, task.Parameters)
	if entry, ok, err := s.store.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("cache read failed")
	} else if ok {
		s.hits.Add(1)
		observability.RecordCacheHit()
		observability.RecordTask("cached")
		resp.Cached = true
		resp.Outcome = &optimize.Evaluation{
			InSample:       entry.InSampleScores,
			OutOfSample:    entry.OutOfSampleScores,
			DegradationPct: entry.DegradationPct,
		}
		return resp
	}
	s.misses.Add(1)
	observability.RecordCacheMiss()

	started := time.Now()
	outcome, err := s.evaluate(ctx, task)
	observability.RecordEvaluationDuration(time.Since(started).Seconds())

	if err != nil {
		werr := Classify(err)
		s.logger.Warn().Err(err).
			Str("task_id", task.ID).
			Str("class", string(werr.Class)).
			Msg("task failed")
		observability.RecordTask("failed")
		if s.onError != nil {
			s.onError(task.ID, werr)
		}
		resp.Err = werr
		return resp
	}

	if err := s.store.Set(ctx, key, &cache.Entry{
		InSampleScores:    outcome.InSample,
		OutOfSampleScores: outcome.OutOfSample,
		DegradationPct:    outcome.DegradationPct,
	}, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("cache write failed")
	}

	observability.RecordTask("completed")
	resp.Outcome = outcome
	return resp
}

// evaluate runs the walk-forward evaluation, retrying transient failures
// with doubling backoff. Validation failures return immediately.
func (s *Scheduler) evaluate(ctx context.Context, task Task) (*optimize.Evaluation, error) {
	evaluator := optimize.NewEvaluator(s.runner, task.Blocks, task.Config, task.Objectives)

	backoff := s.backoffBase
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			observability.RecordTaskRetry()
			s.logger.Debug().
				Str("task_id", task.ID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("retrying task")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, lastErr
			}
			backoff *= 2
		}

		outcome, err := s.attempt(ctx, evaluator, task)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		if !Classify(err).Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// attempt runs one evaluation under the task's per-attempt timeout.
func (s *Scheduler) attempt(ctx context.Context, evaluator *optimize.Evaluator, task Task) (*optimize.Evaluation, error) {
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}
	return evaluator.Evaluate(ctx, task.Parameters)
}
