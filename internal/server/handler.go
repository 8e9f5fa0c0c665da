package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"defi-strategy-lab/internal/cache"
	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/idhash"
	"defi-strategy-lab/internal/orchestrator"
	"defi-strategy-lab/internal/pricing"
	"defi-strategy-lab/internal/scheduler"
	"defi-strategy-lab/internal/simulation"
	"defi-strategy-lab/internal/storage"
)

// HandlerOptions contains the handler's dependencies. Only the price oracle
// is needed for requests that do not embed their own series; the stores are
// optional persistence.
type HandlerOptions struct {
	// Oracle resolves prices for requests without inline series.
	Oracle pricing.Oracle
	// Volumes resolves volume series for volume-trigger blocks.
	Volumes pricing.VolumeSource

	// Strategies persists the strategies of submitted runs when set.
	Strategies storage.StrategyStore
	// Runs persists run records and solutions when set, and serves status
	// lookups for runs from earlier processes.
	Runs storage.OptimizationStore

	// Workers, QueueSize and BackoffBase size the per-run scheduler pool.
	Workers     int
	QueueSize   int
	BackoffBase time.Duration
	// EvaluationTimeout bounds each candidate evaluation.
	EvaluationTimeout time.Duration

	// Cache is shared across runs; evaluation keys cover the full strategy
	// and config so reuse is safe. Nil gives each run a private cache.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Tokens is the registry served by the tokens endpoint. Defaults to the
	// built-in registry. Purely informational: strategies may reference any
	// symbol the price data covers.
	Tokens map[string]domain.Token

	Logger *zerolog.Logger
}

// Handler serves the simulation and optimization API.
type Handler struct {
	oracle     pricing.Oracle
	volumes    pricing.VolumeSource
	strategies storage.StrategyStore
	runs       storage.OptimizationStore
	registry   *Registry

	workers     int
	queueSize   int
	backoffBase time.Duration
	evalTimeout time.Duration
	cache       cache.Cache
	cacheTTL    time.Duration
	tokens      map[string]domain.Token

	logger zerolog.Logger
}

// NewHandler creates a Handler with an empty run registry.
func NewHandler(opts HandlerOptions) *Handler {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = domain.DefaultTokens
	}
	return &Handler{
		oracle:      opts.Oracle,
		volumes:     opts.Volumes,
		strategies:  opts.Strategies,
		runs:        opts.Runs,
		registry:    NewRegistry(),
		workers:     opts.Workers,
		queueSize:   opts.QueueSize,
		backoffBase: opts.BackoffBase,
		evalTimeout: opts.EvaluationTimeout,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		tokens:      tokens,
		logger:      logger,
	}
}

// Registry returns the run registry, used during shutdown to stop live runs.
func (h *Handler) Registry() *Registry { return h.registry }

// RegisterRoutes mounts the API under /api/v1.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/tokens", h.ListTokens)
	g.POST("/simulations", h.Simulate)
	g.POST("/optimizations", h.StartOptimization)
	g.GET("/optimizations", h.ListOptimizations)
	g.GET("/optimizations/:id", h.GetOptimization)
	g.POST("/optimizations/:id/stop", h.StopOptimization)
	g.GET("/optimizations/:id/progress", h.StreamProgress)
}

// ListTokens returns the token registry sorted by symbol.
func (h *Handler) ListTokens(c echo.Context) error {
	out := make([]TokenDTO, 0, len(h.tokens))
	for _, t := range h.tokens {
		out = append(out, TokenDTO{Symbol: t.Symbol, Mint: t.Mint, Decimals: t.Decimals})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return c.JSON(http.StatusOK, out)
}

// Simulate runs one backtest synchronously and returns its metrics, equity
// curve and trade log.
func (h *Handler) Simulate(c echo.Context) error {
	var req SimulationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	req.Backtest.SetDefaults()
	cfg, err := req.Backtest.ToDomain()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	blockSeq := req.Scenario.Blocks()

	oracle, volumes, err := h.sources(req.Prices, req.Volumes)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		Oracle:  oracle,
		Volumes: volumes,
		Logger:  &h.logger,
	})
	res, err := runner.Run(c.Request().Context(), blockSeq, cfg)
	if err != nil {
		return h.engineError(c, err)
	}

	return c.JSON(http.StatusOK, SimulationResponse{
		Metrics:      res.Metrics,
		EquityCurve:  equityCurveDTO(res.EquityCurve),
		Trades:       tradesDTO(res.Trades),
		Steps:        res.Steps,
		SkippedSteps: res.SkippedSteps,
	})
}

// StartOptimization validates the job, launches it in the background and
// returns its run ID.
func (h *Handler) StartOptimization(c echo.Context) error {
	var req OptimizationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if err := req.Job.Check(); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	cfg, err := req.Job.Backtest.ToDomain()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	oracle, volumes, err := h.sources(req.Prices, req.Volumes)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		Oracle:  oracle,
		Volumes: volumes,
		Logger:  &h.logger,
	})
	sched := scheduler.New(scheduler.Options{
		Runner:      runner,
		Workers:     h.workers,
		QueueSize:   h.queueSize,
		Cache:       h.cache,
		CacheTTL:    h.cacheTTL,
		BackoffBase: h.backoffBase,
		Logger:      &h.logger,
	})

	blockSeq := req.Job.Blocks()
	orch := orchestrator.New(orchestrator.Options{
		Scheduler:         sched,
		Blocks:            blockSeq,
		Definitions:       req.Job.Definitions(),
		Objectives:        req.Job.Objectives,
		Algorithm:         req.Job.Algorithm,
		MaxIterations:     req.Job.MaxIterations,
		Config:            cfg,
		Seed:              req.Job.Seed,
		EvaluationTimeout: h.evalTimeout,
		Logger:            &h.logger,
	})

	strategyID := h.persistStrategy(c.Request().Context(), &req.Job, blockSeq)

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(orch, cancel)
	h.registry.Add(run)
	h.persistRunStart(&req.Job, orch.RunID(), strategyID)

	run.start(ctx, func(res *orchestrator.RunResult, err error) {
		sched.Close()
		h.persistRunEnd(orch, res, err)
	})

	return c.JSON(http.StatusAccepted, OptimizationAccepted{
		RunID:  orch.RunID(),
		Status: string(run.Status()),
	})
}

// ListOptimizations returns the known runs: the persisted records when a
// store is configured, otherwise the in-process registry.
func (h *Handler) ListOptimizations(c echo.Context) error {
	if h.runs != nil {
		records, err := h.runs.ListRuns(c.Request().Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("list runs")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		}
		items := make([]RunStatusResponse, len(records))
		for i, r := range records {
			items[i] = RunStatusResponse{RunID: r.ID, Status: h.liveStatus(r)}
		}
		return c.JSON(http.StatusOK, items)
	}

	ids := h.registry.IDs()
	items := make([]RunStatusResponse, len(ids))
	for i, id := range ids {
		run, _ := h.registry.Get(id)
		items[i] = RunStatusResponse{RunID: id, Status: string(run.Status())}
	}
	return c.JSON(http.StatusOK, items)
}

// liveStatus prefers the in-process status over the persisted one, which
// only updates when a run finishes.
func (h *Handler) liveStatus(record *domain.OptimizationRun) string {
	if run, ok := h.registry.Get(record.ID); ok {
		return string(run.Status())
	}
	return string(record.Status)
}

// GetOptimization reports a run's status, latest progress while it executes
// and the full result once finished. Runs missing from the registry fall
// back to the persistence layer.
func (h *Handler) GetOptimization(c echo.Context) error {
	id := c.Param("id")

	if run, ok := h.registry.Get(id); ok {
		resp := RunStatusResponse{RunID: id, Status: string(run.Status())}
		result, err := run.Result()
		switch {
		case err != nil:
			resp.Status = string(domain.RunFailed)
			resp.Error = err.Error()
		case result != nil:
			resp.Result = runResultDTO(result)
		default:
			if p := run.Latest(); p != nil {
				resp.Progress = progressDTO(*p)
			}
		}
		return c.JSON(http.StatusOK, resp)
	}

	if h.runs == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown run " + id})
	}

	ctx := c.Request().Context()
	record, err := h.runs.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown run " + id})
	}
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("load run")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	solutions, err := h.runs.GetSolutions(ctx, id)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("load solutions")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
	return c.JSON(http.StatusOK, RunStatusResponse{
		RunID:  id,
		Status: string(record.Status),
		Result: storedRunResultDTO(record, solutions),
	})
}

// StopOptimization requests a graceful stop; in-flight evaluations finish
// and the run completes with the stopped status.
func (h *Handler) StopOptimization(c echo.Context) error {
	run, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown run " + c.Param("id")})
	}
	run.Stop()
	return c.JSON(http.StatusAccepted, RunStatusResponse{
		RunID:  run.ID,
		Status: string(run.Status()),
	})
}

// sources picks the price and volume sources for one request: inline series
// when present, the configured stores otherwise.
func (h *Handler) sources(prices map[string][]PricePointDTO, volumes map[string][]VolumePointDTO) (pricing.Oracle, pricing.VolumeSource, error) {
	if len(prices) > 0 {
		static := pricing.NewStaticOracle(toDomainPrices(prices), toDomainVolumes(volumes))
		return static, static, nil
	}
	if h.oracle == nil {
		return nil, nil, errors.New("request has no inline prices and the server has no price store")
	}
	return h.oracle, h.volumes, nil
}

// engineError maps simulation failures onto HTTP statuses: structural
// problems are the caller's fault, data gaps are unprocessable, anything
// else is internal.
func (h *Handler) engineError(c echo.Context, err error) error {
	var structural *domain.StructuralError
	var data *domain.DataError
	switch {
	case errors.As(err, &structural):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &data):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Msg("simulation failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// persistStrategy stores the submitted strategy, keyed by its content hash
// so resubmitting the same blocks reuses the record.
func (h *Handler) persistStrategy(ctx context.Context, job *config.Job, blockSeq []domain.Block) string {
	if h.strategies == nil {
		return ""
	}
	name := job.Strategy.Name
	if name == "" {
		name = job.Name
	}
	now := time.Now().UnixMilli()
	strategy := &domain.Strategy{
		ID:          idhash.ComputeStrategyID(blockSeq),
		Name:        name,
		Blocks:      blockSeq,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	err := h.strategies.Insert(ctx, strategy)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		h.logger.Error().Err(err).Str("strategy_id", strategy.ID).Msg("persist strategy")
		return ""
	}
	return strategy.ID
}

// persistRunStart records the run in the running state.
func (h *Handler) persistRunStart(job *config.Job, runID, strategyID string) {
	if h.runs == nil {
		return
	}
	record := &domain.OptimizationRun{
		ID:            runID,
		StrategyID:    strategyID,
		Algorithm:     job.Algorithm,
		Objectives:    job.Objectives,
		MaxIterations: job.MaxIterations,
		Status:        domain.RunRunning,
		StartedAtMs:   time.Now().UnixMilli(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.runs.InsertRun(ctx, record); err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("persist run start")
	}
}

// persistRunEnd updates the run record with the final outcome and stores the
// solutions.
func (h *Handler) persistRunEnd(orch *orchestrator.Orchestrator, res *orchestrator.RunResult, runErr error) {
	if h.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runID := orch.RunID()
	record, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("load run for completion")
		return
	}
	record.Status = orch.Status()
	record.CompletedAtMs = time.Now().UnixMilli()
	if res != nil {
		record.TotalIterations = res.TotalIterations
		record.TotalTimeMs = res.TotalTime.Milliseconds()
		record.CacheHitRate = res.CacheHitRate
	}
	if runErr != nil {
		record.Status = domain.RunFailed
	}
	if err := h.runs.UpdateRun(ctx, record); err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("persist run end")
	}
	if res != nil && len(res.Solutions) > 0 {
		if err := h.runs.InsertSolutions(ctx, runID, res.Solutions); err != nil {
			h.logger.Error().Err(err).Str("run_id", runID).Msg("persist solutions")
		}
	}
}
