package server

import (
	"defi-strategy-lab/internal/config"
	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/metrics"
	"defi-strategy-lab/internal/orchestrator"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// PricePointDTO is one inline price sample.
type PricePointDTO struct {
	TimestampMs int64   `json:"timestampMs"`
	Price       float64 `json:"price"`
}

// VolumePointDTO is one inline volume sample.
type VolumePointDTO struct {
	TimestampMs int64   `json:"timestampMs"`
	Volume      float64 `json:"volume"`
}

// TokenDTO is one entry of the token registry.
type TokenDTO struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

// SimulationRequest is the body of POST /api/v1/simulations. Inline price
// series take precedence over the server's price store.
type SimulationRequest struct {
	config.Scenario
	Prices  map[string][]PricePointDTO  `json:"prices,omitempty"`
	Volumes map[string][]VolumePointDTO `json:"volumes,omitempty"`
}

// SimulationResponse is the synchronous outcome of one backtest.
type SimulationResponse struct {
	Metrics      *metrics.Metrics `json:"metrics"`
	EquityCurve  []EquityPointDTO `json:"equityCurve"`
	Trades       []TradeDTO       `json:"trades"`
	Steps        int              `json:"steps"`
	SkippedSteps int              `json:"skippedSteps"`
}

// EquityPointDTO is one equity curve sample.
type EquityPointDTO struct {
	TimestampMs int64   `json:"timestampMs"`
	EquityUsd   float64 `json:"equityUsd"`
}

// TradeDTO is one executed trade.
type TradeDTO struct {
	ID           int64   `json:"id"`
	TimestampMs  int64   `json:"timestampMs"`
	Kind         string  `json:"kind"`
	InputToken   string  `json:"inputToken"`
	OutputToken  string  `json:"outputToken,omitempty"`
	InputAmount  float64 `json:"inputAmount"`
	OutputAmount float64 `json:"outputAmount"`
	Price        float64 `json:"price"`
	SlippagePct  float64 `json:"slippagePct,omitempty"`
	FeesUsd      float64 `json:"feesUsd"`
	GasCostUsd   float64 `json:"gasCostUsd"`
}

// OptimizationRequest is the body of POST /api/v1/optimizations: a job
// document plus optional inline series.
type OptimizationRequest struct {
	config.Job
	Prices  map[string][]PricePointDTO  `json:"prices,omitempty"`
	Volumes map[string][]VolumePointDTO `json:"volumes,omitempty"`
}

// OptimizationAccepted acknowledges an asynchronous run.
type OptimizationAccepted struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunStatusResponse describes a run's state; Result is set once the run
// finished.
type RunStatusResponse struct {
	RunID    string        `json:"runId"`
	Status   string        `json:"status"`
	Progress *ProgressDTO  `json:"progress,omitempty"`
	Result   *RunResultDTO `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// RunResultDTO is the final outcome of an optimization run.
type RunResultDTO struct {
	RunID           string        `json:"runId"`
	TotalIterations int           `json:"totalIterations"`
	TotalTimeMs     int64         `json:"totalTimeMs"`
	CacheHitRate    float64       `json:"cacheHitRate"`
	Solutions       []SolutionDTO `json:"solutions"`
	ParetoFrontier  []SolutionDTO `json:"paretoFrontier"`
	Errors          []string      `json:"errors,omitempty"`
}

// SolutionDTO is one evaluated parameter set.
type SolutionDTO struct {
	ID                string                 `json:"id"`
	Parameters        domain.ParameterSet    `json:"parameters"`
	InSampleScores    domain.ObjectiveScores `json:"inSampleScores,omitempty"`
	OutOfSampleScores domain.ObjectiveScores `json:"outOfSampleScores,omitempty"`
	DegradationPct    float64                `json:"degradationPct"`
	IsParetoOptimal   bool                   `json:"isParetoOptimal"`
	Failed            bool                   `json:"failed,omitempty"`
	FailureReason     string                 `json:"failureReason,omitempty"`
}

// ProgressDTO is one progress snapshot of a running optimization.
type ProgressDTO struct {
	Iteration      int           `json:"iteration"`
	MaxIterations  int           `json:"maxIterations"`
	BestSolution   *SolutionDTO  `json:"bestSolution,omitempty"`
	ParetoFrontier []SolutionDTO `json:"paretoFrontier"`
	EtaMs          int64         `json:"etaMs"`
	WorkersActive  int           `json:"workersActive"`
	RecentErrors   []string      `json:"recentErrors,omitempty"`
}

func toDomainPrices(in map[string][]PricePointDTO) map[string][]domain.PricePoint {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]domain.PricePoint, len(in))
	for token, series := range in {
		pts := make([]domain.PricePoint, len(series))
		for i, p := range series {
			pts[i] = domain.PricePoint{TimestampMs: p.TimestampMs, Price: p.Price}
		}
		out[token] = pts
	}
	return out
}

func toDomainVolumes(in map[string][]VolumePointDTO) map[string][]domain.VolumePoint {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]domain.VolumePoint, len(in))
	for token, series := range in {
		pts := make([]domain.VolumePoint, len(series))
		for i, v := range series {
			pts[i] = domain.VolumePoint{TimestampMs: v.TimestampMs, Volume: v.Volume}
		}
		out[token] = pts
	}
	return out
}

func equityCurveDTO(curve []domain.EquityCurvePoint) []EquityPointDTO {
	out := make([]EquityPointDTO, len(curve))
	for i, p := range curve {
		out[i] = EquityPointDTO{TimestampMs: p.TimestampMs, EquityUsd: p.EquityUsd}
	}
	return out
}

func tradesDTO(trades []domain.Trade) []TradeDTO {
	out := make([]TradeDTO, len(trades))
	for i, t := range trades {
		out[i] = TradeDTO{
			ID:           t.ID,
			TimestampMs:  t.TimestampMs,
			Kind:         string(t.Kind),
			InputToken:   t.InputToken,
			OutputToken:  t.OutputToken,
			InputAmount:  t.InputAmount,
			OutputAmount: t.OutputAmount,
			Price:        t.Price,
			SlippagePct:  t.SlippagePct,
			FeesUsd:      t.FeesUsd,
			GasCostUsd:   t.GasCostUsd,
		}
	}
	return out
}

func solutionDTO(s *domain.Solution) SolutionDTO {
	return SolutionDTO{
		ID:                s.ID,
		Parameters:        s.Parameters,
		InSampleScores:    s.InSampleScores,
		OutOfSampleScores: s.OutOfSampleScores,
		DegradationPct:    s.DegradationPct,
		IsParetoOptimal:   s.IsParetoOptimal,
		Failed:            s.Failed,
		FailureReason:     s.FailureReason,
	}
}

func solutionsDTO(solutions []*domain.Solution) []SolutionDTO {
	out := make([]SolutionDTO, len(solutions))
	for i, s := range solutions {
		out[i] = solutionDTO(s)
	}
	return out
}

func runResultDTO(res *orchestrator.RunResult) *RunResultDTO {
	return &RunResultDTO{
		RunID:           res.RunID,
		TotalIterations: res.TotalIterations,
		TotalTimeMs:     res.TotalTime.Milliseconds(),
		CacheHitRate:    res.CacheHitRate,
		Solutions:       solutionsDTO(res.Solutions),
		ParetoFrontier:  solutionsDTO(res.ParetoFrontier),
		Errors:          res.Errors,
	}
}

func progressDTO(p orchestrator.Progress) *ProgressDTO {
	dto := &ProgressDTO{
		Iteration:      p.Iteration,
		MaxIterations:  p.MaxIterations,
		ParetoFrontier: make([]SolutionDTO, len(p.ParetoFrontier)),
		EtaMs:          p.ETA.Milliseconds(),
		WorkersActive:  p.WorkersActive,
		RecentErrors:   p.RecentErrors,
	}
	if p.BestSolution != nil {
		best := solutionDTO(p.BestSolution)
		dto.BestSolution = &best
	}
	for i := range p.ParetoFrontier {
		dto.ParetoFrontier[i] = solutionDTO(&p.ParetoFrontier[i])
	}
	return dto
}

// storedRunResultDTO rebuilds a result view from persisted records, for runs
// that finished before the current server process started.
func storedRunResultDTO(run *domain.OptimizationRun, solutions []*domain.Solution) *RunResultDTO {
	frontier := make([]*domain.Solution, 0)
	for _, s := range solutions {
		if s.IsParetoOptimal {
			frontier = append(frontier, s)
		}
	}
	return &RunResultDTO{
		RunID:           run.ID,
		TotalIterations: run.TotalIterations,
		TotalTimeMs:     run.TotalTimeMs,
		CacheHitRate:    run.CacheHitRate,
		Solutions:       solutionsDTO(solutions),
		ParetoFrontier:  solutionsDTO(frontier),
	}
}
