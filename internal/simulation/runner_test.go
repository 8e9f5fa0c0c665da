package simulation

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/pricing"
)

const simStartMs = int64(1700000000000)

// makeSeries builds a price series with points spaced intervalMs apart.
func makeSeries(startMs, intervalMs int64, prices ...float64) []domain.PricePoint {
	pts := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = domain.PricePoint{TimestampMs: startMs + int64(i)*intervalMs, Price: p}
	}
	return pts
}

func dailyConfig(days int64, capital float64) domain.BacktestConfig {
	return domain.BacktestConfig{
		StartMs:             simStartMs,
		EndMs:               simStartMs + days*domain.MsPerDay,
		InitialCapital:      capital,
		CapitalToken:        "USDC",
		RebalanceIntervalMs: domain.MsPerDay,
	}
}

// explodingOracle fails every lookup; used to prove validation runs first.
type explodingOracle struct{}

func (explodingOracle) GetPrices(context.Context, []string, int64, int64, int64) (map[string][]domain.PricePoint, error) {
	return nil, errors.New("oracle must not be reached")
}

func TestRunner_Run_EmptyStrategyFailsBeforePriceAccess(t *testing.T) {
	runner := NewRunner(RunnerOptions{Oracle: explodingOracle{}})

	_, err := runner.Run(context.Background(), nil, dailyConfig(3, 10000))
	if err == nil {
		t.Fatal("expected error for empty strategy")
	}
	var structural *domain.StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if structural.Message != "Cannot backtest empty strategy" {
		t.Errorf("unexpected message %q", structural.Message)
	}
}

func TestRunner_Run_PriceTriggerFiresMidRange(t *testing.T) {
	oracle := pricing.NewStaticOracle(map[string][]domain.PricePoint{
		"ETH": makeSeries(simStartMs, domain.MsPerDay, 2900, 2950, 3010, 3050),
	}, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	seq := []domain.Block{
		{
			ID: "entry", Kind: domain.KindPriceTrigger, Category: domain.CategoryEntry,
			InputToken: "ETH", Comparator: domain.CmpGTE,
			Params: map[string]float64{"target": 3000},
		},
		{
			ID: "buy", Kind: domain.KindSwap, Category: domain.CategoryProtocol,
			InputToken: "USDC", OutputToken: "ETH",
			Params: map[string]float64{"amount": 5000},
		},
	}

	res, err := runner.Run(context.Background(), seq, dailyConfig(3, 10000))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.EquityCurve) != 4 {
		t.Fatalf("expected 4 equity points, got %d", len(res.EquityCurve))
	}
	// First two days stay below the trigger, the swap fires on days 2 and 3.
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	if res.Trades[0].TimestampMs != simStartMs+2*domain.MsPerDay {
		t.Errorf("first trade at %d, want day 2", res.Trades[0].TimestampMs)
	}
	if res.EquityCurve[0].EquityUsd != 10000 {
		t.Errorf("expected starting equity 10000, got %f", res.EquityCurve[0].EquityUsd)
	}

	// Default 0.3% fee on 5000 USDC per swap.
	if math.Abs(res.Metrics.TotalFeesUsd-30) > 1e-9 {
		t.Errorf("expected 30 USD in fees, got %f", res.Metrics.TotalFeesUsd)
	}
	if res.Metrics.TotalGasUsd <= 0 {
		t.Errorf("expected positive gas total, got %f", res.Metrics.TotalGasUsd)
	}
	if res.Metrics.TotalTrades != 2 {
		t.Errorf("expected 2 trades in metrics, got %d", res.Metrics.TotalTrades)
	}
}

func TestRunner_Run_GridIncludesFinalEndpoint(t *testing.T) {
	// 2.5 day range on a daily interval: grid is d0, d1, d2, end.
	cfg := dailyConfig(3, 10000)
	cfg.EndMs = simStartMs + 2*domain.MsPerDay + domain.MsPerDay/2

	oracle := pricing.NewStaticOracle(map[string][]domain.PricePoint{
		"ETH": makeSeries(simStartMs, domain.MsPerDay, 100, 101, 102, 103),
	}, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	seq := []domain.Block{
		{ID: "t", Kind: domain.KindPriceTrigger, InputToken: "ETH", Params: map[string]float64{"target": 1e9}},
	}

	res, err := runner.Run(context.Background(), seq, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.EquityCurve) != 4 {
		t.Fatalf("expected 4 equity points, got %d", len(res.EquityCurve))
	}
	last := res.EquityCurve[len(res.EquityCurve)-1]
	if last.TimestampMs != cfg.EndMs {
		t.Errorf("last point at %d, want endpoint %d", last.TimestampMs, cfg.EndMs)
	}
}

func TestRunner_Run_AccruesSupplyInterest(t *testing.T) {
	// Supply 1000 USDC at 36.5% APY on day 0 only: the position compounds
	// by 0.1% per daily step. The capital token has no series and resolves
	// to 1.0.
	oracle := pricing.NewStaticOracle(nil, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	seq := []domain.Block{
		{
			ID: "day0", Kind: domain.KindTimeTrigger, Category: domain.CategoryEntry,
			InputToken: "USDC", Comparator: domain.CmpEq,
			Params: map[string]float64{"target": float64(simStartMs)},
		},
		{
			ID: "supply", Kind: domain.KindLendSupply, Category: domain.CategoryProtocol,
			InputToken: "USDC", Protocol: "aave",
			Params: map[string]float64{"amount": 1000, "apyPct": 36.5},
		},
	}

	res, err := runner.Run(context.Background(), seq, dailyConfig(3, 10000))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []float64{10000, 10001, 10002.001, 10003.003001}
	if len(res.EquityCurve) != len(want) {
		t.Fatalf("expected %d equity points, got %d", len(want), len(res.EquityCurve))
	}
	for i, w := range want {
		if math.Abs(res.EquityCurve[i].EquityUsd-w) > 1e-6 {
			t.Errorf("equity[%d] = %f, want %f", i, res.EquityCurve[i].EquityUsd, w)
		}
	}
	if len(res.Trades) != 1 {
		t.Errorf("expected exactly 1 supply trade, got %d", len(res.Trades))
	}
}

func TestRunner_Run_AllStepsUnpricedIsFatal(t *testing.T) {
	// BTC has no data at all, so every step is skipped.
	oracle := pricing.NewStaticOracle(map[string][]domain.PricePoint{}, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	seq := []domain.Block{
		{ID: "t", Kind: domain.KindPriceTrigger, InputToken: "BTC", Params: map[string]float64{"target": 1}},
	}

	_, err := runner.Run(context.Background(), seq, dailyConfig(3, 10000))
	if err == nil {
		t.Fatal("expected fatal error when no step has usable prices")
	}
	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
}

func TestRunner_Run_Deterministic(t *testing.T) {
	oracle := pricing.NewStaticOracle(map[string][]domain.PricePoint{
		"ETH": makeSeries(simStartMs, domain.MsPerDay, 2900, 2950, 3010, 3050, 2980, 3100),
	}, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	seq := []domain.Block{
		{
			ID: "entry", Kind: domain.KindPriceTrigger, Category: domain.CategoryEntry,
			InputToken: "ETH", Comparator: domain.CmpGTE,
			Params: map[string]float64{"target": 3000},
		},
		{
			ID: "buy", Kind: domain.KindSwap, Category: domain.CategoryProtocol,
			InputToken: "USDC", OutputToken: "ETH",
			Params: map[string]float64{"amount": 2000, "slippagePct": 0.5},
		},
	}
	cfg := dailyConfig(5, 10000)

	first, err := runner.Run(context.Background(), seq, cfg)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := runner.Run(context.Background(), seq, cfg)
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if !reflect.DeepEqual(first.EquityCurve, again.EquityCurve) {
			t.Fatalf("run %d produced a different equity curve", i)
		}
		if !reflect.DeepEqual(first.Trades, again.Trades) {
			t.Fatalf("run %d produced different trades", i)
		}
	}
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	oracle := pricing.NewStaticOracle(map[string][]domain.PricePoint{
		"ETH": makeSeries(simStartMs, domain.MsPerDay, 100, 101, 102, 103),
	}, nil)
	runner := NewRunner(RunnerOptions{Oracle: oracle})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq := []domain.Block{
		{ID: "t", Kind: domain.KindPriceTrigger, InputToken: "ETH", Params: map[string]float64{"target": 1}},
	}
	if _, err := runner.Run(ctx, seq, dailyConfig(3, 10000)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
