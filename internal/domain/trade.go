package domain

// Trade is one append-only trade-log entry. Never mutated after creation;
// consumed by the metrics calculator and by report export.
type Trade struct {
	ID           int64 // monotonic per ledger
	TimestampMs  int64
	Kind         TradeKind
	InputToken   string
	OutputToken  string // empty when the trade has a single leg
	InputAmount  float64
	OutputAmount float64
	Price        float64 // input-token USD price at execution
	SlippagePct  float64 // zero when not applicable
	FeesUsd      float64
	GasCostUsd   float64
}

// TradeKind classifies trade-log entries.
type TradeKind string

// Trade kinds.
const (
	TradeSwap       TradeKind = "swap"
	TradeSupply     TradeKind = "supply"
	TradeBorrow     TradeKind = "borrow"
	TradeRepay      TradeKind = "repay"
	TradeWithdraw   TradeKind = "withdraw"
	TradeStopLoss   TradeKind = "stop-loss"
	TradeTakeProfit TradeKind = "take-profit"
)

// ValueUsd is the trade's USD notional, used by win-rate pairing.
func (t Trade) ValueUsd() float64 {
	return t.InputAmount * t.Price
}
