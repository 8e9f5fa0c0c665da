package domain

// Position is a protocol holding owned exclusively by the ledger. Amount
// mutates in place (interest accrual, partial withdrawal) until it reaches
// zero, at which point the ledger removes the position. Borrow positions
// carry a negative Amount so equity nets debt without a special case.
type Position struct {
	ID               string
	Kind             PositionKind
	Asset            string
	Amount           float64
	EntryPrice       float64
	EntryTimestampMs int64
	ProtocolTag      string
	APYPct           float64 // annual yield for supply, annual cost for borrow
}

// PositionKind identifies how a position was opened.
type PositionKind string

// Position kinds.
const (
	PositionSupply    PositionKind = "supply"
	PositionBorrow    PositionKind = "borrow"
	PositionLiquidity PositionKind = "liquidity"
	PositionStaking   PositionKind = "staking"
)

// Long reports whether the position is an asset holding rather than a debt.
// Stop-loss and take-profit scans only consider long positions.
func (p Position) Long() bool {
	return p.Kind != PositionBorrow
}
