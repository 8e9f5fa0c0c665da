// Package ledger holds the mutable state of one simulation run: token
// balances, open positions and the append-only trade log. A ledger is owned
// by exactly one run and is never shared between goroutines, so it carries
// no locking.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"defi-strategy-lab/internal/domain"
)

// Amounts smaller than this are treated as zero when closing positions and
// clamping post-subtraction dust.
const epsilon = 1e-9

// Ledger errors.
var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position amount")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrPositionNotFound     = errors.New("position not found")
	ErrMissingCollateral    = errors.New("no supply position under protocol tag")
)

// Ledger is the sole mutator of simulation state.
type Ledger struct {
	balances  map[string]float64
	positions map[string]*domain.Position
	posOrder  []string // insertion order, for deterministic scans
	trades    []domain.Trade

	nextTradeID int64
	nextPosSeq  int64
}

// New creates a ledger seeded with initialCapital of a single token.
func New(initialCapital float64, token string) *Ledger {
	l := &Ledger{
		balances:  make(map[string]float64),
		positions: make(map[string]*domain.Position),
	}
	if initialCapital > 0 && token != "" {
		l.balances[token] = initialCapital
	}
	return l
}

// GetBalance returns the current balance of a token (zero when unknown).
func (l *Ledger) GetBalance(token string) float64 {
	return l.balances[token]
}

// Balances returns a copy of all non-zero balances.
func (l *Ledger) Balances() map[string]float64 {
	out := make(map[string]float64, len(l.balances))
	for token, amount := range l.balances {
		if amount > 0 {
			out[token] = amount
		}
	}
	return out
}

// AddBalance credits a token balance.
func (l *Ledger) AddBalance(token string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
	}
	l.balances[token] += amount
	return nil
}

// SubtractBalance debits a token balance. Fails with ErrInsufficientBalance
// when the requested amount exceeds the available balance; the balance is
// left unchanged on failure and never driven negative.
func (l *Ledger) SubtractBalance(token string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, amount)
	}
	available := l.balances[token]
	if amount-available > epsilon {
		return fmt.Errorf("%w: %s requested %v, available %v", ErrInsufficientBalance, token, amount, available)
	}
	remaining := available - amount
	if remaining < 0 {
		remaining = 0
	}
	l.balances[token] = remaining
	return nil
}

// AddPosition stores a position, assigning an ID when empty, and returns the
// ID.
func (l *Ledger) AddPosition(p domain.Position) string {
	if p.ID == "" {
		l.nextPosSeq++
		p.ID = fmt.Sprintf("pos-%d", l.nextPosSeq)
	}
	cp := p
	l.positions[p.ID] = &cp
	l.posOrder = append(l.posOrder, p.ID)
	return p.ID
}

// RemovePosition deletes a position and returns its final state.
func (l *Ledger) RemovePosition(id string) (domain.Position, error) {
	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	delete(l.positions, id)
	for i, pid := range l.posOrder {
		if pid == id {
			l.posOrder = append(l.posOrder[:i], l.posOrder[i+1:]...)
			break
		}
	}
	return *p, nil
}

// Position returns a copy of the position with the given ID.
func (l *Ledger) Position(id string) (domain.Position, bool) {
	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions in insertion order.
// Deterministic ordering keeps risk scans and therefore whole runs
// reproducible.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.posOrder))
	for _, id := range l.posOrder {
		out = append(out, *l.positions[id])
	}
	return out
}

// FindPosition returns the first open position matching the filter, in
// insertion order.
func (l *Ledger) FindPosition(match func(domain.Position) bool) (domain.Position, bool) {
	for _, id := range l.posOrder {
		if match(*l.positions[id]) {
			return *l.positions[id], true
		}
	}
	return domain.Position{}, false
}

// AdjustPositionAmount adds delta to a position's amount (negative deltas
// shrink long positions, positive deltas shrink debt). Positions whose
// amount ends within epsilon of zero are removed. Returns the new amount.
func (l *Ledger) AdjustPositionAmount(id string, delta float64) (float64, error) {
	p, ok := l.positions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	p.Amount += delta
	if p.Amount > -epsilon && p.Amount < epsilon {
		if _, err := l.RemovePosition(id); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return p.Amount, nil
}

// RecordTrade appends a trade to the log, stamping the next monotonic ID,
// and returns the stamped trade.
func (l *Ledger) RecordTrade(t domain.Trade) domain.Trade {
	l.nextTradeID++
	t.ID = l.nextTradeID
	l.trades = append(l.trades, t)
	return t
}

// Trades returns a copy of the trade log in record order.
func (l *Ledger) Trades() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// TradeCount returns the number of recorded trades.
func (l *Ledger) TradeCount() int {
	return len(l.trades)
}

// Equity values the portfolio against a price snapshot:
// Σ(balance×price) + Σ(position.amount×price). Borrow positions carry
// negative amounts, so debt reduces equity through the same sum. Tokens
// missing from the snapshot contribute nothing. Summation order is fixed
// so repeated runs produce identical floats.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	tokens := make([]string, 0, len(l.balances))
	for token := range l.balances {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	total := 0.0
	for _, token := range tokens {
		if price, ok := prices[token]; ok {
			total += l.balances[token] * price
		}
	}
	for _, id := range l.posOrder {
		p := l.positions[id]
		if price, ok := prices[p.Asset]; ok {
			total += p.Amount * price
		}
	}
	return total
}

// HeldTokens returns every token with a balance or position, sorted.
func (l *Ledger) HeldTokens() []string {
	seen := make(map[string]bool)
	for token, amount := range l.balances {
		if amount > 0 {
			seen[token] = true
		}
	}
	for _, id := range l.posOrder {
		seen[l.positions[id].Asset] = true
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
