package domain

// Strategy is a named, persistable block sequence. Simulation and
// optimization operate on the Blocks slice; Name and Description exist for
// storage and reports only.
type Strategy struct {
	ID          string
	Name        string
	Description string
	Blocks      []Block
	CreatedAtMs int64
	UpdatedAtMs int64
}

// ReferencedTokens returns the distinct token symbols used by the strategy's
// blocks, in first-seen order.
func (s Strategy) ReferencedTokens() []string {
	return TokensOf(s.Blocks)
}

// TokensOf returns the distinct token symbols referenced by a block
// sequence, in first-seen order.
func TokensOf(blocks []Block) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range blocks {
		for _, tok := range b.Tokens() {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}
