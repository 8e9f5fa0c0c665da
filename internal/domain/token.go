package domain

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Token describes an asset a strategy can reference. Mint is the base58
// on-chain mint address; it is informational for simulation but validated at
// the API boundary so a strategy cannot reference a malformed asset.
type Token struct {
	Symbol   string
	Mint     string
	Decimals int
}

// ErrInvalidMint indicates a mint address that is not a 32-byte base58 value.
var ErrInvalidMint = errors.New("invalid mint address")

// ValidateMint checks that mint decodes to exactly 32 bytes of base58.
func ValidateMint(mint string) error {
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decoded to %d bytes, want 32", ErrInvalidMint, len(raw))
	}
	return nil
}

// DefaultTokens is the built-in registry. Custom tokens can be added through
// configuration; entries here cover the assets used by the bundled example
// strategies.
var DefaultTokens = map[string]Token{
	"SOL":  {Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
	"USDC": {Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	"USDT": {Symbol: "USDT", Mint: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
	"ETH":  {Symbol: "ETH", Mint: "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs", Decimals: 8},
	"BTC":  {Symbol: "BTC", Mint: "9n4nbM75f5Ui33ZbPYXn59EwSgE8CGsHtAeTH5YFeJ9E", Decimals: 6},
}
