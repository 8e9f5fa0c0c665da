package domain

import (
	"errors"
	"testing"
)

func TestValidateMint(t *testing.T) {
	if err := ValidateMint("So11111111111111111111111111111111111111112"); err != nil {
		t.Errorf("Expected the wrapped SOL mint to validate, got %v", err)
	}

	invalid := []string{
		"",
		"abc",             // decodes to fewer than 32 bytes
		"0OIl-not-base58", // characters outside the base58 alphabet
	}
	for _, mint := range invalid {
		if err := ValidateMint(mint); !errors.Is(err, ErrInvalidMint) {
			t.Errorf("ValidateMint(%q) = %v, want ErrInvalidMint", mint, err)
		}
	}
}

func TestDefaultTokens_AllMintsValid(t *testing.T) {
	for sym, tok := range DefaultTokens {
		if tok.Symbol != sym {
			t.Errorf("registry key %q holds symbol %q", sym, tok.Symbol)
		}
		if err := ValidateMint(tok.Mint); err != nil {
			t.Errorf("built-in token %s has an invalid mint: %v", sym, err)
		}
	}
}
