package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"defi-strategy-lab/internal/domain"
)

// ComputeStrategyID computes a deterministic id for a block sequence using
// SHA256. Block order is part of the identity; parameter names within a block
// are sorted.
// Formula: SHA256(id|kind|category|tokens|protocol|comparator|indicator|params;...)
// Returns hex-encoded hash (64 characters).
func ComputeStrategyID(blocks []domain.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		names := make([]string, 0, len(b.Params))
		for name := range b.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		params := make([]string, 0, len(names))
		for _, name := range names {
			params = append(params, name+"="+strconv.FormatFloat(b.Params[name], 'g', -1, 64))
		}

		parts = append(parts, fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s",
			b.ID, b.Kind, b.Category,
			b.InputToken, b.OutputToken, b.Protocol,
			b.Comparator, b.Indicator,
			strings.Join(params, ",")))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(hash[:])
}
