// Package idhash computes deterministic identifiers for parameter sets and
// optimizer solutions. The scheduler keys its evaluation cache on parameter
// fingerprints, so logically equal sets must hash identically.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"defi-strategy-lab/internal/domain"
)

// ComputeFingerprint computes a deterministic fingerprint for a parameter set
// using SHA256. Block ids and parameter names are sorted before hashing so the
// result does not depend on map iteration order.
// Formula: SHA256(block_id.param=value|...) over the sorted entries.
// Returns hex-encoded hash (64 characters).
func ComputeFingerprint(params domain.ParameterSet) string {
	blockIDs := make([]string, 0, len(params))
	for id := range params {
		blockIDs = append(blockIDs, id)
	}
	sort.Strings(blockIDs)

	var sb strings.Builder
	for _, blockID := range blockIDs {
		names := make([]string, 0, len(params[blockID]))
		for name := range params[blockID] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if sb.Len() > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(blockID)
			sb.WriteByte('.')
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatFloat(params[blockID][name], 'g', -1, 64))
		}
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}
