package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"defi-strategy-lab/internal/domain"
)

// ComputeSolutionID computes a deterministic solution id using SHA256.
// Formula: SHA256(run_id|parameter_fingerprint)
// Returns hex-encoded hash (64 characters).
func ComputeSolutionID(runID string, params domain.ParameterSet) string {
	data := fmt.Sprintf("%s|%s", runID, ComputeFingerprint(params))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
