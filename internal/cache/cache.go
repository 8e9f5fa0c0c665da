// Package cache stores evaluation results keyed by parameter fingerprint so
// the scheduler can skip re-simulating candidates it has already scored.
package cache

import (
	"context"
	"time"

	"defi-strategy-lab/internal/domain"
)

// Entry is one cached evaluation result.
type Entry struct {
	InSampleScores    domain.ObjectiveScores `json:"inSampleScores"`
	OutOfSampleScores domain.ObjectiveScores `json:"outOfSampleScores"`
	DegradationPct    float64                `json:"degradationPct"`
}

// Cache is the minimal API the scheduler needs: lookup and store by
// fingerprint. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (entry *Entry, ok bool, err error)
	Set(ctx context.Context, fingerprint string, entry *Entry, ttl time.Duration) error
	Close() error
}
