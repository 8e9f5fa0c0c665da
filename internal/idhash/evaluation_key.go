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

// ComputeEvaluationKey computes the result-cache key for one candidate
// evaluation. Strategy, backtest config, objective list and parameter set
// together determine the scores, so all of them are part of the key; this
// keeps entries from colliding when several runs share one cache backend.
// Formula: SHA256(strategy_id|start|end|capital|token|interval|gas|fee|objectives|fingerprint)
// Returns hex-encoded hash (64 characters).
func ComputeEvaluationKey(blocks []domain.Block, cfg domain.BacktestConfig, objectives []string, params domain.ParameterSet) string {
	sorted := append([]string(nil), objectives...)
	sort.Strings(sorted)

	data := fmt.Sprintf("%s|%d|%d|%s|%s|%d|%s|%s|%s|%s",
		ComputeStrategyID(blocks),
		cfg.StartMs, cfg.EndMs,
		strconv.FormatFloat(cfg.InitialCapital, 'g', -1, 64),
		cfg.CapitalToken,
		cfg.RebalanceIntervalMs,
		strconv.FormatFloat(cfg.GasCostUsd, 'g', -1, 64),
		strconv.FormatFloat(cfg.SwapFeePct, 'g', -1, 64),
		strings.Join(sorted, ","),
		ComputeFingerprint(params))

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
