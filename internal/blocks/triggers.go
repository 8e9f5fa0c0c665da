package blocks

import (
	"defi-strategy-lab/internal/domain"
)

// eqTolerance is the absolute tolerance of the "==" comparator, guarding
// against floating-point false negatives.
const eqTolerance = 0.01

// compare applies a trigger comparator. An empty comparator defaults to ">=".
func compare(value, target float64, cmp string) (bool, bool) {
	switch cmp {
	case domain.CmpGTE, "":
		return value >= target, true
	case domain.CmpLTE:
		return value <= target, true
	case domain.CmpGT:
		return value > target, true
	case domain.CmpLT:
		return value < target, true
	case domain.CmpEq:
		diff := value - target
		if diff < 0 {
			diff = -diff
		}
		return diff <= eqTolerance, true
	default:
		return false, false
	}
}

func execPriceTrigger(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("price trigger requires a token")
	}
	target, ok := b.Param("target")
	if !ok {
		return failf("price trigger requires param target")
	}
	price, ok := ctx.Prices[b.InputToken]
	if !ok {
		return failf("no price for %s", b.InputToken)
	}

	hit, ok := compare(price, target, b.Comparator)
	if !ok {
		return failf("unknown comparator %q", b.Comparator)
	}
	payload := map[string]float64{"price": price, "target": target}
	if !hit {
		return notFired("%s price %.4f not %s %.4f", b.InputToken, price, comparatorOrDefault(b.Comparator), target)
	}
	return fired(payload, "%s price %.4f %s %.4f", b.InputToken, price, comparatorOrDefault(b.Comparator), target)
}

func execTimeTrigger(b domain.Block, ctx *Context) ExecutionResult {
	target, ok := b.Param("target")
	if !ok {
		return failf("time trigger requires param target")
	}
	now := float64(ctx.TimestampMs)

	hit, ok := compare(now, target, b.Comparator)
	if !ok {
		return failf("unknown comparator %q", b.Comparator)
	}
	payload := map[string]float64{"timestamp": now, "target": target}
	if !hit {
		return notFired("timestamp %d not %s %.0f", ctx.TimestampMs, comparatorOrDefault(b.Comparator), target)
	}
	return fired(payload, "timestamp %d %s %.0f", ctx.TimestampMs, comparatorOrDefault(b.Comparator), target)
}

func execVolumeTrigger(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("volume trigger requires a token")
	}
	target, ok := b.Param("target")
	if !ok {
		return failf("volume trigger requires param target")
	}
	volume, ok := ctx.Volumes[b.InputToken]
	if !ok {
		return failf("no volume data for %s", b.InputToken)
	}

	hit, ok := compare(volume, target, b.Comparator)
	if !ok {
		return failf("unknown comparator %q", b.Comparator)
	}
	payload := map[string]float64{"volume": volume, "target": target}
	if !hit {
		return notFired("%s volume %.2f not %s %.2f", b.InputToken, volume, comparatorOrDefault(b.Comparator), target)
	}
	return fired(payload, "%s volume %.2f %s %.2f", b.InputToken, volume, comparatorOrDefault(b.Comparator), target)
}

func execIndicatorTrigger(b domain.Block, ctx *Context) ExecutionResult {
	if b.InputToken == "" {
		return failf("indicator trigger requires a token")
	}
	target, ok := b.Param("target")
	if !ok {
		return failf("indicator trigger requires param target")
	}
	period := 14.0
	if v, ok := b.Param("period"); ok {
		period = v
	}
	if period < 1 {
		return failf("indicator period must be >= 1, got %v", period)
	}

	history := ctx.History[b.InputToken]
	value, enough, err := indicatorValue(b.Indicator, history, int(period))
	if err != nil {
		return failf("%v", err)
	}
	if !enough {
		// Not a failure: history simply has not accumulated yet.
		return notFired("insufficient history for %s(%d): have %d samples", indicatorOrDefault(b.Indicator), int(period), len(history))
	}

	hit, ok := compare(value, target, b.Comparator)
	if !ok {
		return failf("unknown comparator %q", b.Comparator)
	}
	payload := map[string]float64{"value": value, "target": target, "period": period}
	if !hit {
		return notFired("%s %s %.4f not %s %.4f", b.InputToken, indicatorOrDefault(b.Indicator), value, comparatorOrDefault(b.Comparator), target)
	}
	return fired(payload, "%s %s %.4f %s %.4f", b.InputToken, indicatorOrDefault(b.Indicator), value, comparatorOrDefault(b.Comparator), target)
}

func comparatorOrDefault(cmp string) string {
	if cmp == "" {
		return domain.CmpGTE
	}
	return cmp
}

func indicatorOrDefault(name string) string {
	if name == "" {
		return "sma"
	}
	return name
}
