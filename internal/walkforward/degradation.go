package walkforward

import (
	"defi-strategy-lab/internal/domain"
)

// Degradation measures how much performance decays out-of-sample, as the
// mean over shared objectives of max(0, (in - out)/in * 100). Objectives
// missing from either side, or with a zero in-sample value, are excluded.
// An out-of-sample improvement never offsets decay elsewhere: each term is
// clamped at zero before averaging.
func Degradation(inSample, outOfSample domain.ObjectiveScores) float64 {
	sum := 0.0
	count := 0
	for name, inVal := range inSample {
		outVal, ok := outOfSample[name]
		if !ok || inVal == 0 {
			continue
		}
		pct := (inVal - outVal) / inVal * 100
		if pct < 0 {
			pct = 0
		}
		sum += pct
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
