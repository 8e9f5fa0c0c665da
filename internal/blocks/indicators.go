package blocks

import (
	"fmt"

	"defi-strategy-lab/internal/domain"
)

// indicatorValue computes the named indicator over the tail of a price
// history. The second return is false while history is shorter than the
// indicator needs.
func indicatorValue(name string, history []domain.PricePoint, period int) (float64, bool, error) {
	switch indicatorOrDefault(name) {
	case "sma":
		return sma(history, period)
	case "rsi":
		return rsi(history, period)
	default:
		return 0, false, fmt.Errorf("unknown indicator %q", name)
	}
}

// sma is the arithmetic mean of the last period prices.
func sma(history []domain.PricePoint, period int) (float64, bool, error) {
	if len(history) < period {
		return 0, false, nil
	}
	tail := history[len(history)-period:]
	sum := 0.0
	for _, p := range tail {
		sum += p.Price
	}
	return sum / float64(period), true, nil
}

// rsi is the classic relative strength index over the last period price
// changes (period+1 samples). All-gain history yields 100, all-loss 0.
func rsi(history []domain.PricePoint, period int) (float64, bool, error) {
	if len(history) < period+1 {
		return 0, false, nil
	}
	tail := history[len(history)-(period+1):]

	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		delta := tail[i].Price - tail[i-1].Price
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true, nil
}
