package signal

import "trading-core/internal/domain"

// Breakout signals a breakout above the recent high or below the recent low
// of a lookback window, with a buffer in basis points to avoid noise
// triggers (spec.md §4.2).
type Breakout struct {
	Lookback  int
	BufferBps float64
}

// Evaluate implements Strategy.
func (b Breakout) Evaluate(candles []domain.Candle) Evaluation {
	if len(candles) < b.Lookback+1 {
		return hold("insufficient_candles")
	}

	current := candles[len(candles)-1]
	window := candles[len(candles)-1-b.Lookback : len(candles)-1]

	high := window[0].High
	low := window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	upperBand := high * (1 + b.BufferBps/1e4)
	lowerBand := low * (1 - b.BufferBps/1e4)

	metrics := map[string]any{"high": high, "low": low, "close": current.Close}

	switch {
	case current.Close > upperBand:
		return Evaluation{Action: ActionBuy, Reason: "breakout_up", Metrics: metrics}
	case current.Close < lowerBand:
		return Evaluation{Action: ActionSell, Reason: "breakout_dn", Metrics: metrics}
	default:
		return Evaluation{Action: ActionHold, Reason: "no_breakout", Metrics: metrics}
	}
}
