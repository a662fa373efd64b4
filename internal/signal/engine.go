// Package signal implements the two strategies behind the signal engine:
// breakout and risk-managed momentum (spec.md §4.2). Both share the
// Strategy interface so the decision resolver and scheduler treat them
// uniformly.
//
// Grounded on the teacher's internal/strategy.Engine: same evaluate-candles
// shape, generalized from Binance-kline-driven signals to the spec's closed
// two-strategy set with explicit lookback/threshold parameters instead of a
// DB-loaded strategy config row.
package signal

import "trading-core/internal/domain"

// Action is the signal verdict.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Evaluation is what Strategy.Evaluate returns.
type Evaluation struct {
	Action  Action
	Reason  string
	Metrics map[string]any
}

// Strategy is the shared interface both strategies implement.
type Strategy interface {
	Evaluate(candles []domain.Candle) Evaluation
}

func hold(reason string) Evaluation {
	return Evaluation{Action: ActionHold, Reason: reason}
}
