package signal

import (
	"fmt"
	"math"

	"trading-core/internal/domain"
)

// RiskManagedMomentum signals on the close-to-close return over
// MomentumLookback bars, sized inversely to realized volatility
// (spec.md §4.2). VolatilityLookback must exceed MomentumLookback; New
// validates this the way strategy construction is expected to (spec.md §4.2
// "V > M required at strategy-validation time").
//
// Realized volatility is the sample stddev of close-to-close log returns
// over the last V bars, expressed as a percent (spec.md §4.2).
type RiskManagedMomentum struct {
	MomentumLookback    int
	VolatilityLookback  int
	EntryBps            float64
	ExitBps             float64
	TargetVolatilityPct float64
	MinMultiplier       float64
	MaxMultiplier       float64
}

// New validates config and returns a ready-to-use strategy.
func New(m RiskManagedMomentum) (RiskManagedMomentum, error) {
	if m.VolatilityLookback <= m.MomentumLookback {
		return RiskManagedMomentum{}, fmt.Errorf("signal: volatilityLookback (%d) must exceed momentumLookback (%d)", m.VolatilityLookback, m.MomentumLookback)
	}
	return m, nil
}

const volatilityEpsilon = 1e-9

// Evaluate implements Strategy.
func (m RiskManagedMomentum) Evaluate(candles []domain.Candle) Evaluation {
	need := m.VolatilityLookback + 1
	if m.MomentumLookback+1 > need {
		need = m.MomentumLookback + 1
	}
	if len(candles) < need {
		return hold("insufficient_candles")
	}

	n := len(candles)
	current := candles[n-1]
	anchor := candles[n-1-m.MomentumLookback]
	momentumBps := (current.Close/anchor.Close - 1) * 1e4

	sigmaPct := realizedVolatilityPct(candles[n-m.VolatilityLookback-1:], m.VolatilityLookback)
	riskMultiplier := m.TargetVolatilityPct / math.Max(volatilityEpsilon, sigmaPct)
	if riskMultiplier < m.MinMultiplier {
		riskMultiplier = m.MinMultiplier
	}
	if riskMultiplier > m.MaxMultiplier {
		riskMultiplier = m.MaxMultiplier
	}

	metrics := map[string]any{
		"momentumBps":    momentumBps,
		"realizedVolPct": sigmaPct,
		"riskMultiplier": riskMultiplier,
	}

	switch {
	case momentumBps > m.EntryBps:
		return Evaluation{Action: ActionBuy, Reason: "momentum_up", Metrics: metrics}
	case momentumBps < -m.ExitBps:
		return Evaluation{Action: ActionSell, Reason: "momentum_dn", Metrics: metrics}
	default:
		return Evaluation{Action: ActionHold, Reason: "no_momentum", Metrics: metrics}
	}
}

// realizedVolatilityPct computes the sample stddev (n-1 denominator) of
// close-to-close log returns over the last V bars, expressed as a percent
// (spec.md §4.2: "sample stddev of log-returns over the last V bars").
// bars must hold V+1 closes so V log-returns can be formed.
func realizedVolatilityPct(bars []domain.Candle, v int) float64 {
	returns := make([]float64, 0, v)
	for i := len(bars) - v; i < len(bars); i++ {
		returns = append(returns, math.Log(bars[i].Close/bars[i-1].Close))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	if len(returns) < 2 {
		return 0
	}
	return math.Sqrt(sumSq/float64(len(returns)-1)) * 100
}
