package signal

import (
	"math"
	"testing"

	"trading-core/internal/domain"
)

func TestNewRejectsVolatilityLookbackNotExceedingMomentum(t *testing.T) {
	_, err := New(RiskManagedMomentum{MomentumLookback: 24, VolatilityLookback: 24})
	if err == nil {
		t.Fatalf("expected validation error when volatilityLookback == momentumLookback")
	}
}

func TestMomentumUpSignal(t *testing.T) {
	strat, err := New(RiskManagedMomentum{
		MomentumLookback: 2, VolatilityLookback: 4,
		EntryBps: 10, ExitBps: 10, TargetVolatilityPct: 0.6,
		MinMultiplier: 0.4, MaxMultiplier: 2.5,
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	closes := []float64{100, 100, 100, 100, 100, 120}
	got := strat.Evaluate(candleSeries(closes))
	if got.Action != ActionBuy || got.Reason != "momentum_up" {
		t.Fatalf("expected momentum_up, got %+v", got)
	}
	mult, ok := got.Metrics["riskMultiplier"].(float64)
	if !ok || mult < strat.MinMultiplier || mult > strat.MaxMultiplier {
		t.Fatalf("expected riskMultiplier within bounds, got %v", got.Metrics["riskMultiplier"])
	}
}

func TestMomentumHoldWhenFlat(t *testing.T) {
	strat, err := New(RiskManagedMomentum{
		MomentumLookback: 2, VolatilityLookback: 4,
		EntryBps: 10, ExitBps: 10, TargetVolatilityPct: 0.6,
		MinMultiplier: 0.4, MaxMultiplier: 2.5,
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	closes := []float64{100, 100, 100, 100, 100, 100}
	got := strat.Evaluate(candleSeries(closes))
	if got.Action != ActionHold {
		t.Fatalf("expected hold on flat series, got %+v", got)
	}
}

// TestMomentumVolatilityUsesLogReturnsNotTrueRange pins the volatility
// formula to sample stddev of close-to-close log returns (spec.md §4.2),
// with High/Low set far away from Close on every bar so a true-range-style
// formula would produce a visibly different (and wrong) result.
func TestMomentumVolatilityUsesLogReturnsNotTrueRange(t *testing.T) {
	closes := []float64{100, 110, 99, 105, 95}
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{TimestampMs: int64(i) * 60000, Open: c, High: c + 50, Low: c - 50, Close: c}
	}

	strat, err := New(RiskManagedMomentum{
		MomentumLookback: 1, VolatilityLookback: 3,
		EntryBps: 1e9, ExitBps: 1e9, TargetVolatilityPct: 1,
		MinMultiplier: 0.1, MaxMultiplier: 10,
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	got := strat.Evaluate(candles)
	sigma, ok := got.Metrics["realizedVolPct"].(float64)
	if !ok {
		t.Fatalf("expected realizedVolPct metric, got %+v", got.Metrics)
	}

	// Expected value is the sample stddev of ln(99/110), ln(105/99), ln(95/105), *100.
	r1 := math.Log(99.0 / 110.0)
	r2 := math.Log(105.0 / 99.0)
	r3 := math.Log(95.0 / 105.0)
	mean := (r1 + r2 + r3) / 3
	sumSq := (r1-mean)*(r1-mean) + (r2-mean)*(r2-mean) + (r3-mean)*(r3-mean)
	want := math.Sqrt(sumSq/2) * 100

	if math.Abs(sigma-want) > 0.05 {
		t.Fatalf("expected log-return volatility ~%.4f (High/Low-independent), got %.4f", want, sigma)
	}
}

func TestMomentumInsufficientCandles(t *testing.T) {
	strat, err := New(RiskManagedMomentum{MomentumLookback: 12, VolatilityLookback: 48, EntryBps: 10, ExitBps: 10, TargetVolatilityPct: 0.6, MinMultiplier: 0.4, MaxMultiplier: 2.5})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	got := strat.Evaluate(candleSeries([]float64{100, 101, 102}))
	if got.Action != ActionHold || got.Reason != "insufficient_candles" {
		t.Fatalf("expected insufficient_candles, got %+v", got)
	}
}
