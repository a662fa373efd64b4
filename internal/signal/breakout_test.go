package signal

import (
	"testing"

	"trading-core/internal/domain"
)

func candleSeries(closes []float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{TimestampMs: int64(i) * 60000, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func TestBreakoutInsufficientCandles(t *testing.T) {
	b := Breakout{Lookback: 5, BufferBps: 10}
	got := b.Evaluate(candleSeries([]float64{100, 101, 102}))
	if got.Action != ActionHold || got.Reason != "insufficient_candles" {
		t.Fatalf("expected insufficient_candles hold, got %+v", got)
	}
}

func TestBreakoutUp(t *testing.T) {
	b := Breakout{Lookback: 3, BufferBps: 0}
	candles := candleSeries([]float64{100, 101, 100})
	// window highs are 101,102,101 (close+1); make the final close exceed the max window high.
	candles = append(candles, domain.Candle{TimestampMs: 999, Open: 200, High: 200, Low: 199, Close: 200})
	got := b.Evaluate(candles)
	if got.Action != ActionBuy || got.Reason != "breakout_up" {
		t.Fatalf("expected breakout_up, got %+v", got)
	}
}

func TestBreakoutDown(t *testing.T) {
	b := Breakout{Lookback: 3, BufferBps: 0}
	candles := candleSeries([]float64{100, 101, 100})
	candles = append(candles, domain.Candle{TimestampMs: 999, Open: 1, High: 2, Low: 1, Close: 1})
	got := b.Evaluate(candles)
	if got.Action != ActionSell || got.Reason != "breakout_dn" {
		t.Fatalf("expected breakout_dn, got %+v", got)
	}
}

func TestBreakoutHoldInsideBand(t *testing.T) {
	b := Breakout{Lookback: 3, BufferBps: 0}
	candles := candleSeries([]float64{100, 101, 100, 100.5})
	got := b.Evaluate(candles)
	if got.Action != ActionHold {
		t.Fatalf("expected hold, got %+v", got)
	}
}
