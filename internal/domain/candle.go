package domain

import "fmt"

// Candle is one OHLC bar. TimestampMs is the bar's open time.
type Candle struct {
	TimestampMs int64   `json:"timestampMs"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
}

// ValidateSeries checks the strictly-ascending-timestamp, positive-close,
// high>=low invariants spec.md §3 requires of a candle series.
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if c.Close <= 0 {
			return fmt.Errorf("domain: candle[%d] close must be positive, got %v", i, c.Close)
		}
		if c.High < c.Low {
			return fmt.Errorf("domain: candle[%d] high %v < low %v", i, c.High, c.Low)
		}
		if i > 0 && c.TimestampMs <= candles[i-1].TimestampMs {
			return fmt.Errorf("domain: candle[%d] timestamp %d not strictly after previous %d", i, c.TimestampMs, candles[i-1].TimestampMs)
		}
	}
	return nil
}
