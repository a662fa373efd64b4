// Package candleinterval maps the closed set of supported candle intervals
// to their exchange REST endpoints and rejects anything outside that set.
package candleinterval

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is one of the supported candle granularities.
type Interval string

const (
	Minute1   Interval = "1m"
	Minute3   Interval = "3m"
	Minute5   Interval = "5m"
	Minute10  Interval = "10m"
	Minute15  Interval = "15m"
	Minute30  Interval = "30m"
	Minute60  Interval = "60m"
	Minute240 Interval = "240m"
	Day       Interval = "day"
	Week      Interval = "week"
	Month     Interval = "month"
)

var validSet = map[Interval]bool{
	Minute1: true, Minute3: true, Minute5: true, Minute10: true,
	Minute15: true, Minute30: true, Minute60: true, Minute240: true,
	Day: true, Week: true, Month: true,
}

// IsValid reports whether raw is one of the supported candle intervals,
// for callers that only need a membership check (e.g. aisettings clamping)
// rather than the typed Interval value.
func IsValid(raw string) bool {
	return validSet[Interval(raw)]
}

// Parse validates raw against the closed set and returns the typed Interval.
func Parse(raw string) (Interval, error) {
	iv := Interval(raw)
	if !validSet[iv] {
		return "", fmt.Errorf("candleinterval: INVALID_ARGUMENT: unsupported interval %q", raw)
	}
	return iv, nil
}

// Endpoint returns the exchange REST path for this interval.
// Nm -> /v1/candles/minutes/N, day/week/month -> /v1/candles/{days,weeks,months}.
func (iv Interval) Endpoint() (string, error) {
	if !validSet[iv] {
		return "", fmt.Errorf("candleinterval: INVALID_ARGUMENT: unsupported interval %q", iv)
	}
	switch iv {
	case Day:
		return "/v1/candles/days", nil
	case Week:
		return "/v1/candles/weeks", nil
	case Month:
		return "/v1/candles/months", nil
	default:
		raw := strings.TrimSuffix(string(iv), "m")
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("candleinterval: INVALID_ARGUMENT: unsupported interval %q", iv)
		}
		return fmt.Sprintf("/v1/candles/minutes/%d", n), nil
	}
}
