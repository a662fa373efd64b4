// Package symbol normalizes trading-pair identifiers between the canonical
// BASE_QUOTE form used internally and the exchange's QUOTE-BASE wire form.
package symbol

import (
	"fmt"
	"strings"
)

// Symbol is the canonical uppercase BASE_QUOTE representation, e.g. "BTC_KRW".
type Symbol string

// Normalize accepts any surface form (lowercase, dashes, mixed case) and
// returns the canonical BASE_QUOTE form. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("symbol: invalid symbol %q", raw)
	}
	return Symbol(parts[0] + "_" + parts[1]), nil
}

// MustNormalize panics on invalid input; reserved for compile-time-known
// literals in tests and defaults.
func MustNormalize(raw string) Symbol {
	s, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Base returns the base currency, e.g. "BTC" for "BTC_KRW".
func (s Symbol) Base() string {
	parts := strings.SplitN(string(s), "_", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}

// Quote returns the quote currency, e.g. "KRW" for "BTC_KRW".
func (s Symbol) Quote() string {
	parts := strings.SplitN(string(s), "_", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Wire converts the canonical form to the exchange's QUOTE-BASE wire form,
// e.g. "BTC_KRW" -> "KRW-BTC".
func (s Symbol) Wire() string {
	parts := strings.SplitN(string(s), "_", 2)
	if len(parts) != 2 {
		return string(s)
	}
	return parts[1] + "-" + parts[0]
}

// FromWire parses the exchange's QUOTE-BASE wire form back into canonical form.
func FromWire(wire string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(wire))
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("symbol: invalid wire symbol %q", wire)
	}
	// wire is QUOTE-BASE
	return Normalize(parts[1] + "_" + parts[0])
}

func (s Symbol) String() string { return string(s) }
