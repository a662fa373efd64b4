package marketdata

import (
	"testing"
	"time"
)

func TestParseTicker(t *testing.T) {
	msg := []byte(`{"code":"KRW-BTC","trade_price":123456789.5,"timestamp":1700000000000}`)
	got, err := parseTicker(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "KRW-BTC" || got.Price != 123456789.5 || got.Ts != 1700000000000 {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestReconnectBackoffCapsAtMaxDelay(t *testing.T) {
	cfg := ReconnectConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2.0}
	if d := cfg.backoff(0); d != time.Second {
		t.Fatalf("attempt 0: got %v", d)
	}
	if d := cfg.backoff(2); d != 4*time.Second {
		t.Fatalf("attempt 2: got %v", d)
	}
	if d := cfg.backoff(5); d != 5*time.Second {
		t.Fatalf("expected capped at MaxDelay, got %v", d)
	}
}

func TestBuildSubscribePayloadIncludesAllSymbols(t *testing.T) {
	payload, err := buildSubscribePayload([]string{"KRW-BTC", "KRW-ETH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(payload)
	if !contains(s, "KRW-BTC") || !contains(s, "KRW-ETH") {
		t.Fatalf("payload missing symbols: %s", s)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
