package marketdata

import (
	"testing"
	"time"
)

func TestTickerCacheReturnsFreshEntry(t *testing.T) {
	c := newTickerCache(time.Minute)
	c.set("BTC_KRW", "cached-value")

	got, ok := c.get("BTC_KRW")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got != "cached-value" {
		t.Fatalf("expected cached-value, got %v", got)
	}
}

func TestTickerCacheExpiresAfterTTL(t *testing.T) {
	c := newTickerCache(time.Millisecond)
	c.set("ETH_KRW", "stale-value")
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.get("ETH_KRW"); ok {
		t.Fatalf("expected cache miss after ttl expiry")
	}
}

func TestTickerCacheMissForUnknownSymbol(t *testing.T) {
	c := newTickerCache(time.Minute)
	if _, ok := c.get("XRP_KRW"); ok {
		t.Fatalf("expected cache miss for unknown symbol")
	}
}
