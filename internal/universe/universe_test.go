package universe

import (
	"testing"
	"time"

	"trading-core/internal/exchange"
)

// spec.md §8 scenario 6.
func TestCurateMarketUniverseFilter(t *testing.T) {
	tickers := []exchange.Ticker{
		{Symbol: "BTC_KRW", AccTradeValue24h: 5e10},
		{Symbol: "ETH_KRW", AccTradeValue24h: 4e10},
		{Symbol: "USDT_KRW", AccTradeValue24h: 3e10},
		{Symbol: "XRP_KRW", AccTradeValue24h: 2.5e10},
		{Symbol: "DOGE_KRW", AccTradeValue24h: 1e10}, // below min24h
		{Symbol: "A_KRW", AccTradeValue24h: 9e10},     // base too short
		{Symbol: "WARN_KRW", AccTradeValue24h: 9e10, MarketWarning: "CAUTION"},
	}
	criteria := Criteria{
		Quote:          "KRW",
		Include:        []string{"BTC", "ETH", "USDT"},
		MinBaseLen:     2,
		Min24hValueKrw: 2e10,
		MaxSymbols:     4,
	}

	snap := Curate(tickers, criteria, time.Unix(0, 0), 300)

	want := []string{"BTC_KRW", "ETH_KRW", "USDT_KRW", "XRP_KRW"}
	if len(snap.Symbols) != len(want) {
		t.Fatalf("expected %v, got %v", want, snap.Symbols)
	}
	for i, w := range want {
		if snap.Symbols[i] != w {
			t.Fatalf("expected %v, got %v", want, snap.Symbols)
		}
	}

	if snap.ExcludedCounts[reasonShortBaseSymbol] != 1 {
		t.Fatalf("expected 1 short_base_symbol exclusion, got %d", snap.ExcludedCounts[reasonShortBaseSymbol])
	}
	if snap.ExcludedCounts[reasonMarketWarning] != 1 {
		t.Fatalf("expected 1 market_warning exclusion, got %d", snap.ExcludedCounts[reasonMarketWarning])
	}
	if snap.ExcludedCounts[reasonLow24hValue] != 1 {
		t.Fatalf("expected 1 low_24h_value exclusion, got %d", snap.ExcludedCounts[reasonLow24hValue])
	}
	if snap.Totals != 7 {
		t.Fatalf("expected totals=7, got %d", snap.Totals)
	}
}

func TestCurateRespectsMaxSymbolsEvenWithManyPassing(t *testing.T) {
	tickers := []exchange.Ticker{
		{Symbol: "AAA_KRW", AccTradeValue24h: 1e11},
		{Symbol: "BBB_KRW", AccTradeValue24h: 9e10},
		{Symbol: "CCC_KRW", AccTradeValue24h: 8e10},
	}
	criteria := Criteria{Quote: "KRW", MinBaseLen: 2, Min24hValueKrw: 1, MaxSymbols: 2}

	snap := Curate(tickers, criteria, time.Unix(0, 0), 300)
	if len(snap.Symbols) != 2 {
		t.Fatalf("expected exactly 2 symbols selected, got %v", snap.Symbols)
	}
	if snap.Symbols[0] != "AAA_KRW" || snap.Symbols[1] != "BBB_KRW" {
		t.Fatalf("expected top-2 by volume, got %v", snap.Symbols)
	}
}
