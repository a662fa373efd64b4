package marketdata

import (
	"testing"

	"trading-core/internal/exchange"
)

func TestMergeStreamUpdatePreservesPriorRESTFields(t *testing.T) {
	f := &Facade{tickers: newTickerCache(tickerCacheTTL)}
	f.tickers.set("BTC_KRW", exchange.Ticker{Symbol: "BTC_KRW", Price: 100, ChangeRate: 0.05, AccTradeValue24h: 9000})

	f.mergeStreamUpdate(TickerUpdate{Symbol: "KRW-BTC", Price: 101, Ts: 1})

	cached, ok := f.tickers.get("BTC_KRW")
	if !ok {
		t.Fatalf("expected cache hit after merge, keyed by canonical BASE_QUOTE form")
	}
	tk := cached.(exchange.Ticker)
	if tk.Price != 101 {
		t.Fatalf("expected merged price 101, got %v", tk.Price)
	}
	if tk.ChangeRate != 0.05 || tk.AccTradeValue24h != 9000 {
		t.Fatalf("expected non-price fields preserved from prior REST fetch, got %+v", tk)
	}
}

func TestMergeStreamUpdateWithoutPriorEntry(t *testing.T) {
	f := &Facade{tickers: newTickerCache(tickerCacheTTL)}

	f.mergeStreamUpdate(TickerUpdate{Symbol: "KRW-ETH", Price: 50, Ts: 1})

	cached, ok := f.tickers.get("ETH_KRW")
	if !ok {
		t.Fatalf("expected cache hit after first stream push, keyed by canonical BASE_QUOTE form")
	}
	if cached.(exchange.Ticker).Price != 50 {
		t.Fatalf("expected price 50, got %+v", cached)
	}
}

func TestMergeStreamUpdateIgnoresUnparseableWireSymbol(t *testing.T) {
	f := &Facade{tickers: newTickerCache(tickerCacheTTL)}

	f.mergeStreamUpdate(TickerUpdate{Symbol: "not-a-wire-symbol-", Price: 1, Ts: 1})

	if _, ok := f.tickers.get("not-a-wire-symbol-"); ok {
		t.Fatalf("expected malformed wire symbol to be dropped, not cached")
	}
}
