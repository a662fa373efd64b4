// Package marketdata is the single facade other components use to read
// candles, tickers and account balances and to subscribe to the live ticker
// stream (spec.md §2, §4.6). It wraps internal/exchange so callers never
// import it directly.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"trading-core/internal/candleinterval"
	"trading-core/internal/domain"
	"trading-core/internal/exchange"
	"trading-core/internal/symbol"
)

// tickerCacheTTL bounds how long a fetched ticker is reused across the
// universe curator and signal engine within the same window tick.
const tickerCacheTTL = 2 * time.Second

// Facade is the read-side market-data surface backing the signal engine,
// universe curator and risk engine.
type Facade struct {
	client  *exchange.Client
	tickers *tickerCache
	stream  *StreamClient
}

// New wraps an already-configured exchange client.
func New(client *exchange.Client) *Facade {
	return &Facade{client: client, tickers: newTickerCache(tickerCacheTTL)}
}

// StartTickerStream opens the exchange's public ticker websocket for symbols
// and feeds every push into the same tickerCache Tickers() reads from, so a
// live stream update satisfies a window's Tickers() call without a REST
// round trip (spec.md §4.6 "WS ticker stream"). It returns a stop function;
// callers should defer it alongside ctx cancellation.
func (f *Facade) StartTickerStream(ctx context.Context, streamURL string, symbols []string) (func(), error) {
	wires := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym, err := symbol.Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("marketdata: start ticker stream: %w", err)
		}
		wires = append(wires, sym.Wire())
	}

	f.stream = NewStreamClient(streamURL)
	updates, stop, err := f.stream.Subscribe(ctx, wires)
	if err != nil {
		return nil, fmt.Errorf("marketdata: start ticker stream: %w", err)
	}
	go func() {
		for u := range updates {
			f.mergeStreamUpdate(u)
		}
	}()
	return stop, nil
}

// mergeStreamUpdate folds a pushed price into the cached ticker, preserving
// whatever non-price fields a prior REST fetch populated. u.Symbol arrives
// in the exchange's QUOTE-BASE wire form (spec.md §4.6); the cache is keyed
// by the canonical BASE_QUOTE form Tickers()/GetTickers use, so it must be
// converted before the lookup or the stream silently never hits the cache.
func (f *Facade) mergeStreamUpdate(u TickerUpdate) {
	sym, err := symbol.FromWire(u.Symbol)
	if err != nil {
		return
	}
	key := string(sym)

	tk := exchange.Ticker{Symbol: key, Price: u.Price}
	if cached, ok := f.tickers.get(key); ok {
		if prev, ok := cached.(exchange.Ticker); ok {
			tk.ChangeRate = prev.ChangeRate
			tk.AccTradeValue24h = prev.AccTradeValue24h
			tk.MarketWarning = prev.MarketWarning
		}
	}
	f.tickers.set(key, tk)
}

// Candles fetches count candles for symbol at the given interval.
func (f *Facade) Candles(ctx context.Context, sym string, interval string, count int) ([]domain.Candle, error) {
	iv, err := candleinterval.Parse(interval)
	if err != nil {
		return nil, err
	}
	candles, err := f.client.GetCandles(ctx, sym, iv, count)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateSeries(candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// Tickers fetches current quotes for the given symbols, reusing a recent
// cached batch when every requested symbol is still fresh.
func (f *Facade) Tickers(ctx context.Context, symbols []string) ([]exchange.Ticker, error) {
	if cached, ok := f.cachedTickers(symbols); ok {
		return cached, nil
	}
	tickers, err := f.client.GetTickers(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for _, tk := range tickers {
		f.tickers.set(tk.Symbol, tk)
	}
	return tickers, nil
}

func (f *Facade) cachedTickers(symbols []string) ([]exchange.Ticker, bool) {
	out := make([]exchange.Ticker, 0, len(symbols))
	for _, sym := range symbols {
		cached, ok := f.tickers.get(sym)
		if !ok {
			return nil, false
		}
		tk, ok := cached.(exchange.Ticker)
		if !ok {
			return nil, false
		}
		out = append(out, tk)
	}
	return out, true
}

// Balances fetches the account's current holdings snapshot.
func (f *Facade) Balances(ctx context.Context) (domain.BalancesSnapshot, error) {
	return f.client.GetAccounts(ctx)
}
