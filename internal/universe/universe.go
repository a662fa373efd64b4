// Package universe curates the set of symbols the scheduler is allowed to
// trade this session from a raw ticker list (spec.md §2 "Market-universe
// curator", §8 scenario 6).
package universe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"trading-core/internal/exchange"
)

// Criteria configures the curator.
type Criteria struct {
	Quote         string   // e.g. "KRW"
	Include       []string // base symbols always selected regardless of filters
	MinBaseLen    int
	Min24hValueKrw float64
	MaxSymbols    int
}

// Candidate is one evaluated market.
type Candidate struct {
	Symbol           string  `json:"symbol"`
	Market           string  `json:"market"`
	LastPrice        float64 `json:"lastPrice"`
	ChangeRate       float64 `json:"changeRate"`
	AccTradeValue24h float64 `json:"accTradeValue24h"`
	SelectionReason  string  `json:"selectionReason"`
}

// Snapshot is the persisted market-universe result (spec.md §3
// MarketUniverseSnapshot).
type Snapshot struct {
	GeneratedAt     time.Time         `json:"generatedAt"`
	Quote           string            `json:"quote"`
	Criteria        Criteria          `json:"criteria"`
	Totals          int               `json:"totals"`
	Symbols         []string          `json:"symbols"`
	Candidates      []Candidate       `json:"candidates"`
	ExcludedCounts  map[string]int    `json:"excludedCounts"`
	NextRefreshSec  int               `json:"nextRefreshSec"`
}

const (
	reasonIncluded         = "included"
	reasonTopVolume        = "top_volume"
	reasonShortBaseSymbol  = "short_base_symbol"
	reasonMarketWarning    = "market_warning"
	reasonLow24hValue      = "low_24h_value"
	reasonNotSelected      = "not_selected"
)

// Curate applies Criteria to tickers and returns the selected universe.
//
// Force-included bases are always selected and bypass every filter. The
// remaining candidates are filtered (base length, market warning, minimum
// 24h traded value) and the survivors are ranked by 24h traded value,
// filling the remaining MaxSymbols slots.
func Curate(tickers []exchange.Ticker, criteria Criteria, now time.Time, nextRefreshSec int) Snapshot {
	included := make(map[string]bool, len(criteria.Include))
	for _, base := range criteria.Include {
		included[base] = true
	}

	var forced, rest []exchange.Ticker
	for _, tk := range tickers {
		if included[baseOf(tk.Symbol)] {
			forced = append(forced, tk)
		} else {
			rest = append(rest, tk)
		}
	}

	excluded := map[string]int{}
	var passing []exchange.Ticker
	for _, tk := range rest {
		switch {
		case len(baseOf(tk.Symbol)) < criteria.MinBaseLen:
			excluded[reasonShortBaseSymbol]++
		case tk.MarketWarning != "" && tk.MarketWarning != "NONE":
			excluded[reasonMarketWarning]++
		case tk.AccTradeValue24h < criteria.Min24hValueKrw:
			excluded[reasonLow24hValue]++
		default:
			passing = append(passing, tk)
		}
	}

	sort.SliceStable(passing, func(i, j int) bool {
		return passing[i].AccTradeValue24h > passing[j].AccTradeValue24h
	})

	remainingSlots := criteria.MaxSymbols - len(forced)
	if remainingSlots < 0 {
		remainingSlots = 0
	}
	selected := passing
	if remainingSlots < len(selected) {
		selected = passing[:remainingSlots]
	}

	symbols := make([]string, 0, len(forced)+len(selected))
	candidates := make([]Candidate, 0, len(forced)+len(selected))
	for _, tk := range forced {
		symbols = append(symbols, tk.Symbol)
		candidates = append(candidates, Candidate{
			Symbol: tk.Symbol, Market: tk.Symbol, LastPrice: tk.Price,
			ChangeRate: tk.ChangeRate, AccTradeValue24h: tk.AccTradeValue24h,
			SelectionReason: reasonIncluded,
		})
	}
	for _, tk := range selected {
		symbols = append(symbols, tk.Symbol)
		candidates = append(candidates, Candidate{
			Symbol: tk.Symbol, Market: tk.Symbol, LastPrice: tk.Price,
			ChangeRate: tk.ChangeRate, AccTradeValue24h: tk.AccTradeValue24h,
			SelectionReason: reasonTopVolume,
		})
	}

	return Snapshot{
		GeneratedAt:    now,
		Quote:          criteria.Quote,
		Criteria:       criteria,
		Totals:         len(tickers),
		Symbols:        symbols,
		Candidates:     candidates,
		ExcludedCounts: excluded,
		NextRefreshSec: nextRefreshSec,
	}
}

// baseOf returns the base-currency portion of a canonical BASE_QUOTE symbol.
func baseOf(sym string) string {
	base, _, found := strings.Cut(sym, "_")
	if !found {
		return sym
	}
	return base
}

// WriteSnapshot persists snap atomically (spec.md §5 "Market-universe
// snapshot file: single-writer, atomic .tmp->rename").
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a previously written snapshot, used as the fallback
// when a refresh fails (spec.md §4.1 "A universe refresh failure ... falls
// back to the cached snapshot").
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
