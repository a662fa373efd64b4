// Package aisettings reads, normalizes and clamps the AI-operator's settings
// file (spec.md §6 "AI-settings file"). The system is the single reader;
// the AI operator is a possibly-concurrent writer, so reads tolerate
// malformed or partial writes by falling back to a defaults snapshot tagged
// read_error_fallback (spec.md §5 "AI-settings file").
package aisettings

import "time"

// Execution mirrors the execution group of the AI-settings file.
type Execution struct {
	Enabled                   bool
	Symbol                    string
	Symbols                   []string
	OrderAmountKrw            float64
	WindowSec                 int
	CooldownSec               int
	MaxSymbolsPerWindow       int
	MaxOrderAttemptsPerWindow int
}

// Strategy mirrors the strategy group.
type Strategy struct {
	Name                     string
	CandleInterval           string
	MomentumLookback         int
	VolatilityLookback       int
	MomentumEntryBps         float64
	MomentumExitBps          float64
	TargetVolatilityPct      float64
	RiskManagedMinMultiplier float64
	RiskManagedMaxMultiplier float64
}

// Decision mirrors the top-level decision group. Per-symbol decision
// overrides are not read from the settings file, and the scheduler builds
// internal/decision.Decision from this group alone, so its Symbols map stays
// empty.
type Decision struct {
	Mode           string
	ForceAction    string // "BUY" | "SELL" | ""
	ForceAmountKrw *float64
	ForceOnce      bool
}

// Overlay mirrors the optional overlay group: a risk multiplier and regime
// label set externally to scale order sizes (glossary "Overlay").
type Overlay struct {
	RiskMultiplier float64
	Regime         string
}

// Controls mirrors the controls group.
type Controls struct {
	KillSwitch *bool
}

// Snapshot is the normalized, clamped view of the settings file
// (domain.AiSettingsSnapshot in spec.md §3).
type Snapshot struct {
	Source    string // "file" | "default" | "read_error_fallback"
	LoadedAt  time.Time
	Meta      map[string]any
	Execution Execution
	Strategy  Strategy
	Decision  Decision
	Overlay   *Overlay
	Controls  Controls
}

// Config supplies the trading-config-derived defaults and ranges the table
// in spec.md §6 references (riskMin/riskMax, the configured default symbol,
// default order amount, etc).
type Config struct {
	Symbol         string
	Symbols        []string
	OrderAmountKrw float64
	RiskMinKrw     float64
	RiskMaxKrw     float64
	WindowSec      int
	CooldownSec    int
}

// DefaultSnapshot builds the all-defaults snapshot spec.md §6's table
// describes, tagged source.
func DefaultSnapshot(cfg Config, source string, now time.Time) Snapshot {
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{cfg.Symbol}
	}
	return Snapshot{
		Source:   source,
		LoadedAt: now,
		Execution: Execution{
			Enabled:                   true,
			Symbol:                    cfg.Symbol,
			Symbols:                   symbols,
			OrderAmountKrw:            cfg.OrderAmountKrw,
			WindowSec:                 cfg.WindowSec,
			CooldownSec:               cfg.CooldownSec,
			MaxSymbolsPerWindow:       3,
			MaxOrderAttemptsPerWindow: 1,
		},
		Strategy: Strategy{
			Name:                     "risk_managed_momentum",
			CandleInterval:           "15m",
			MomentumLookback:         24,
			VolatilityLookback:       72,
			MomentumEntryBps:         12,
			MomentumExitBps:          8,
			TargetVolatilityPct:      0.6,
			RiskManagedMinMultiplier: 0.6,
			RiskManagedMaxMultiplier: 2.2,
		},
		Decision: Decision{
			Mode:      "filter",
			ForceOnce: true,
		},
	}
}
