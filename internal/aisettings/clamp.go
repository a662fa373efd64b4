package aisettings

import (
	"log"
	"time"

	"trading-core/internal/candleinterval"
)

// clampFloat clamps v into [lo,hi], logging a warning naming field when it
// had to move the value (Open Question Decision #1: clamp-with-warning,
// never a hard rejection).
func clampFloat(field string, v, lo, hi float64) float64 {
	if v < lo {
		log.Printf("aisettings: %s=%v below minimum %v, clamped", field, v, lo)
		return lo
	}
	if v > hi {
		log.Printf("aisettings: %s=%v above maximum %v, clamped", field, v, hi)
		return hi
	}
	return v
}

func clampInt(field string, v, lo, hi int) int {
	if v < lo {
		log.Printf("aisettings: %s=%d below minimum %d, clamped", field, v, lo)
		return lo
	}
	if v > hi {
		log.Printf("aisettings: %s=%d above maximum %d, clamped", field, v, hi)
		return hi
	}
	return v
}

func oneOf(field, v string, allowed ...string) (string, bool) {
	for _, a := range allowed {
		if v == a {
			return v, true
		}
	}
	log.Printf("aisettings: %s=%q not one of %v, using default", field, v, allowed)
	return "", false
}

// validCandleInterval checks v against candleinterval's own closed set so
// this package and internal/exchange/internal/marketdata never disagree on
// which interval strings are legal (spec.md §6).
func validCandleInterval(field, v string) (string, bool) {
	if candleinterval.IsValid(v) {
		return v, true
	}
	log.Printf("aisettings: %s=%q not a supported candle interval, using default", field, v)
	return "", false
}

func asFloat(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func asInt(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func asString(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func asBool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func asStringSlice(m map[string]any, key string, def []string) []string {
	v, ok := m[key]
	if !ok {
		return def
	}
	raw, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func asFloatPtr(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// normalize walks the loosely-typed raw document and produces a fully
// clamped Snapshot, defaulting and clamping every key per spec.md §6's
// table. It never returns an error: unrecognized or out-of-range values are
// corrected and logged rather than rejected.
func (r *Reader) normalize(raw rawFile, now time.Time) Snapshot {
	def := DefaultSnapshot(r.cfg, "file", now)

	exec := def.Execution
	if raw.Execution != nil {
		exec.Enabled = asBool(raw.Execution, "enabled", exec.Enabled)
		exec.Symbol = asString(raw.Execution, "symbol", exec.Symbol)
		exec.Symbols = asStringSlice(raw.Execution, "symbols", exec.Symbols)
		exec.OrderAmountKrw = clampFloat("execution.orderAmountKrw",
			asFloat(raw.Execution, "orderAmountKrw", exec.OrderAmountKrw),
			r.cfg.RiskMinKrw, r.cfg.RiskMaxKrw)
		exec.WindowSec = clampInt("execution.windowSec",
			asInt(raw.Execution, "windowSec", exec.WindowSec), 5, 86400)
		exec.CooldownSec = clampInt("execution.cooldownSec",
			asInt(raw.Execution, "cooldownSec", exec.CooldownSec), 0, 600)
		exec.MaxSymbolsPerWindow = clampInt("execution.maxSymbolsPerWindow",
			asInt(raw.Execution, "maxSymbolsPerWindow", exec.MaxSymbolsPerWindow), 1, 20)
		exec.MaxOrderAttemptsPerWindow = clampInt("execution.maxOrderAttemptsPerWindow",
			asInt(raw.Execution, "maxOrderAttemptsPerWindow", exec.MaxOrderAttemptsPerWindow), 1, 20)
	}

	strat := def.Strategy
	if raw.Strategy != nil {
		if name, ok := oneOf("strategy.name", asString(raw.Strategy, "name", strat.Name),
			"risk_managed_momentum", "breakout"); ok {
			strat.Name = name
		}
		if interval, ok := validCandleInterval("strategy.candleInterval", asString(raw.Strategy, "candleInterval", strat.CandleInterval)); ok {
			strat.CandleInterval = interval
		}
		strat.MomentumLookback = clampInt("strategy.momentumLookback",
			asInt(raw.Strategy, "momentumLookback", strat.MomentumLookback), 12, 72)
		strat.VolatilityLookback = clampInt("strategy.volatilityLookback",
			asInt(raw.Strategy, "volatilityLookback", strat.VolatilityLookback), 48, 144)
		strat.MomentumEntryBps = clampFloat("strategy.momentumEntryBps",
			asFloat(raw.Strategy, "momentumEntryBps", strat.MomentumEntryBps), 6, 30)
		strat.MomentumExitBps = clampFloat("strategy.momentumExitBps",
			asFloat(raw.Strategy, "momentumExitBps", strat.MomentumExitBps), 4, 20)
		strat.TargetVolatilityPct = clampFloat("strategy.targetVolatilityPct",
			asFloat(raw.Strategy, "targetVolatilityPct", strat.TargetVolatilityPct), 0.30, 1.20)
		strat.RiskManagedMinMultiplier = clampFloat("strategy.riskManagedMinMultiplier",
			asFloat(raw.Strategy, "riskManagedMinMultiplier", strat.RiskManagedMinMultiplier), 0.40, 1.00)
		strat.RiskManagedMaxMultiplier = clampFloat("strategy.riskManagedMaxMultiplier",
			asFloat(raw.Strategy, "riskManagedMaxMultiplier", strat.RiskManagedMaxMultiplier), 1.20, 2.50)
		if strat.VolatilityLookback <= strat.MomentumLookback {
			log.Printf("aisettings: strategy.volatilityLookback (%d) must exceed momentumLookback (%d), using defaults",
				strat.VolatilityLookback, strat.MomentumLookback)
			strat.MomentumLookback = def.Strategy.MomentumLookback
			strat.VolatilityLookback = def.Strategy.VolatilityLookback
		}
	}

	dec := def.Decision
	if raw.Decision != nil {
		if mode, ok := oneOf("decision.mode", asString(raw.Decision, "mode", string(dec.Mode)),
			"rule", "filter", "override"); ok {
			dec.Mode = mode
		}
		forceAction := asString(raw.Decision, "forceAction", "")
		switch forceAction {
		case "", "BUY", "SELL":
			dec.ForceAction = forceAction
		default:
			log.Printf("aisettings: decision.forceAction=%q not one of [BUY SELL null], ignoring", forceAction)
			dec.ForceAction = ""
		}
		dec.ForceOnce = asBool(raw.Decision, "forceOnce", dec.ForceOnce)
		if p := asFloatPtr(raw.Decision, "forceAmountKrw"); p != nil {
			lo := r.cfg.RiskMinKrw
			if floor := r.cfg.OrderAmountKrw * 0.1; floor > lo {
				lo = floor
			}
			hi := r.cfg.OrderAmountKrw * 50
			clamped := clampFloat("decision.forceAmountKrw", *p, lo, hi)
			dec.ForceAmountKrw = &clamped
		}
	}

	var overlay *Overlay
	if raw.Overlay != nil {
		overlay = &Overlay{
			RiskMultiplier: clampFloat("overlay.riskMultiplier",
				asFloat(raw.Overlay, "riskMultiplier", 1.0), 0.1, 5.0),
			Regime: asString(raw.Overlay, "regime", "neutral"),
		}
	}

	controls := def.Controls
	if raw.Controls != nil {
		if v, ok := raw.Controls["killSwitch"]; ok && v != nil {
			if b, ok := v.(bool); ok {
				controls.KillSwitch = &b
			} else {
				log.Printf("aisettings: controls.killSwitch=%v is not a bool, ignoring", v)
			}
		}
	}

	return Snapshot{
		Source:    "file",
		LoadedAt:  now,
		Meta:      raw.Meta,
		Execution: exec,
		Strategy:  strat,
		Decision:  dec,
		Overlay:   overlay,
		Controls:  controls,
	}
}
