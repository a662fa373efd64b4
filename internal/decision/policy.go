// Package decision resolves the AI-operator's decision snapshot into a
// concrete per-symbol execution policy and interprets it against a signal
// inside one realtime run (spec.md §4.3).
package decision

import (
	"trading-core/internal/signal"
)

// Mode is the per-symbol execution mode.
type Mode string

const (
	ModeRule     Mode = "rule"
	ModeFilter   Mode = "filter"
	ModeOverride Mode = "override"
)

// ForceAction mirrors signal.Action but is distinct so a nil/unset force is
// representable without an extra bool.
type ForceAction string

const (
	ForceNone ForceAction = ""
	ForceBuy  ForceAction = "BUY"
	ForceSell ForceAction = "SELL"
)

// Snapshot is one shape used both at the top level and per-symbol; Resolve
// shallow-overrides the top with a per-symbol entry.
type Snapshot struct {
	Mode           Mode
	AllowBuy       bool
	AllowSell      bool
	ForceAction    ForceAction
	ForceAmountKrw *float64
	ForceOnce      bool
	Note           string
}

// Decision is the top-level decision snapshot plus any per-symbol overrides.
type Decision struct {
	Top     Snapshot
	Symbols map[string]Snapshot
}

// Resolve returns the effective snapshot for symbol: the top-level snapshot
// shallow-overridden by the per-symbol entry if one exists (spec.md §4.3).
func (d Decision) Resolve(symbol string) Snapshot {
	effective := d.Top
	override, ok := d.Symbols[symbol]
	if !ok {
		return effective
	}
	if override.Mode != "" {
		effective.Mode = override.Mode
	}
	effective.AllowBuy = override.AllowBuy
	effective.AllowSell = override.AllowSell
	if override.ForceAction != ForceNone {
		effective.ForceAction = override.ForceAction
	}
	if override.ForceAmountKrw != nil {
		effective.ForceAmountKrw = override.ForceAmountKrw
	}
	effective.ForceOnce = override.ForceOnce
	if override.Note != "" {
		effective.Note = override.Note
	}
	return effective
}

// Outcome is what a realtime run should do after interpreting a snapshot
// against a signal evaluation.
type Outcome struct {
	Act       bool
	Action    signal.Action
	AmountKrw float64 // 0 means "use the window's orderAmountKrw"
	Reason    string
}

// Runner tracks per-symbol force-once consumption across runs within a
// single process lifetime (spec.md §4.3: "need not survive restart").
type Runner struct {
	consumed map[string]bool
}

// NewRunner builds an empty force-tracking runner.
func NewRunner() *Runner {
	return &Runner{consumed: make(map[string]bool)}
}

// Interpret applies the mode semantics for one realtime run of symbol given
// the resolved snapshot and the signal engine's evaluation, and records
// force-once consumption.
func (r *Runner) Interpret(symbol string, snap Snapshot, eval signal.Evaluation, defaultAmountKrw float64) Outcome {
	switch snap.Mode {
	case ModeRule:
		return r.interpretRule(symbol, snap)
	case ModeOverride:
		if out, handled := r.interpretOverride(symbol, snap, defaultAmountKrw); handled {
			return out
		}
		fallthrough
	case ModeFilter:
		fallthrough
	default:
		return interpretFilter(snap, eval)
	}
}

func (r *Runner) interpretRule(symbol string, snap Snapshot) Outcome {
	if snap.ForceAction == ForceNone || r.consumed[symbol] {
		return Outcome{Act: false, Reason: "rule_mode_no_force"}
	}
	return r.forcedOutcome(symbol, snap)
}

func (r *Runner) interpretOverride(symbol string, snap Snapshot, defaultAmountKrw float64) (Outcome, bool) {
	if snap.ForceAction == ForceNone {
		return Outcome{}, false
	}
	if snap.ForceOnce && r.consumed[symbol] {
		return Outcome{Act: false, Reason: "force_already_consumed"}, true
	}
	out := r.forcedOutcome(symbol, snap)
	if out.AmountKrw == 0 {
		out.AmountKrw = defaultAmountKrw
	}
	return out, true
}

func (r *Runner) forcedOutcome(symbol string, snap Snapshot) Outcome {
	if snap.ForceOnce {
		r.consumed[symbol] = true
	}
	amount := 0.0
	if snap.ForceAmountKrw != nil {
		amount = *snap.ForceAmountKrw
	}
	action := signal.ActionHold
	switch snap.ForceAction {
	case ForceBuy:
		action = signal.ActionBuy
	case ForceSell:
		action = signal.ActionSell
	}
	return Outcome{Act: true, Action: action, AmountKrw: amount, Reason: "forced"}
}

func interpretFilter(snap Snapshot, eval signal.Evaluation) Outcome {
	switch eval.Action {
	case signal.ActionBuy:
		if !snap.AllowBuy {
			return Outcome{Act: false, Reason: "buy_not_allowed"}
		}
		return Outcome{Act: true, Action: signal.ActionBuy, Reason: eval.Reason}
	case signal.ActionSell:
		if !snap.AllowSell {
			return Outcome{Act: false, Reason: "sell_not_allowed"}
		}
		return Outcome{Act: true, Action: signal.ActionSell, Reason: eval.Reason}
	default:
		return Outcome{Act: false, Reason: "hold"}
	}
}
