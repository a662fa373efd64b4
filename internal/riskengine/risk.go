// Package riskengine is the deterministic pre-trade gate: a pure function of
// an order input, an evaluation context and a state snapshot that returns
// every violated rule with no short-circuiting (spec.md §4.4).
//
// Grounded on the teacher's internal/risk.Manager -- generalized from a
// stateful, per-user manager with side-effecting UpdateMetrics into a pure
// Evaluate call, since the spec requires "same snapshot and input ⇒ same
// output" (spec.md §8) and a single shared state document rather than a
// manager instance per account.
package riskengine

import (
	"time"

	"trading-core/internal/domain"
)

// Rule names, returned verbatim in Decision.Reasons.
const (
	RuleMaxConcurrentOrders  = "MAX_CONCURRENT_ORDERS"
	RuleMinOrderNotionalKrw  = "MIN_ORDER_NOTIONAL_KRW"
	RuleMaxOrderNotionalKrw  = "MAX_ORDER_NOTIONAL_KRW"
	RuleDailyLossLimitKrw    = "DAILY_LOSS_LIMIT_KRW"
	RuleAIMaxOrderNotional   = "AI_MAX_ORDER_NOTIONAL_KRW"
	RuleAIMaxOrdersPerWindow = "AI_MAX_ORDERS_PER_WINDOW"
	RuleAIMaxTotalExposure   = "AI_MAX_TOTAL_EXPOSURE_KRW"
	RuleKillSwitchActive     = "KILL_SWITCH_ACTIVE"
)

// Config is the set of hard caps the gate enforces.
type Config struct {
	MaxConcurrentOrders   int
	MinOrderNotionalKrw   float64
	MaxOrderNotionalKrw   float64
	DailyLossLimitKrw     float64
	AIMaxOrderNotionalKrw float64
	AIMaxOrdersPerWindow  int
	AIOrderCountWindowSec int
	AIMaxTotalExposureKrw float64
}

// OrderInput is the order under evaluation.
type OrderInput struct {
	Symbol                    string
	Side                      domain.Side
	Type                      domain.OrderType
	Price                     float64
	Qty                       float64
	AmountKrw                 float64
	SymbolMinNotionalOverride *float64 // symbolOverride
	DynamicMinNotionalKrw     *float64 // dynamicMinFromContext
}

// Notional returns the quote-currency value of the order: price*qty for
// limit orders and market sells (qty is required for those), amountKrw for
// market buys.
func (in OrderInput) Notional() float64 {
	if in.Type == domain.OrderTypeMarket && in.Side == domain.SideBuy {
		return in.AmountKrw
	}
	return in.Price * in.Qty
}

// Context carries the evaluation-time facts the gate needs beyond the state
// snapshot: whether this order was selected by the AI-operator's decision
// policy, and the running daily realized PnL.
type Context struct {
	AISelected          bool
	DailyRealizedPnlKrw float64
	Now                 time.Time
}

// Decision is the gate's verdict. Metrics carries the computed values so an
// operator can see why a rule tripped without recomputing them.
type Decision struct {
	Allowed   bool
	Reasons   []string
	Metrics   map[string]any
	CheckedAt time.Time
}

// RiskEvent builds the audit record for a rejected decision. The engine
// itself never mutates state -- the caller persists this through
// store.Update (spec.md §4.4 "the engine appends a RiskEvent").
func (d Decision) RiskEvent(id string) *domain.RiskEvent {
	if d.Allowed {
		return nil
	}
	return &domain.RiskEvent{
		ID:        id,
		Severity:  domain.SeverityHigh,
		Rules:     joinReasons(d.Reasons),
		Detail:    d.Metrics,
		CreatedAt: d.CheckedAt,
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}

// Evaluate is the gate. It never short-circuits: every violated rule is
// reported so operators see the full reason vector (spec.md §4.4).
func Evaluate(input OrderInput, ctx Context, state domain.State, cfg Config) Decision {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	var reasons []string
	metrics := map[string]any{}

	openCount := 0
	for _, o := range state.Orders {
		if o.IsOpen() {
			openCount++
		}
	}
	metrics["openOrderCount"] = openCount
	if openCount >= cfg.MaxConcurrentOrders {
		reasons = append(reasons, RuleMaxConcurrentOrders)
	}

	notional := input.Notional()
	metrics["notional"] = notional

	appliedMin := cfg.MinOrderNotionalKrw
	if input.SymbolMinNotionalOverride != nil {
		appliedMin = *input.SymbolMinNotionalOverride
	}
	dynamicMin := 0.0
	if input.DynamicMinNotionalKrw != nil {
		dynamicMin = *input.DynamicMinNotionalKrw
	}
	if dynamicMin > appliedMin {
		appliedMin = dynamicMin
	}
	metrics["appliedMinNotional"] = appliedMin
	if notional < appliedMin {
		reasons = append(reasons, RuleMinOrderNotionalKrw)
	}

	if notional > cfg.MaxOrderNotionalKrw {
		reasons = append(reasons, RuleMaxOrderNotionalKrw)
	}

	metrics["dailyRealizedPnlKrw"] = ctx.DailyRealizedPnlKrw
	if ctx.DailyRealizedPnlKrw < 0 && ctx.DailyRealizedPnlKrw <= -cfg.DailyLossLimitKrw {
		reasons = append(reasons, RuleDailyLossLimitKrw)
	}

	if ctx.AISelected {
		if notional > cfg.AIMaxOrderNotionalKrw {
			reasons = append(reasons, RuleAIMaxOrderNotional)
		}

		windowStart := now.Add(-time.Duration(cfg.AIOrderCountWindowSec) * time.Second)
		recentCount := 0
		for _, o := range state.Orders {
			if o.CreatedAt.After(windowStart) {
				recentCount++
			}
		}
		metrics["aiRecentOrderCount"] = recentCount
		if recentCount+1 > cfg.AIMaxOrdersPerWindow {
			reasons = append(reasons, RuleAIMaxOrdersPerWindow)
		}

		holdingsExposure := latestExposure(state)
		openBuyNotional := openBuyRemainingNotional(state)
		thisOrderExposure := 0.0
		if input.Side == domain.SideBuy {
			thisOrderExposure = notional
		}
		totalExposure := holdingsExposure + openBuyNotional + thisOrderExposure
		metrics["totalExposureKrw"] = totalExposure
		if totalExposure > cfg.AIMaxTotalExposureKrw {
			reasons = append(reasons, RuleAIMaxTotalExposure)
		}
	}

	if state.Settings.KillSwitch {
		reasons = append(reasons, RuleKillSwitchActive)
	}

	return Decision{
		Allowed:   len(reasons) == 0,
		Reasons:   reasons,
		Metrics:   metrics,
		CheckedAt: now,
	}
}

// latestExposure returns HoldingsExposureKrw() of the most recently captured
// balances snapshot, or 0 if none exists yet.
func latestExposure(state domain.State) float64 {
	if len(state.BalancesSnapshot) == 0 {
		return 0
	}
	latest := state.BalancesSnapshot[0]
	for _, snap := range state.BalancesSnapshot[1:] {
		if snap.CapturedAt.After(latest.CapturedAt) {
			latest = snap
		}
	}
	return latest.HoldingsExposureKrw()
}

// openBuyRemainingNotional sums the quote-currency value still outstanding
// across every open buy order.
func openBuyRemainingNotional(state domain.State) float64 {
	var total float64
	for _, o := range state.Orders {
		if !o.IsOpen() || o.Side != domain.SideBuy {
			continue
		}
		if o.Price > 0 {
			total += o.RemainingQty * o.Price
		} else if o.Qty > 0 {
			total += o.AmountKrw * (o.RemainingQty / o.Qty)
		}
	}
	return total
}
