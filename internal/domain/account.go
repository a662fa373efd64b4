package domain

import "time"

// BalanceItem is one currency line within a BalancesSnapshot.
type BalanceItem struct {
	Currency     string  `json:"currency"`
	UnitCurrency string  `json:"unitCurrency"`
	Balance      float64 `json:"balance"`
	Locked       float64 `json:"locked"`
	AvgBuyPrice  float64 `json:"avgBuyPrice"`
}

// BalancesSnapshot captures the account's holdings at a point in time. Only
// the latest snapshot is authoritative for exposure calculations.
type BalancesSnapshot struct {
	CapturedAt time.Time     `json:"capturedAt"`
	Source     string        `json:"source"`
	Items      []BalanceItem `json:"items"`
}

// HoldingsExposureKrw sums max(0, balance+locked) * avgBuyPrice over every
// KRW-denominated non-KRW currency with a positive avgBuyPrice (spec.md §4.4,
// AI_MAX_TOTAL_EXPOSURE_KRW).
func (b BalancesSnapshot) HoldingsExposureKrw() float64 {
	var total float64
	for _, it := range b.Items {
		if it.Currency == "KRW" || it.UnitCurrency != "KRW" || it.AvgBuyPrice <= 0 {
			continue
		}
		qty := it.Balance + it.Locked
		if qty <= 0 {
			continue
		}
		total += qty * it.AvgBuyPrice
	}
	return total
}

// RiskEventSeverity classifies a risk rejection.
type RiskEventSeverity string

const (
	SeverityLow    RiskEventSeverity = "LOW"
	SeverityMedium RiskEventSeverity = "MEDIUM"
	SeverityHigh   RiskEventSeverity = "HIGH"
)

// RiskEvent records a risk-gate rejection for audit purposes.
type RiskEvent struct {
	ID        string            `json:"id"`
	Severity  RiskEventSeverity `json:"severity"`
	Rules     string            `json:"rules"` // concatenated rule names
	Detail    any               `json:"detail"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DailyPnlBaseline anchors the daily-loss-limit rule to a wall-clock date.
type DailyPnlBaseline struct {
	Date       string  `json:"date"` // YYYY-MM-DD in the configured timezone
	EquityKrw  float64 `json:"equityKrw"`
}

// Settings is the small set of durable, store-owned operational flags. It is
// distinct from the externally-authored AiSettingsSnapshot: Settings lives
// inside the state document and is mutated by the system itself (e.g. the
// kill-switch flag, which the scheduler copies in from the AI-settings
// controls group), whereas AiSettingsSnapshot is read-only input
// from the AI-operator's settings file.
type Settings struct {
	PaperMode         bool             `json:"paperMode"`
	KillSwitch        bool             `json:"killSwitch"`
	KillSwitchReason  string           `json:"killSwitchReason,omitempty"`
	DailyPnlBaseline  DailyPnlBaseline `json:"dailyPnlBaseline"`
}
