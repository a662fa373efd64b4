// Package health aggregates operator-visible system health from the state
// store (spec.md §7 "Health"), grounded on the teacher's internal/monitor
// rule-based alert aggregation (AlertSink, RuleEvaluator).
package health

import (
	"fmt"
	"time"

	"trading-core/internal/domain"
)

// AlertSink delivers a formatted health warning/failure line to an external
// channel. Adapted from the teacher's monitor.AlertSink.
type AlertSink interface {
	Send(message string) error
}

// Config carries the thresholds the aggregator checks against.
type Config struct {
	UnknownSubmitWarnAfter time.Duration // recent: WARN
	UnknownSubmitFailAfter time.Duration // aged: FAIL
	StrictMode             bool          // kill-switch is FAIL rather than WARN
}

// DefaultConfig mirrors the spec's defaults.
func DefaultConfig() Config {
	return Config{
		UnknownSubmitWarnAfter: 1 * time.Minute,
		UnknownSubmitFailAfter: 10 * time.Minute,
		StrictMode:             true,
	}
}

// Check aggregates the current health of state against cfg, at the given
// wall-clock now.
func Check(state domain.State, cfg Config, now time.Time) domain.HealthRecord {
	var warnings, failures []string

	for _, o := range state.Orders {
		if o.State != domain.StateUnknownSubmit {
			continue
		}
		age := now.Sub(o.UpdatedAt)
		switch {
		case age >= cfg.UnknownSubmitFailAfter:
			failures = append(failures, fmt.Sprintf("UNKNOWN_SUBMIT order %s aged %s", o.ID, age.Round(time.Second)))
		case age >= cfg.UnknownSubmitWarnAfter:
			warnings = append(warnings, fmt.Sprintf("UNKNOWN_SUBMIT order %s aged %s", o.ID, age.Round(time.Second)))
		}
	}

	for _, o := range state.Orders {
		if o.State == domain.StateUnknownSubmit {
			continue
		}
		if !o.Paper && o.IsOpen() && o.ExchangeOrderID == "" {
			warnings = append(warnings, fmt.Sprintf("open live order %s missing exchangeOrderId", o.ID))
		}
	}

	if state.Settings.KillSwitch {
		msg := "kill switch active"
		if state.Settings.KillSwitchReason != "" {
			msg += ": " + state.Settings.KillSwitchReason
		}
		if cfg.StrictMode {
			failures = append(failures, msg)
		} else {
			warnings = append(warnings, msg)
		}
	}

	return domain.HealthRecord{
		CapturedAtMs: now.UnixMilli(),
		OK:           len(failures) == 0,
		Warnings:     warnings,
		Failures:     failures,
	}
}

// Publish runs Check and, if not OK or there are warnings, sends one
// formatted line per sink per issue.
func Publish(state domain.State, cfg Config, now time.Time, sink AlertSink) domain.HealthRecord {
	rec := Check(state, cfg, now)
	if sink == nil {
		return rec
	}
	for _, w := range rec.Warnings {
		_ = sink.Send("[WARN] " + w)
	}
	for _, f := range rec.Failures {
		_ = sink.Send("[FAIL] " + f)
	}
	return rec
}
