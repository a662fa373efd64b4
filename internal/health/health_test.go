package health

import (
	"testing"
	"time"

	"trading-core/internal/domain"
)

func TestCheckFailsOnAgedUnknownSubmit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	state := domain.State{Orders: []domain.Order{
		{ID: "o1", State: domain.StateUnknownSubmit, UpdatedAt: now.Add(-15 * time.Minute)},
	}}
	rec := Check(state, DefaultConfig(), now)
	if rec.OK {
		t.Fatalf("expected not OK with aged UNKNOWN_SUBMIT order")
	}
	if len(rec.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", rec.Failures)
	}
}

func TestCheckWarnsOnRecentUnknownSubmit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	state := domain.State{Orders: []domain.Order{
		{ID: "o1", State: domain.StateUnknownSubmit, UpdatedAt: now.Add(-2 * time.Minute)},
	}}
	rec := Check(state, DefaultConfig(), now)
	if !rec.OK {
		t.Fatalf("expected OK with only a warning, got %+v", rec)
	}
	if len(rec.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", rec.Warnings)
	}
}

func TestCheckWarnsOnOpenLiveOrderMissingExchangeID(t *testing.T) {
	now := time.Now()
	state := domain.State{Orders: []domain.Order{
		{ID: "o1", State: domain.StateAccepted, Paper: false, ExchangeOrderID: ""},
	}}
	rec := Check(state, DefaultConfig(), now)
	if len(rec.Warnings) != 1 {
		t.Fatalf("expected one warning for missing exchangeOrderId, got %+v", rec.Warnings)
	}
}

func TestCheckFailsOnKillSwitchInStrictMode(t *testing.T) {
	now := time.Now()
	state := domain.State{Settings: domain.Settings{KillSwitch: true, KillSwitchReason: "manual"}}
	rec := Check(state, DefaultConfig(), now)
	if rec.OK {
		t.Fatalf("expected not OK with kill switch active in strict mode")
	}
}

func TestCheckWarnsOnKillSwitchOutsideStrictMode(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.StrictMode = false
	state := domain.State{Settings: domain.Settings{KillSwitch: true}}
	rec := Check(state, cfg, now)
	if !rec.OK {
		t.Fatalf("expected OK (warning only) outside strict mode, got %+v", rec)
	}
	if len(rec.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", rec.Warnings)
	}
}

type fakeSink struct{ messages []string }

func (f *fakeSink) Send(msg string) error {
	f.messages = append(f.messages, msg)
	return nil
}

func TestPublishSendsOneLinePerIssue(t *testing.T) {
	now := time.Now()
	state := domain.State{Settings: domain.Settings{KillSwitch: true, KillSwitchReason: "manual"}}
	sink := &fakeSink{}
	Publish(state, DefaultConfig(), now, sink)
	if len(sink.messages) != 1 {
		t.Fatalf("expected one sink message, got %v", sink.messages)
	}
}
