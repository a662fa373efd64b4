package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"trading-core/internal/aisettings"
	"trading-core/internal/domain"
	"trading-core/internal/overlay"
	"trading-core/internal/signal"
	"trading-core/internal/statestore"
)

func TestIntersectKeepsOrderFromFirstArgument(t *testing.T) {
	got := intersect([]string{"BTC_KRW", "ETH_KRW", "XRP_KRW"}, []string{"XRP_KRW", "BTC_KRW"})
	want := []string{"BTC_KRW", "XRP_KRW"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestIntersectEmptyUniverseYieldsNil(t *testing.T) {
	if got := intersect([]string{"BTC_KRW"}, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestClampBoundsBothSides(t *testing.T) {
	if v := clamp(100, 10, 50); v != 50 {
		t.Fatalf("expected clamp to upper bound 50, got %v", v)
	}
	if v := clamp(1, 10, 50); v != 10 {
		t.Fatalf("expected clamp to lower bound 10, got %v", v)
	}
	if v := clamp(25, 10, 50); v != 25 {
		t.Fatalf("expected unchanged value within bounds, got %v", v)
	}
}

func TestSideFromAction(t *testing.T) {
	if sideFromAction(signal.ActionSell) != domain.SideSell {
		t.Fatalf("expected sell side for ActionSell")
	}
	if sideFromAction(signal.ActionBuy) != domain.SideBuy {
		t.Fatalf("expected buy side for ActionBuy")
	}
	if sideFromAction(signal.ActionHold) != domain.SideBuy {
		t.Fatalf("expected buy side fallback for ActionHold")
	}
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	r := New(DefaultConfig(), store, nil, nil, aisettings.Config{
		Symbol: "BTC_KRW", Symbols: []string{"BTC_KRW"},
		OrderAmountKrw: 10000, RiskMinKrw: 5000, RiskMaxKrw: 50000,
		WindowSec: 60, CooldownSec: 30,
	})
	return r
}

func aiSnapshotWithMode(mode string) aisettings.Snapshot {
	snap := aisettings.DefaultSnapshot(aisettings.Config{
		Symbol: "BTC_KRW", Symbols: []string{"BTC_KRW"},
		OrderAmountKrw: 10000, RiskMinKrw: 5000, RiskMaxKrw: 50000,
		WindowSec: 60, CooldownSec: 30,
	}, "file", time.Now())
	snap.Decision.Mode = mode
	return snap
}

func overlaySnapshot() overlay.Snapshot {
	return overlay.Default("file", time.Now())
}

func TestWindowLimitReached(t *testing.T) {
	r := newTestRunner(t)
	if r.windowLimitReached(RunOptions{StopAfterWindows: 0}, 100) {
		t.Fatalf("expected unbounded run (0) to never reach limit")
	}
	if !r.windowLimitReached(RunOptions{StopAfterWindows: 3}, 3) {
		t.Fatalf("expected limit reached at windows==StopAfterWindows")
	}
	if r.windowLimitReached(RunOptions{StopAfterWindows: 3}, 2) {
		t.Fatalf("expected limit not reached below StopAfterWindows")
	}
}

func TestApplyChangedGroupsOnlyUpdatesHashOnSuccess(t *testing.T) {
	r := newTestRunner(t)
	hashes := map[string]string{}

	aiSnap := aiSnapshotWithMode("rule")
	r.applyChangedGroups(aiSnap, overlaySnapshot(), hashes, time.Now())
	if hashes["decision"] == "" {
		t.Fatalf("expected decision hash recorded after first apply")
	}
	before := hashes["decision"]

	r.applyChangedGroups(aiSnap, overlaySnapshot(), hashes, time.Now())
	if hashes["decision"] != before {
		t.Fatalf("expected unchanged group to keep the same hash")
	}
}

func TestRecordHealthAppendsToSystemHealth(t *testing.T) {
	r := newTestRunner(t)
	now := time.Now()

	r.recordHealth(now)

	st, err := r.Store.Read()
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(st.SystemHealth) != 1 {
		t.Fatalf("expected 1 persisted health record, got %d", len(st.SystemHealth))
	}
	if !st.SystemHealth[0].OK {
		t.Fatalf("expected OK health record for a fresh state, got %+v", st.SystemHealth[0])
	}

	r.recordHealth(now.Add(time.Minute))
	st, err = r.Store.Read()
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(st.SystemHealth) != 2 {
		t.Fatalf("expected 2 persisted health records after a second call, got %d", len(st.SystemHealth))
	}
}
