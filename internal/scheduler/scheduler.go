// Package scheduler is the Execution Scheduler: the orchestrator that owns
// the window clock, reads the AI-settings snapshot, consults the
// market-universe curator, dispatches one realtime strategy run per symbol
// concurrently per window, aggregates results and logs (spec.md §4.1, §5).
//
// Grounded on the teacher's main.go run-loop plus its signal.Notify/SIGTERM
// shutdown pattern, generalized from a single gin-served process into a
// headless window loop with an explicit stop-requested flag instead of a
// blocking receive on the main goroutine.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"trading-core/internal/aisettings"
	"trading-core/internal/decision"
	"trading-core/internal/domain"
	"trading-core/internal/health"
	"trading-core/internal/marketdata"
	"trading-core/internal/ordermanager"
	"trading-core/internal/overlay"
	"trading-core/internal/riskengine"
	"trading-core/internal/signal"
	"trading-core/internal/statestore"
	"trading-core/internal/universe"
)

// Config is the set of knobs the runtime config supplies to one Runner.
type Config struct {
	AISettingsPath        string
	OverlayPath           string
	UniverseSnapshotPath  string
	UniverseCriteria      universe.Criteria
	RiskConfig            riskengine.Config
	RestartDelay          time.Duration
	UniverseRefreshPeriod time.Duration
	AIRefreshMinSec       int // default 1800
	AIRefreshMaxSec       int // default 3600
	HeartbeatWindows      int // default 12
	CandleCount           int // candles to fetch per evaluation, default 200
	HealthConfig          health.Config
}

// DefaultConfig fills in the spec's literal defaults.
func DefaultConfig() Config {
	return Config{
		RestartDelay:          30 * time.Second,
		UniverseRefreshPeriod: 10 * time.Minute,
		AIRefreshMinSec:       1800,
		AIRefreshMaxSec:       3600,
		HeartbeatWindows:      12,
		CandleCount:           200,
		HealthConfig:          health.DefaultConfig(),
	}
}

// Runner wires every core component into one closed-loop execution service.
type Runner struct {
	Store      *statestore.Store
	Market     *marketdata.Facade
	Orders     *ordermanager.Manager
	AISettings *aisettings.Reader
	Overlay    *overlay.Reader

	Clock func() time.Time
	Sleep func(time.Duration)
	Rand  func(lo, hi int) int

	cfg          Config
	decisionRun  *decision.Runner
	strategyRunCounter atomic.Uint64
}

// New builds a Runner. Clock/Sleep/Rand default to the real wall clock,
// time.Sleep and a seeded math/rand range pick.
func New(cfg Config, store *statestore.Store, market *marketdata.Facade, orders *ordermanager.Manager, aiCfg aisettings.Config) *Runner {
	r := &Runner{
		Store:       store,
		Market:      market,
		Orders:      orders,
		AISettings:  aisettings.NewReader(aiCfg),
		Overlay:     overlay.NewReader(),
		cfg:         cfg,
		decisionRun: decision.NewRunner(),
	}
	r.Clock = time.Now
	r.Sleep = time.Sleep
	r.Rand = func(lo, hi int) int {
		if hi <= lo {
			return lo
		}
		return lo + rand.Intn(hi-lo+1)
	}
	return r
}

// RunOptions bounds one invocation of the window loop.
type RunOptions struct {
	StopAfterWindows int // 0 = unbounded
}

// RunResult is the scheduler's result-data payload.
type RunResult struct {
	Windows   int
	StoppedBy string // "disabled" | "window_limit" | "requested"
}

type symbolOutcome struct {
	Symbol    string
	Ticked    bool
	Signal    signal.Action
	Attempted bool
	OK        bool
	Code      domain.ExitCode
}

// Run drives the window loop until stopped (spec.md §4.1 "runExecutionService").
func (r *Runner) Run(ctx context.Context, opts RunOptions) domain.Result[RunResult] {
	var stopRequested atomic.Bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	sigDone := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			stopRequested.Store(true)
		case <-sigDone:
		}
	}()
	defer close(sigDone)

	hashes := map[string]string{}
	var aiSnap aisettings.Snapshot
	var overlaySnap overlay.Snapshot
	var universeSnap universe.Snapshot
	nextAIRefresh := time.Time{}
	nextUniverseRefresh := time.Time{}

	windows := 0
	for {
		if stopRequested.Load() {
			return domain.Ok(RunResult{Windows: windows, StoppedBy: "requested"})
		}

		now := r.Clock()

		if !now.Before(nextAIRefresh) {
			aiSnap = r.AISettings.Read(r.cfg.AISettingsPath)
			overlaySnap = r.Overlay.Read(r.cfg.OverlayPath)
			jitter := r.Rand(r.refreshMin(), r.refreshMax())
			nextAIRefresh = now.Add(time.Duration(jitter) * time.Second)
			log.Printf("scheduler: ai-settings refreshed (source=%s), next refresh in %ds", aiSnap.Source, jitter)
		}

		if !now.Before(nextUniverseRefresh) {
			if snap, err := r.refreshUniverse(ctx, aiSnap); err != nil {
				log.Printf("scheduler: universe refresh failed, reusing cached snapshot: %v", err)
			} else {
				universeSnap = snap
			}
			nextUniverseRefresh = now.Add(r.universeRefreshPeriod())
		}

		r.applyChangedGroups(aiSnap, overlaySnap, hashes, now)

		if !aiSnap.Execution.Enabled {
			windows++
			if r.windowLimitReached(opts, windows) {
				return domain.Ok(RunResult{Windows: windows, StoppedBy: "window_limit"})
			}
			r.sleepInterruptible(&stopRequested)
			continue
		}

		symbols := intersect(aiSnap.Execution.Symbols, universeSnap.Symbols)
		if len(symbols) == 0 {
			windows++
			if r.windowLimitReached(opts, windows) {
				return domain.Ok(RunResult{Windows: windows, StoppedBy: "window_limit"})
			}
			r.sleepInterruptible(&stopRequested)
			continue
		}

		if report, err := r.Orders.Reconcile(ctx); err != nil {
			log.Printf("scheduler: reconcile error: %v", err)
		} else if len(report.Resolved) > 0 {
			log.Printf("scheduler: reconcile resolved %d UNKNOWN_SUBMIT orders", len(report.Resolved))
		}

		r.captureBalances(ctx)

		outcomes := r.runWindow(ctx, symbols, aiSnap, overlaySnap)
		r.logWindow(windows, outcomes)

		r.recordHealth(now)

		windows++
		if r.windowLimitReached(opts, windows) {
			return domain.Ok(RunResult{Windows: windows, StoppedBy: "window_limit"})
		}
		r.sleepInterruptible(&stopRequested)
	}
}

func (r *Runner) windowLimitReached(opts RunOptions, windows int) bool {
	return opts.StopAfterWindows > 0 && windows >= opts.StopAfterWindows
}

func (r *Runner) sleepInterruptible(stopRequested *atomic.Bool) {
	if stopRequested.Load() {
		return
	}
	r.Sleep(r.cfg.RestartDelay)
}

func (r *Runner) refreshMin() int {
	if r.cfg.AIRefreshMinSec > 0 {
		return r.cfg.AIRefreshMinSec
	}
	return 1800
}

func (r *Runner) refreshMax() int {
	if r.cfg.AIRefreshMaxSec > 0 {
		return r.cfg.AIRefreshMaxSec
	}
	return 3600
}

func (r *Runner) universeRefreshPeriod() time.Duration {
	if r.cfg.UniverseRefreshPeriod > 0 {
		return r.cfg.UniverseRefreshPeriod
	}
	return 10 * time.Minute
}

func (r *Runner) refreshUniverse(ctx context.Context, aiSnap aisettings.Snapshot) (universe.Snapshot, error) {
	symbols := aiSnap.Execution.Symbols
	if len(symbols) == 0 {
		symbols = r.cfg.UniverseCriteria.Include
	}
	tickers, err := r.Market.Tickers(ctx, symbols)
	if err != nil {
		if cached, rerr := universe.ReadSnapshot(r.cfg.UniverseSnapshotPath); rerr == nil {
			return cached, nil
		}
		return universe.Snapshot{}, err
	}
	snap := universe.Curate(tickers, r.cfg.UniverseCriteria, r.Clock(), int(r.universeRefreshPeriod().Seconds()))
	if werr := universe.WriteSnapshot(r.cfg.UniverseSnapshotPath, snap); werr != nil {
		log.Printf("scheduler: failed to persist universe snapshot: %v", werr)
	}
	return snap, nil
}

// applyChangedGroups diffs the new snapshots against cached hashes for
// strategy, overlay, decision and kill-switch, applying and logging only the
// groups that changed (spec.md §4.1 step 3).
func (r *Runner) applyChangedGroups(aiSnap aisettings.Snapshot, overlaySnap overlay.Snapshot, hashes map[string]string, now time.Time) {
	groups := map[string]any{
		"strategy":   aiSnap.Strategy,
		"overlay":    overlaySnap,
		"decision":   aiSnap.Decision,
		"killSwitch": aiSnap.Controls.KillSwitch,
	}
	for name, val := range groups {
		h := fmt.Sprintf("%+v", val)
		if hashes[name] == h {
			continue
		}
		err := r.Store.Update(func(s *domain.State) error {
			if name == "killSwitch" {
				if b, ok := val.(*bool); ok && b != nil {
					s.Settings.KillSwitch = *b
					if *b {
						s.Settings.KillSwitchReason = "ai_settings"
					} else {
						s.Settings.KillSwitchReason = ""
					}
				}
			}
			s.AgentAudit = append(s.AgentAudit, domain.AgentAuditRecord{
				AtMs: now.UnixMilli(), Group: name, OK: true,
			})
			return nil
		})
		if err != nil {
			log.Printf("scheduler: applying changed group %q failed, keeping previous hash: %v", name, err)
			continue
		}
		hashes[name] = h
		log.Printf("scheduler: applied changed group %q", name)
	}
}

func (r *Runner) snapshotState() domain.State {
	st, err := r.Store.Read()
	if err != nil {
		return domain.State{}
	}
	return st
}

// runWindow launches one realtime strategy run per symbol concurrently and
// awaits all (spec.md §4.1 step 7).
func (r *Runner) runWindow(ctx context.Context, symbols []string, aiSnap aisettings.Snapshot, overlaySnap overlay.Snapshot) []symbolOutcome {
	decisionDoc := decision.Decision{
		Top: decision.Snapshot{
			Mode:           decision.Mode(aiSnap.Decision.Mode),
			AllowBuy:       true,
			AllowSell:      true,
			ForceAction:    decision.ForceAction(aiSnap.Decision.ForceAction),
			ForceAmountKrw: aiSnap.Decision.ForceAmountKrw,
			ForceOnce:      aiSnap.Decision.ForceOnce,
		},
	}

	var wg sync.WaitGroup
	outcomes := make([]symbolOutcome, len(symbols))
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			outcomes[i] = r.runSymbol(ctx, sym, aiSnap, overlaySnap, decisionDoc)
		}(i, sym)
	}
	wg.Wait()
	return outcomes
}

func (r *Runner) runSymbol(ctx context.Context, sym string, aiSnap aisettings.Snapshot, overlaySnap overlay.Snapshot, decisionDoc decision.Decision) symbolOutcome {
	out := symbolOutcome{Symbol: sym}
	strategyRunID := fmt.Sprintf("run_%d", r.strategyRunCounter.Add(1))
	startedAt := r.Clock()

	candles, err := r.Market.Candles(ctx, sym, aiSnap.Strategy.CandleInterval, r.candleCount())
	if err != nil {
		r.recordStrategyRun(strategyRunID, sym, "HOLD", "market_data_error", false, "EXCHANGE_RETRYABLE", startedAt)
		out.OK = false
		out.Code = domain.ExchangeRetryable
		return out
	}

	strat, err := r.buildStrategy(aiSnap.Strategy)
	if err != nil {
		r.recordStrategyRun(strategyRunID, sym, "HOLD", "invalid_strategy_config", false, "INVALID_ARGS", startedAt)
		out.OK = false
		out.Code = domain.InvalidArgs
		return out
	}

	eval := strat.Evaluate(candles)
	out.Ticked = true
	out.Signal = eval.Action

	amountKrw := aiSnap.Execution.OrderAmountKrw * overlaySnap.RiskMultiplier
	if mult, ok := eval.Metrics["riskMultiplier"].(float64); ok {
		scaled := amountKrw * mult
		amountKrw = clamp(scaled, amountKrw*0.2, amountKrw*3)
	}

	snap := decisionDoc.Resolve(sym)
	outcome := r.decisionRun.Interpret(sym, snap, eval, amountKrw)
	if !outcome.Act {
		r.recordStrategyRun(strategyRunID, sym, string(eval.Action), outcome.Reason, true, "", startedAt)
		out.OK = true
		return out
	}
	out.Attempted = true

	if len(candles) == 0 {
		r.recordStrategyRun(strategyRunID, sym, string(outcome.Action), "no_market_data", false, "INVALID_ARGS", startedAt)
		out.OK = false
		out.Code = domain.InvalidArgs
		return out
	}
	lastClose := candles[len(candles)-1].Close

	orderInput := riskengine.OrderInput{
		Symbol:    sym,
		Side:      sideFromAction(outcome.Action),
		Type:      domain.OrderTypeMarket,
		AmountKrw: outcome.AmountKrw,
	}
	if outcome.Action == signal.ActionSell {
		orderInput.Price = lastClose
		orderInput.Qty = outcome.AmountKrw / lastClose
	}

	state := r.snapshotState()
	riskCtx := riskengine.Context{AISelected: aiSnap.Source == "file", DailyRealizedPnlKrw: dailyPnl(state), Now: r.Clock()}
	riskDecision := riskengine.Evaluate(orderInput, riskCtx, state, r.cfg.RiskConfig)
	if !riskDecision.Allowed {
		r.persistRiskEvent(riskDecision)
		r.recordStrategyRun(strategyRunID, sym, string(outcome.Action), "risk_rejected", false, "RISK_REJECTED", startedAt)
		out.OK = false
		out.Code = domain.RiskRejected
		return out
	}

	placeResult := r.Orders.PlaceOrder(ctx, ordermanager.PlaceInput{
		Symbol:        sym,
		Side:          orderInput.Side,
		Type:          domain.OrderTypeMarket,
		Price:         orderInput.Price,
		Qty:           orderInput.Qty,
		AmountKrw:     orderInput.AmountKrw,
		StrategyRunID: strategyRunID,
		CorrelationID: strategyRunID,
		Paper:         state.Settings.PaperMode,
	})
	r.recordStrategyRun(strategyRunID, sym, string(outcome.Action), outcome.Reason, placeResult.OK, fmt.Sprintf("%d", placeResult.Code), startedAt)
	out.OK = placeResult.OK
	out.Code = placeResult.Code
	return out
}

func (r *Runner) candleCount() int {
	if r.cfg.CandleCount > 0 {
		return r.cfg.CandleCount
	}
	return 200
}

func (r *Runner) buildStrategy(s aisettings.Strategy) (signal.Strategy, error) {
	switch s.Name {
	case "breakout":
		return signal.Breakout{Lookback: s.MomentumLookback, BufferBps: s.MomentumEntryBps}, nil
	default:
		return signal.New(signal.RiskManagedMomentum{
			MomentumLookback:    s.MomentumLookback,
			VolatilityLookback:  s.VolatilityLookback,
			EntryBps:            s.MomentumEntryBps,
			ExitBps:             s.MomentumExitBps,
			TargetVolatilityPct: s.TargetVolatilityPct,
			MinMultiplier:       s.RiskManagedMinMultiplier,
			MaxMultiplier:       s.RiskManagedMaxMultiplier,
		})
	}
}

func (r *Runner) recordStrategyRun(id, symbol, action, reason string, ok bool, code string, startedAt time.Time) {
	finished := r.Clock()
	_ = r.Store.Update(func(s *domain.State) error {
		s.StrategyRuns = append(s.StrategyRuns, domain.StrategyRun{
			ID: id, Symbol: symbol, Action: action, Reason: reason,
			StartedAt: startedAt.UnixMilli(), FinishedAt: finished.UnixMilli(),
			OK: ok, Code: code,
		})
		return nil
	})
}

// captureBalances fetches one account-balances snapshot per window and
// persists it so riskengine's latestExposure() has real holdings data to
// check AI_MAX_TOTAL_EXPOSURE_KRW against, instead of always seeing an empty
// snapshot (spec.md §4.1 step 6, §6 "balancesSnapshot").
func (r *Runner) captureBalances(ctx context.Context) {
	snap, err := r.Market.Balances(ctx)
	if err != nil {
		log.Printf("scheduler: balances fetch failed, reusing last snapshot: %v", err)
		return
	}
	_ = r.Store.Update(func(s *domain.State) error {
		s.BalancesSnapshot = append(s.BalancesSnapshot, snap)
		return nil
	})
}

// recordHealth runs the health aggregator and appends its record to
// state.SystemHealth (spec.md §6 "systemHealth"), mirroring how
// persistRiskEvent/recordStrategyRun append their own records.
func (r *Runner) recordHealth(now time.Time) {
	rec := health.Publish(r.snapshotState(), r.cfg.HealthConfig, now, nil)
	_ = r.Store.Update(func(s *domain.State) error {
		s.SystemHealth = append(s.SystemHealth, rec)
		return nil
	})
}

func (r *Runner) persistRiskEvent(d riskengine.Decision) {
	ev := d.RiskEvent(fmt.Sprintf("risk_%d", r.Clock().UnixNano()))
	if ev == nil {
		return
	}
	_ = r.Store.Update(func(s *domain.State) error {
		s.RiskEvents = append(s.RiskEvents, *ev)
		return nil
	})
}

func (r *Runner) logWindow(windowIdx int, outcomes []symbolOutcome) {
	anyActivity := false
	allOK := true
	var failed []string
	for _, o := range outcomes {
		if o.Ticked || o.Attempted {
			anyActivity = true
		}
		if !o.OK {
			allOK = false
			failed = append(failed, fmt.Sprintf("%s=%d", o.Symbol, o.Code))
		}
	}
	if allOK {
		if anyActivity || (r.cfg.HeartbeatWindows > 0 && windowIdx%r.cfg.HeartbeatWindows == 0) {
			log.Printf("scheduler: window %d completed, symbols=%d", windowIdx, len(outcomes))
		}
		return
	}
	log.Printf("scheduler: window %d failed: %v", windowIdx, failed)
}

func sideFromAction(a signal.Action) domain.Side {
	if a == signal.ActionSell {
		return domain.SideSell
	}
	return domain.SideBuy
}

func dailyPnl(state domain.State) float64 {
	return state.Settings.DailyPnlBaseline.EquityKrw
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func intersect(a, b []string) []string {
	if len(b) == 0 {
		return nil
	}
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}
