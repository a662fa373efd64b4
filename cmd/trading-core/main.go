// Command trading-core is the process entrypoint: it loads configuration,
// wires the exchange client, market-data facade, durable state store, order
// manager and execution scheduler, then runs the window loop until SIGINT or
// SIGTERM (spec.md §4.1, §9 "cmd/trading-core main()").
//
// Grounded on the teacher's main.go wiring order (config -> clients ->
// managers -> engine -> server -> signal wait), generalized from its
// gin HTTP server + multi-venue engine wiring to this single-exchange
// scheduler's headless window loop.
package main

import (
	"context"
	"log"
	"time"

	"trading-core/internal/aisettings"
	"trading-core/internal/domain"
	"trading-core/internal/exchange"
	"trading-core/internal/marketdata"
	"trading-core/internal/ordermanager"
	"trading-core/internal/riskengine"
	"trading-core/internal/scheduler"
	"trading-core/internal/statestore"
	"trading-core/internal/universe"
	"trading-core/pkg/config"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// installationID returns a stable per-machine identifier for tagging audit
// events, falling back to a random id if the host doesn't expose one.
func installationID() string {
	id, err := machineid.ID()
	if err != nil || id == "" {
		return uuid.NewString()
	}
	return id
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client := exchange.New(exchange.Config{
		BaseURL:        cfg.ExchangeBaseURL,
		AccessKey:      cfg.ExchangeAccessKey,
		SecretKey:      cfg.ExchangeSecretKey,
		PublicRateCap:  cfg.PublicRateCap,
		PrivateRateCap: cfg.PrivateRateCap,
		RequestTimeout: 10 * time.Second,
		Retry:          exchange.DefaultRetryConfig(),
		InstallationID: installationID(),
		OnRequestEvent: exchange.LogAuditSink(),
	})
	market := marketdata.New(client)

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	if stop, err := market.StartTickerStream(streamCtx, cfg.ExchangeStreamURL, cfg.Symbols); err != nil {
		log.Printf("trading-core: ticker stream disabled, falling back to REST polling: %v", err)
	} else {
		defer stop()
	}

	store, err := statestore.Open(cfg.StateFilePath, statestore.WithRetention(retentionFromConfig(cfg)))
	if err != nil {
		log.Fatalf("state store: %v", err)
	}

	orders := ordermanager.New(store, client, uuid.NewString, time.Now)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.AISettingsPath = cfg.AISettingsFilePath
	schedCfg.OverlayPath = cfg.OverlayFilePath
	schedCfg.UniverseSnapshotPath = cfg.UniverseFilePath
	schedCfg.UniverseCriteria = universe.Criteria{
		Quote:          cfg.UniverseQuote,
		Include:        cfg.UniverseInclude,
		MinBaseLen:     cfg.UniverseMinBaseLen,
		Min24hValueKrw: cfg.UniverseMin24hValueKrw,
		MaxSymbols:     cfg.UniverseMaxSymbols,
	}
	schedCfg.RiskConfig = riskengine.Config{
		MaxConcurrentOrders:   cfg.MaxConcurrentOrders,
		MinOrderNotionalKrw:   cfg.MinOrderNotionalKrw,
		MaxOrderNotionalKrw:   cfg.MaxOrderNotionalKrw,
		DailyLossLimitKrw:     cfg.DailyLossLimitKrw,
		AIMaxOrderNotionalKrw: cfg.AIMaxOrderNotionalKrw,
		AIMaxOrdersPerWindow:  cfg.AIMaxOrdersPerWindow,
		AIOrderCountWindowSec: cfg.AIOrderCountWindowSec,
		AIMaxTotalExposureKrw: cfg.AIMaxTotalExposureKrw,
	}
	schedCfg.RestartDelay = time.Duration(cfg.RestartDelaySec) * time.Second
	schedCfg.HeartbeatWindows = cfg.HeartbeatWindows

	aiCfg := aisettings.Config{
		Symbol:         cfg.DefaultSymbol,
		Symbols:        cfg.Symbols,
		OrderAmountKrw: cfg.OrderAmountKrw,
		RiskMinKrw:     cfg.RiskMinKrw,
		RiskMaxKrw:     cfg.RiskMaxKrw,
		WindowSec:      cfg.WindowSec,
		CooldownSec:    cfg.CooldownSec,
	}

	runner := scheduler.New(schedCfg, store, market, orders, aiCfg)

	log.Printf("trading-core: starting window loop (paper=%v, symbols=%v, window=%ds)",
		cfg.PaperMode, cfg.Symbols, cfg.WindowSec)

	result := runner.Run(context.Background(), scheduler.RunOptions{})
	if !result.OK {
		log.Fatalf("trading-core: exited code=%d err=%s", result.Code, result.Error)
	}
	log.Printf("trading-core: stopped after %d windows (%s)", result.Data.Windows, result.Data.StoppedBy)
}

func retentionFromConfig(cfg *config.Config) domain.Retention {
	return domain.Retention{
		Enabled:      true,
		ClosedOrders: cfg.RetentionClosedOrders,
		OrderEvents:  cfg.RetentionOrderEvents,
		Fills:        cfg.RetentionFills,
		StrategyRuns: cfg.RetentionStrategyRuns,
		Balances:     cfg.RetentionBalances,
		RiskEvents:   cfg.RetentionRiskEvents,
		SystemHealth: cfg.RetentionHealth,
		AgentAudit:   cfg.RetentionAgentAudit,
	}
}
