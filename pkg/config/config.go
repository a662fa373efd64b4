package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	// Exchange credentials
	ExchangeBaseURL   string
	ExchangeAccessKey string
	ExchangeSecretKey string
	ExchangeStreamURL string

	// Rate limits
	PublicRateCap  int
	PrivateRateCap int

	// Trading universe
	DefaultSymbol string
	Symbols       []string

	// Execution window
	OrderAmountKrw   float64
	RiskMinKrw       float64
	RiskMaxKrw       float64
	WindowSec        int
	CooldownSec      int
	RestartDelaySec  int
	HeartbeatWindows int

	// Risk engine
	MaxConcurrentOrders   int
	MinOrderNotionalKrw   float64
	MaxOrderNotionalKrw   float64
	DailyLossLimitKrw     float64
	AIMaxOrderNotionalKrw float64
	AIMaxOrdersPerWindow  int
	AIOrderCountWindowSec int
	AIMaxTotalExposureKrw float64

	// Market universe
	UniverseQuote          string
	UniverseInclude        []string
	UniverseMinBaseLen     int
	UniverseMin24hValueKrw float64
	UniverseMaxSymbols     int

	// Paths
	StateFilePath      string
	AISettingsFilePath string
	OverlayFilePath    string
	UniverseFilePath   string
	AuditLogPath       string

	// Retention
	RetentionClosedOrders int
	RetentionOrderEvents  int
	RetentionFills        int
	RetentionStrategyRuns int
	RetentionBalances     int
	RetentionRiskEvents   int
	RetentionHealth       int
	RetentionAgentAudit   int

	// Operational
	PaperMode bool
	Timezone  string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		ExchangeBaseURL:   getEnv("EXCHANGE_BASE_URL", "https://api.upbit.com"),
		ExchangeAccessKey: os.Getenv("EXCHANGE_ACCESS_KEY"),
		ExchangeSecretKey: os.Getenv("EXCHANGE_SECRET_KEY"),
		ExchangeStreamURL: getEnv("EXCHANGE_STREAM_URL", "wss://api.upbit.com/websocket/v1"),

		PublicRateCap:  getEnvInt("PUBLIC_RATE_CAP", 150),
		PrivateRateCap: getEnvInt("PRIVATE_RATE_CAP", 140),

		DefaultSymbol: getEnv("DEFAULT_SYMBOL", "BTC_KRW"),
		Symbols:       splitAndTrim(getEnv("SYMBOLS", "BTC_KRW,ETH_KRW")),

		OrderAmountKrw:   getEnvFloat("ORDER_AMOUNT_KRW", 10000),
		RiskMinKrw:       getEnvFloat("RISK_MIN_KRW", 5000),
		RiskMaxKrw:       getEnvFloat("RISK_MAX_KRW", 500000),
		WindowSec:        getEnvInt("WINDOW_SEC", 60),
		CooldownSec:      getEnvInt("COOLDOWN_SEC", 30),
		RestartDelaySec:  getEnvInt("RESTART_DELAY_SEC", 30),
		HeartbeatWindows: getEnvInt("HEARTBEAT_WINDOWS", 12),

		MaxConcurrentOrders:   getEnvInt("MAX_CONCURRENT_ORDERS", 5),
		MinOrderNotionalKrw:   getEnvFloat("MIN_ORDER_NOTIONAL_KRW", 5000),
		MaxOrderNotionalKrw:   getEnvFloat("MAX_ORDER_NOTIONAL_KRW", 1000000),
		DailyLossLimitKrw:     getEnvFloat("DAILY_LOSS_LIMIT_KRW", 300000),
		AIMaxOrderNotionalKrw: getEnvFloat("AI_MAX_ORDER_NOTIONAL_KRW", 200000),
		AIMaxOrdersPerWindow:  getEnvInt("AI_MAX_ORDERS_PER_WINDOW", 3),
		AIOrderCountWindowSec: getEnvInt("AI_ORDER_COUNT_WINDOW_SEC", 3600),
		AIMaxTotalExposureKrw: getEnvFloat("AI_MAX_TOTAL_EXPOSURE_KRW", 2000000),

		UniverseQuote:          getEnv("UNIVERSE_QUOTE", "KRW"),
		UniverseInclude:        splitAndTrim(getEnv("UNIVERSE_INCLUDE", "BTC,ETH")),
		UniverseMinBaseLen:     getEnvInt("UNIVERSE_MIN_BASE_LEN", 2),
		UniverseMin24hValueKrw: getEnvFloat("UNIVERSE_MIN_24H_VALUE_KRW", 2e10),
		UniverseMaxSymbols:     getEnvInt("UNIVERSE_MAX_SYMBOLS", 6),

		StateFilePath:      getEnv("STATE_FILE_PATH", "./data/state.json"),
		AISettingsFilePath: getEnv("AI_SETTINGS_FILE_PATH", "./data/ai-settings.json"),
		OverlayFilePath:    getEnv("OVERLAY_FILE_PATH", "./data/overlay.json"),
		UniverseFilePath:   getEnv("UNIVERSE_FILE_PATH", "./data/universe.json"),
		AuditLogPath:       getEnv("AUDIT_LOG_PATH", "./data/audit.log"),

		RetentionClosedOrders: getEnvInt("RETENTION_CLOSED_ORDERS", 500),
		RetentionOrderEvents:  getEnvInt("RETENTION_ORDER_EVENTS", 2000),
		RetentionFills:        getEnvInt("RETENTION_FILLS", 2000),
		RetentionStrategyRuns: getEnvInt("RETENTION_STRATEGY_RUNS", 1000),
		RetentionBalances:     getEnvInt("RETENTION_BALANCES", 200),
		RetentionRiskEvents:   getEnvInt("RETENTION_RISK_EVENTS", 500),
		RetentionHealth:       getEnvInt("RETENTION_HEALTH", 200),
		RetentionAgentAudit:   getEnvInt("RETENTION_AGENT_AUDIT", 200),

		PaperMode: getEnv("PAPER_MODE", "true") == "true",
		Timezone:  getEnv("TIMEZONE", "Asia/Seoul"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
