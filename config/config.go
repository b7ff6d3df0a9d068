// Package config loads application configuration from environment
// variables. Secrets (Angel One credentials) are required; everything
// else has a sensible default for a paper-trading run.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Angel One credentials
	AngelAPIKey     string
	AngelClientCode string
	AngelPassword   string
	AngelTOTPSecret string

	// Underlying index
	IndexToken    string
	IndexExchange string
	IndexName     string
	IndexSymbol   string

	// Option contracts orders route to
	CEToken      string
	CESymbol     string
	PEToken      string
	PESymbol     string
	OptionExpiry string // e.g. "25Sep2026"
	LotSize      int

	// Strategy
	CooldownSec      int
	GreeksEnabled    bool
	RSIBullThreshold float64
	RSIBearThreshold float64
	VolumeRatioMin   float64
	ATRPctMin        float64
	ATRPctMax        float64
	VWAPMinDistPct   float64
	DeltaMin         float64
	DeltaMax         float64
	PCRBullMax       float64
	PCRBearMin       float64
	ConfirmBars      int

	// Option chain polling
	GreeksPollInterval time.Duration
	PCRPollInterval    time.Duration

	// Execution and risk
	OrderQty      int64
	SlippageBps   int64
	InitialEquity int64 // paise
	MaxDailyLoss  int64 // paise
	MaxOpenLegs   int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	BarsDBPath    string
	FillsDBPath   string
	MetricsAddr   string
	GatewayAddr   string

	// SimFeed replaces the live Angel One stream with a synthetic
	// random walk; useful outside market hours and in development.
	SimFeed bool
}

// Load reads configuration from environment variables. Credentials are
// only required when the live feed is enabled.
func Load() *Config {
	cfg := &Config{
		IndexToken:    getEnv("INDEX_TOKEN", "99926000"),
		IndexExchange: getEnv("INDEX_EXCHANGE", "NSE"),
		IndexName:     getEnv("INDEX_NAME", "NIFTY"),
		IndexSymbol:   getEnv("INDEX_SYMBOL", "Nifty 50"),

		CEToken:      getEnv("CE_TOKEN", ""),
		CESymbol:     getEnv("CE_SYMBOL", ""),
		PEToken:      getEnv("PE_TOKEN", ""),
		PESymbol:     getEnv("PE_SYMBOL", ""),
		OptionExpiry: getEnv("OPTION_EXPIRY", ""),
		LotSize:      getEnvInt("LOT_SIZE", 75),

		CooldownSec:      getEnvInt("SIGNAL_COOLDOWN_SEC", 120),
		GreeksEnabled:    getEnvBool("GREEKS_FILTER_ENABLED", true),
		RSIBullThreshold: getEnvFloat("RSI_BULL_THRESHOLD", 50),
		RSIBearThreshold: getEnvFloat("RSI_BEAR_THRESHOLD", 50),
		VolumeRatioMin:   getEnvFloat("VOLUME_RATIO_MIN", 0.5),
		ATRPctMin:        getEnvFloat("ATR_PCT_MIN", 0.01),
		ATRPctMax:        getEnvFloat("ATR_PCT_MAX", 2.5),
		VWAPMinDistPct:   getEnvFloat("VWAP_MIN_DIST_PCT", 0.1),
		DeltaMin:         getEnvFloat("DELTA_MIN", 0.30),
		DeltaMax:         getEnvFloat("DELTA_MAX", 0.70),
		PCRBullMax:       getEnvFloat("PCR_BULL_MAX", 1.0),
		PCRBearMin:       getEnvFloat("PCR_BEAR_MIN", 1.0),
		ConfirmBars:      getEnvInt("CONFIRM_BARS", 3),

		GreeksPollInterval: getEnvDuration("GREEKS_POLL_INTERVAL", 30*time.Second),
		PCRPollInterval:    getEnvDuration("PCR_POLL_INTERVAL", 60*time.Second),

		OrderQty:      int64(getEnvInt("ORDER_QTY", 75)),
		SlippageBps:   int64(getEnvInt("SLIPPAGE_BPS", 10)),
		InitialEquity: int64(getEnvInt("INITIAL_EQUITY_PAISE", 50000000)),
		MaxDailyLoss:  int64(getEnvInt("MAX_DAILY_LOSS_PAISE", 500000)),
		MaxOpenLegs:   getEnvInt("MAX_OPEN_LEGS", 2),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		BarsDBPath:    getEnv("BARS_DB_PATH", "data/bars.db"),
		FillsDBPath:   getEnv("FILLS_DB_PATH", "data/fills.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		SimFeed: getEnvBool("SIM_FEED", false),
	}

	if !cfg.SimFeed {
		cfg.AngelAPIKey = mustEnv("ANGEL_API_KEY")
		cfg.AngelClientCode = mustEnv("ANGEL_CLIENT_CODE")
		cfg.AngelPassword = mustEnv("ANGEL_PASSWORD")
		cfg.AngelTOTPSecret = mustEnv("ANGEL_TOTP_SECRET")
	}
	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
