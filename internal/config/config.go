// Package config defines all configuration for the quoting bot.
//
// Everything is environment-driven: a .env file is loaded best-effort for
// local runs (godotenv), then viper reads the process environment with the
// defaults below. Per-asset keys follow the {BASE}_USD_* convention, e.g.
// BTC_USD_ORDER_SIZE overrides the order size for BTCUSD only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the top-level configuration assembled from the environment.
type Config struct {
	RefreshCycle    time.Duration // cadence between quote cycles
	Tickers         []string      // instruments to quote
	SpreadBps       int           // global spread width in basis points
	MaxDeviationPct float64       // global cancel threshold in percent
	Assets          map[string]AssetConfig

	Exchange  ExchangeConfig
	Oracle    OracleConfig
	Logging   LoggingConfig
	Dashboard DashboardConfig
}

// AssetConfig is the resolved per-instrument tuning after overrides.
type AssetConfig struct {
	OrderSize       float64
	SpreadBps       int
	MaxDeviationPct float64
}

// ExchangeConfig holds venue endpoints, identifiers, and the signing key.
type ExchangeConfig struct {
	BaseURL      string
	WSURL        string
	Subaccount   string // subaccount name, attached to cancel requests
	SubaccountID string // subaccount id, used for positions and event streams
	PrivateKey   string // hex key for EIP-712 order signing
	Timeout      time.Duration
}

// OracleConfig holds the streaming price service endpoint.
type OracleConfig struct {
	WSURL string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// DashboardConfig controls the observability HTTP server.
type DashboardConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from the environment (plus an optional .env file).
func Load() (*Config, error) {
	// Best-effort: a missing .env just means the environment is already set.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("QUOTE_REFRESH_CYCLE", 5000)
	v.SetDefault("TICKERS", "BTCUSD,ETHUSD,SOLUSD")
	v.SetDefault("SPREAD_WIDTH", 10)
	v.SetDefault("MAX_PRICE_DEVIATION", 1.0)
	v.SetDefault("ETHEREAL_TIMEOUT", 10000)
	v.SetDefault("ETHEREAL_BASE_URL", "https://api.etherealtest.net")
	v.SetDefault("ETHEREAL_WS_URL", "wss://ws.etherealtest.net")
	v.SetDefault("ORACLE_WS_URL", "wss://hermes.pyth.network/ws")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DASHBOARD_ENABLED", false)
	v.SetDefault("DASHBOARD_PORT", 8080)

	tickers := splitCSV(v.GetString("TICKERS"))

	cfg := &Config{
		RefreshCycle:    time.Duration(v.GetInt("QUOTE_REFRESH_CYCLE")) * time.Millisecond,
		Tickers:         tickers,
		SpreadBps:       v.GetInt("SPREAD_WIDTH"),
		MaxDeviationPct: v.GetFloat64("MAX_PRICE_DEVIATION"),
		Assets:          make(map[string]AssetConfig, len(tickers)),
		Exchange: ExchangeConfig{
			BaseURL:      v.GetString("ETHEREAL_BASE_URL"),
			WSURL:        v.GetString("ETHEREAL_WS_URL"),
			Subaccount:   v.GetString("ETHEREAL_SUBACCOUNT"),
			SubaccountID: v.GetString("ETHEREAL_SUBACCOUNT_ID"),
			PrivateKey:   v.GetString("ETHEREAL_PRIVATE_KEY"),
			Timeout:      time.Duration(v.GetInt("ETHEREAL_TIMEOUT")) * time.Millisecond,
		},
		Oracle: OracleConfig{
			WSURL: v.GetString("ORACLE_WS_URL"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Dashboard: DashboardConfig{
			Enabled: v.GetBool("DASHBOARD_ENABLED"),
			Port:    v.GetInt("DASHBOARD_PORT"),
		},
	}

	for _, ticker := range tickers {
		cfg.Assets[ticker] = resolveAsset(ticker, cfg.SpreadBps, cfg.MaxDeviationPct)
	}

	return cfg, nil
}

// resolveAsset applies {BASE}_USD_* env overrides on top of the global
// values. Overrides are read straight from the environment since the key
// names are derived per ticker.
func resolveAsset(ticker string, spreadBps int, maxDevPct float64) AssetConfig {
	ac := AssetConfig{
		OrderSize:       100,
		SpreadBps:       spreadBps,
		MaxDeviationPct: maxDevPct,
	}

	if raw := os.Getenv(assetKey(ticker, "ORDER_SIZE")); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			ac.OrderSize = f
		}
	}
	if raw := os.Getenv(assetKey(ticker, "SPREAD_WIDTH")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			ac.SpreadBps = n
		}
	}
	if raw := os.Getenv(assetKey(ticker, "MAX_PRICE_DEVIATION")); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			ac.MaxDeviationPct = f
		}
	}
	return ac
}

// assetKey maps "BTCUSD" + "ORDER_SIZE" → "BTC_USD_ORDER_SIZE".
func assetKey(ticker, suffix string) string {
	base := strings.TrimSuffix(ticker, "USD")
	return base + "_USD_" + suffix
}

// Asset returns the per-instrument tuning, falling back to globals for
// tickers that were not in TICKERS at load time.
func (c *Config) Asset(ticker string) AssetConfig {
	if ac, ok := c.Assets[ticker]; ok {
		return ac
	}
	return AssetConfig{OrderSize: 100, SpreadBps: c.SpreadBps, MaxDeviationPct: c.MaxDeviationPct}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("TICKERS must name at least one instrument")
	}
	if c.RefreshCycle <= 0 {
		return fmt.Errorf("QUOTE_REFRESH_CYCLE must be > 0")
	}
	if c.Exchange.Subaccount == "" {
		return fmt.Errorf("ETHEREAL_SUBACCOUNT is required")
	}
	if c.Exchange.SubaccountID == "" {
		return fmt.Errorf("ETHEREAL_SUBACCOUNT_ID is required")
	}
	if c.Exchange.PrivateKey == "" {
		return fmt.Errorf("ETHEREAL_PRIVATE_KEY is required")
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("ETHEREAL_TIMEOUT must be > 0")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
