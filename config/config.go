package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. It is built once at startup
// and injected everywhere, including the admin allowlist, which is
// deliberately not module-level state.
type Config struct {
	// HTTP server
	ListenAddr string `validate:"required"`

	// Database
	DBPath string `validate:"required"`

	// Logging
	LogLevel string

	// Admin gating: Discord user IDs allowed to hit /api/admin endpoints.
	AdminDiscordIDs []string

	// Sync window
	SyncLookbackDays int `validate:"gte=0"`

	// Tradier connector (enabled when token and account are set)
	TradierToken     string
	TradierAccountID string
	TradierSandbox   bool

	// Polymarket connector (enabled when wallet is set)
	PolymarketWallet string

	// Binance connector (enabled when key/secret are set)
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool
	BinanceSymbols   []string

	// Broker HTTP settings
	BrokerRetryDelay  time.Duration
	BrokerMaxAttempts int `validate:"gte=0"`
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	cfg.DBPath = getEnv("DB_PATH", "./data/meridian.db")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.AdminDiscordIDs = splitList(getEnv("ADMIN_DISCORD_IDS", ""))

	cfg.SyncLookbackDays = getEnvAsInt("SYNC_LOOKBACK_DAYS", 90)

	cfg.TradierToken = getEnv("TRADIER_TOKEN", "")
	cfg.TradierAccountID = getEnv("TRADIER_ACCOUNT_ID", "")
	cfg.TradierSandbox = getEnvAsBool("TRADIER_SANDBOX", false)
	if cfg.TradierToken != "" && cfg.TradierAccountID == "" {
		errs = append(errs, "TRADIER_ACCOUNT_ID must be set when TRADIER_TOKEN is set")
	}

	cfg.PolymarketWallet = getEnv("POLYMARKET_WALLET", "")

	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", true)
	cfg.BinanceSymbols = splitList(getEnv("BINANCE_SYMBOLS", ""))
	if cfg.BinanceAPIKey != "" && cfg.BinanceSecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set when BINANCE_API_KEY is set")
	}
	if cfg.BinanceAPIKey != "" && len(cfg.BinanceSymbols) == 0 {
		errs = append(errs, "BINANCE_SYMBOLS must be set when the binance connector is enabled")
	}

	retryDelayMs := getEnvAsInt("BROKER_RETRY_DELAY_MS", 500)
	if retryDelayMs <= 0 {
		errs = append(errs, "BROKER_RETRY_DELAY_MS must be positive")
	}
	cfg.BrokerRetryDelay = time.Duration(retryDelayMs) * time.Millisecond
	cfg.BrokerMaxAttempts = getEnvAsInt("BROKER_MAX_ATTEMPTS", 4)

	if err := validator.New().Struct(cfg); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// IsAdmin reports whether the Discord user ID is on the admin allowlist.
func (c *Config) IsAdmin(discordID string) bool {
	for _, id := range c.AdminDiscordIDs {
		if id == discordID {
			return true
		}
	}
	return false
}

// TradierEnabled reports whether the Tradier connector is configured.
func (c *Config) TradierEnabled() bool { return c.TradierToken != "" }

// PolymarketEnabled reports whether the Polymarket connector is configured.
func (c *Config) PolymarketEnabled() bool { return c.PolymarketWallet != "" }

// BinanceEnabled reports whether the Binance connector is configured.
func (c *Config) BinanceEnabled() bool { return c.BinanceAPIKey != "" }

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
