package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	// Chain settings
	RPCUrl       string
	WSUrl        string // optional; enables the newHeads subscription
	PoolAddress  string
	TokenAddress string
	ChainID      int64 // 0 means ask the node
	NetworkName  string

	// Signer; empty runs the engine read-only
	WalletPrivateKey string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Confirmation and block watching
	ConfirmPollInterval time.Duration
	WatchInterval       time.Duration

	// Redis settings; empty disables the cache
	RedisAddr string

	// ClickHouse settings; empty address disables the journal
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	LogLevel string

	// Risk limits in ETH; zero disables
	RiskMaxOperationETH float64
	RiskDailyLimitETH   float64
}

func Load() *Config {
	return &Config{
		// Chain
		RPCUrl:       getEnv("ETH_RPC_URL", "http://localhost:8545"),
		WSUrl:        getEnv("ETH_WS_URL", ""),
		PoolAddress:  getEnv("DEX_POOL_ADDRESS", ""),
		TokenAddress: getEnv("DEX_TOKEN_ADDRESS", ""),
		ChainID:      int64(getIntEnv("CHAIN_ID", 0)),
		NetworkName:  getEnv("NETWORK_NAME", ""),

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		ConfirmPollInterval: getDurationEnv("CONFIRM_POLL_INTERVAL", 500*time.Millisecond),
		WatchInterval:       getDurationEnv("WATCH_INTERVAL", 12*time.Second),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "simpledex"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Risk
		RiskMaxOperationETH: getFloatEnv("RISK_MAX_OP_ETH", 0),
		RiskDailyLimitETH:   getFloatEnv("RISK_DAILY_LIMIT_ETH", 0),
	}
}

// Validate reports every setting that would stop the engine from starting.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RPCUrl) == "" {
		errs = append(errs, errors.New("ETH_RPC_URL is required"))
	}
	if !common.IsHexAddress(c.PoolAddress) {
		errs = append(errs, fmt.Errorf("DEX_POOL_ADDRESS %q is not a hex address", c.PoolAddress))
	}
	if !common.IsHexAddress(c.TokenAddress) {
		errs = append(errs, fmt.Errorf("DEX_TOKEN_ADDRESS %q is not a hex address", c.TokenAddress))
	}
	if c.ChainID < 0 {
		errs = append(errs, errors.New("CHAIN_ID must not be negative"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.WatchInterval < 0 || c.ConfirmPollInterval < 0 {
		errs = append(errs, errors.New("poll intervals must not be negative"))
	}
	if c.RiskMaxOperationETH < 0 || c.RiskDailyLimitETH < 0 {
		errs = append(errs, errors.New("risk limits must not be negative"))
	}
	return errors.Join(errs...)
}

// ChainIDBig returns the configured chain id, or nil when the node should be asked.
func (c *Config) ChainIDBig() *big.Int {
	if c.ChainID == 0 {
		return nil
	}
	return big.NewInt(c.ChainID)
}

// HasWallet reports whether a signing key is configured.
func (c *Config) HasWallet() bool {
	return strings.TrimSpace(c.WalletPrivateKey) != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
