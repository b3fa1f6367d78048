package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolAddr  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	tokenAddr = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CHAIN_ID", "")
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("API_ADDR", "")

	cfg := Load()
	assert.Equal(t, "http://localhost:8545", cfg.RPCUrl)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Empty(t, cfg.RedisAddr)
	assert.Nil(t, cfg.ChainIDBig())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ETH_RPC_URL", "http://node:8545")
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("MAX_RETRIES", "2")
	t.Setenv("WATCH_INTERVAL", "3s")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("RISK_DAILY_LIMIT_ETH", "2.5")

	cfg := Load()
	assert.Equal(t, "http://node:8545", cfg.RPCUrl)
	assert.Equal(t, 0, cfg.ChainIDBig().Cmp(big.NewInt(11155111)))
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.WatchInterval)
	assert.True(t, cfg.DevMode)
	assert.InDelta(t, 2.5, cfg.RiskDailyLimitETH, 1e-12)
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "many")
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("DEV_MODE", "maybe")

	cfg := Load()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.PoolAddress = poolAddr
	cfg.TokenAddress = tokenAddr
	require.NoError(t, cfg.Validate())

	cfg.PoolAddress = "pool"
	cfg.RiskMaxOperationETH = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEX_POOL_ADDRESS")
	assert.Contains(t, err.Error(), "risk limits")
}

func TestHasWallet(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasWallet())
	cfg.WalletPrivateKey = "  "
	assert.False(t, cfg.HasWallet())
	cfg.WalletPrivateKey = "0xabc"
	assert.True(t, cfg.HasWallet())
}
