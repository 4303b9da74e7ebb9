package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen_address: "0.0.0.0:9000"
cors_allowed_origins: ["http://localhost:3000"]
rate_limit_per_minute: 600
enable_metrics: true
enable_faucet: true
log_level: debug
event_history: 5000
genesis:
  assets:
    - address: "0x0000000000000000000000000000000000000001"
      name: BTC
      symbol: BTC
      decimals: 8
    - address: "0x0000000000000000000000000000000000000002"
      name: ETH
      symbol: ETH
      decimals: 18
  accounts:
    - address: "0x00000000000000000000000000000000000000aa"
      balances:
        BTC: 1000000
        ETH: 20000000
  pools:
    - a: BTC
      b: ETH
      reserve_a: 1000000
      reserve_b: 20000000
      provider: "0x00000000000000000000000000000000000000aa"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 600, cfg.RateLimitPerMinute)
	assert.True(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableFaucet)
	assert.Equal(t, 5000, cfg.EventHistory)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	require.Len(t, cfg.Genesis.Assets, 2)
	assert.Equal(t, common.HexToAddress("0x01"), cfg.Genesis.Assets[0].Address)
	assert.Equal(t, uint8(18), cfg.Genesis.Assets[1].Decimals)
	require.Len(t, cfg.Genesis.Accounts, 1)
	assert.Equal(t, uint64(20_000_000), cfg.Genesis.Accounts[0].Balances["ETH"])
	require.Len(t, cfg.Genesis.Pools, 1)
	assert.Equal(t, uint64(1_000_000), cfg.Genesis.Pools[0].ReserveA)
	assert.Equal(t, common.HexToAddress("0xaa"), cfg.Genesis.Pools[0].Provider)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "enable_metrics: false\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.Genesis.Assets)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "listen_address: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		errMsg string
	}{
		{name: "empty listen address", body: `listen_address: ""`, errMsg: "listen_address"},
		{name: "negative rate limit", body: `rate_limit_per_minute: -1`, errMsg: "rate_limit_per_minute"},
		{name: "negative history", body: `event_history: -5`, errMsg: "event_history"},
		{name: "bad log level", body: `log_level: loud`, errMsg: "log_level"},
		{
			name:   "half-seeded pool",
			body:   "genesis:\n  pools:\n    - {a: BTC, b: ETH, reserve_a: 10}\n",
			errMsg: "reserve_a and reserve_b",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
