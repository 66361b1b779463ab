package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetYaml(t *testing.T) {
	path := writeConfig(t, `
rpc_url: "http://localhost:8545"
market_address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
time_slot: "12459"
web_addr: ":9090"
refresh_interval: "30s"
`)
	cfg, err := getYaml(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, uint64(12459), cfg.TimeSlot)
	assert.Equal(t, ":9090", cfg.WebAddr)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, int32(DefaultTokenDecimals), cfg.TokenDecimals)
	assert.True(t, cfg.LiveMode())
}

func TestGetYaml_DemoMode(t *testing.T) {
	path := writeConfig(t, `
time_slot: "1000"
`)
	cfg, err := getYaml(path)
	require.NoError(t, err)
	assert.False(t, cfg.LiveMode())
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
}

func TestGetYaml_PartialChainConfigRejected(t *testing.T) {
	path := writeConfig(t, `
rpc_url: "http://localhost:8545"
time_slot: "1000"
`)
	_, err := getYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestConfig_Validate_PartialChainConfig(t *testing.T) {
	// the flag path builds a Config directly and runs the same guard
	err := Config{RPCURL: "http://localhost:8545"}.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")

	err = Config{MarketAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}.validate()
	require.Error(t, err)

	assert.NoError(t, Config{}.validate())
	assert.NoError(t, Config{
		RPCURL:        "http://localhost:8545",
		MarketAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}.validate())
}

func TestGetYaml_BadValues(t *testing.T) {
	for name, body := range map[string]string{
		"time_slot":        `time_slot: "soon"`,
		"refresh_interval": `refresh_interval: "-5s"`,
		"token_decimals":   `token_decimals: "many"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := getYaml(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Config{
		RPCURL:          "http://localhost:8545",
		MarketAddress:   "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TokenDecimals:   18,
		TimeSlot:        42,
		WebAddr:         ":8080",
		RefreshInterval: time.Minute,
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := getYaml(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.RPCURL, loaded.RPCURL)
	assert.Equal(t, cfg.TimeSlot, loaded.TimeSlot)
	assert.Equal(t, cfg.RefreshInterval, loaded.RefreshInterval)
}
