// Package config loads console configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultTokenDecimals is the EnergyToken fixed-point scale on chain.
	DefaultTokenDecimals = 18
	// DefaultRefreshInterval between background order-book refreshes.
	DefaultRefreshInterval = 15 * time.Second
)

// Config holds everything the console needs to start.
type Config struct {
	// RPCURL Ethereum JSON-RPC endpoint. Empty means demo mode only.
	RPCURL string
	// MarketAddress EnergyMarket contract address. Empty means demo mode only.
	MarketAddress string
	// TokenDecimals fixed-point scale of on-chain amounts.
	TokenDecimals int32
	// TimeSlot initial trading slot shown in the console.
	TimeSlot uint64
	// WebAddr listen address for the console HTTP server.
	WebAddr string
	// TLSDomains enables automatic HTTPS for the given hostnames.
	TLSDomains []string
	// SnapshotDir directory for the balance snapshot journal.
	SnapshotDir string
	// RefreshInterval period of the background order-book refresh loop.
	RefreshInterval time.Duration
}

type configTmp struct {
	RPCURL             string   `yaml:"rpc_url"`
	MarketAddress      string   `yaml:"market_address"`
	TokenDecimalsStr   string   `yaml:"token_decimals,omitempty"`
	TimeSlotStr        string   `yaml:"time_slot"`
	WebAddr            string   `yaml:"web_addr"`
	TLSDomains         []string `yaml:"tls_domains,omitempty"`
	SnapshotDir        string   `yaml:"snapshot_dir,omitempty"`
	RefreshIntervalStr string   `yaml:"refresh_interval,omitempty"`
}

// Get loads the configuration, preferring --config when provided.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	rpcURL := flag.String("rpc", "", "ethereum json-rpc endpoint, empty for demo mode")
	marketAddress := flag.String("market", "", "EnergyMarket contract address, empty for demo mode")
	timeSlot := flag.Uint64("slot", 12459, "initial time slot id")
	webAddr := flag.String("web", ":8080", "console listen address")
	snapshotDir := flag.String("snapshots", "", "balance snapshot journal directory")
	refreshInterval := flag.Duration("refreshinterval", DefaultRefreshInterval, "order book refresh interval")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := Config{
		RPCURL:          *rpcURL,
		MarketAddress:   *marketAddress,
		TokenDecimals:   DefaultTokenDecimals,
		TimeSlot:        *timeSlot,
		WebAddr:         *webAddr,
		SnapshotDir:     *snapshotDir,
		RefreshInterval: *refreshInterval,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile loads the configuration from a YAML file.
func FromFile(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, err
	}
	return tmp.toConfig()
}

func (t configTmp) toConfig() (Config, error) {
	cfg := Config{
		RPCURL:          t.RPCURL,
		MarketAddress:   t.MarketAddress,
		TokenDecimals:   DefaultTokenDecimals,
		WebAddr:         t.WebAddr,
		TLSDomains:      t.TLSDomains,
		SnapshotDir:     t.SnapshotDir,
		RefreshInterval: DefaultRefreshInterval,
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}

	if t.TokenDecimalsStr != "" {
		decimals, err := strconv.ParseInt(t.TokenDecimalsStr, 10, 32)
		if err != nil || decimals < 0 {
			return Config{}, fmt.Errorf("incorrect 'token_decimals' param in yaml config: %s", t.TokenDecimalsStr)
		}
		cfg.TokenDecimals = int32(decimals)
	}

	if t.TimeSlotStr != "" {
		slot, err := strconv.ParseUint(t.TimeSlotStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'time_slot' param in yaml config: %s", t.TimeSlotStr)
		}
		cfg.TimeSlot = slot
	}

	if t.RefreshIntervalStr != "" {
		interval, err := time.ParseDuration(t.RefreshIntervalStr)
		if err != nil || interval <= 0 {
			return Config{}, fmt.Errorf("incorrect 'refresh_interval' param in yaml config: %s", t.RefreshIntervalStr)
		}
		cfg.RefreshInterval = interval
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate rejects half-configured chain access: a contract address without
// an endpoint (or vice versa) is a config mistake, not demo mode.
func (c Config) validate() error {
	if (c.RPCURL == "") != (c.MarketAddress == "") {
		return fmt.Errorf("rpc url and market address must be set together")
	}
	return nil
}

// LiveMode reports whether a market contract is configured.
func (c Config) LiveMode() bool {
	return c.RPCURL != "" && c.MarketAddress != ""
}

// Save writes the configuration as YAML, used by the setup wizard.
func (c Config) Save(path string) error {
	tmp := configTmp{
		RPCURL:             c.RPCURL,
		MarketAddress:      c.MarketAddress,
		TokenDecimalsStr:   strconv.FormatInt(int64(c.TokenDecimals), 10),
		TimeSlotStr:        strconv.FormatUint(c.TimeSlot, 10),
		WebAddr:            c.WebAddr,
		TLSDomains:         c.TLSDomains,
		SnapshotDir:        c.SnapshotDir,
		RefreshIntervalStr: c.RefreshInterval.String(),
	}
	payload, err := yaml.Marshal(tmp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}
