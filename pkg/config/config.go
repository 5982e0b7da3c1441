package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds agent configuration read from a YAML file
type Config struct {
	// LocalNode is the ID of the host the agent runs on
	LocalNode string `yaml:"local_node"`

	// LocalReserve is capacity on the local node never handed to replicas
	LocalReserve float64 `yaml:"local_reserve"`

	// CashReserve is money never spent by provisioning actions
	CashReserve float64 `yaml:"cash_reserve"`

	// SpendMoney approves actions that spend money
	SpendMoney bool `yaml:"spend_money"`

	// MinUpgradeJump is the minimum number of capacity doublings that
	// justifies replacing a purchased node
	MinUpgradeJump int `yaml:"min_upgrade_jump"`

	// DisabledOperations lists operations and modules that must not launch
	DisabledOperations []string `yaml:"disabled_operations"`

	PurchasePrefix string `yaml:"purchase_prefix"`
	UpgradeMarker  string `yaml:"upgrade_marker"`

	TickInterval time.Duration `yaml:"tick_interval"`
	PollInterval time.Duration `yaml:"poll_interval"`

	DataDir     string `yaml:"data_dir"`
	MetricsAddr string `yaml:"metrics_addr"`

	Log        LogConfig        `yaml:"log"`
	API        APIConfig        `yaml:"api"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// LogConfig controls logger output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// APIConfig controls the read-only status API
type APIConfig struct {
	// Addr disables the API when empty
	Addr string `yaml:"addr"`

	// Secret signs bearer tokens; requests are not authenticated when empty
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// SimulationConfig tunes the bbolt-backed simulated fleet
type SimulationConfig struct {
	ReplicaTTL time.Duration `yaml:"replica_ttl"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		LocalNode:      "home",
		LocalReserve:   32,
		CashReserve:    10000000,
		SpendMoney:     false,
		MinUpgradeJump: 2,
		PurchasePrefix: "pserv",
		UpgradeMarker:  "upgrade.lock",
		TickInterval:   500 * time.Millisecond,
		PollInterval:   200 * time.Millisecond,
		DataDir:        "./burrow-data",
		MetricsAddr:    "",
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		API: APIConfig{
			TokenTTL: 24 * time.Hour,
		},
		Simulation: SimulationConfig{
			ReplicaTTL: 30 * time.Second,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.LocalNode == "" {
		errs = append(errs, errors.New("local_node must not be empty"))
	}
	if c.LocalReserve < 0 {
		errs = append(errs, fmt.Errorf("local_reserve must be >= 0, got %v", c.LocalReserve))
	}
	if c.CashReserve < 0 {
		errs = append(errs, fmt.Errorf("cash_reserve must be >= 0, got %v", c.CashReserve))
	}
	if c.MinUpgradeJump < 1 {
		errs = append(errs, fmt.Errorf("min_upgrade_jump must be >= 1, got %d", c.MinUpgradeJump))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick_interval must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.PurchasePrefix == "" {
		errs = append(errs, errors.New("purchase_prefix must not be empty"))
	}
	if c.API.Secret != "" && c.API.TokenTTL <= 0 {
		errs = append(errs, errors.New("api.token_ttl must be positive when api.secret is set"))
	}
	if c.UpgradeMarker == "" {
		errs = append(errs, errors.New("upgrade_marker must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDisabled reports whether op is listed in disabled_operations
func (c *Config) IsDisabled(op string) bool {
	for _, d := range c.DisabledOperations {
		if d == op {
			return true
		}
	}
	return false
}
