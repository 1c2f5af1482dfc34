package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"solana-strategy-lab/internal/simulation"
	"solana-strategy-lab/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Storage struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickHouseDSN string `yaml:"clickhouse_dsn"`
		UseMemory     bool   `yaml:"use_memory"`
	} `yaml:"storage"`
	Snapshots struct {
		Dir string `yaml:"dir"`
	} `yaml:"snapshots"`
	Metadata struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"metadata"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Simulation simulation.Config `yaml:"simulation"`
	Strategies []strategy.Config `yaml:"strategies"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("SNAPSHOTS_DIR"); v != "" {
		cfg.Snapshots.Dir = v
	}
	if v := os.Getenv("METADATA_ENDPOINT"); v != "" {
		cfg.Metadata.Endpoint = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("INITIAL_BALANCE_LAMPORTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.InitialBalance = n
		}
	}
	if v := os.Getenv("BUY_AMOUNT_LAMPORTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.BuyAmount = n
		}
	}

	// Defaults
	if cfg.Snapshots.Dir == "" {
		cfg.Snapshots.Dir = "data/snapshots"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Simulation.Slippage.Mode == "" {
		cfg.Simulation.Slippage.Mode = simulation.SlippageOff
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	// Empty strategy IDs are allowed; the factory assigns a
	// deterministic hash ID when one is missing.
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	return nil
}
