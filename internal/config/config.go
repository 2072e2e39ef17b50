package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for atrader.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Backtest Backtest `yaml:"backtest"`
	Costs    Costs    `yaml:"costs"`
	Logging  Logging  `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Backtest holds the run defaults; flags and API callers can override them
// per run.
type Backtest struct {
	Symbol         string  `yaml:"symbol"`
	InitialCapital float64 `yaml:"initial_capital"`
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	Timeframe      string  `yaml:"timeframe"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
}

// Costs defines the A-share trading cost model.
type Costs struct {
	CommissionRate  float64 `yaml:"commission_rate"`
	MinCommission   float64 `yaml:"min_commission"`
	StampDutyRate   float64 `yaml:"stamp_duty_rate"`
	TransferFeeRate float64 `yaml:"transfer_fee_rate"`
	SlippageRate    float64 `yaml:"slippage_rate"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/atrader.db",
		},
		Backtest: Backtest{
			InitialCapital: 1_000_000,
			Timeframe:      "1d",
			MaxPositionPct: 1,
		},
		Costs: Costs{
			CommissionRate:  0.0003,
			MinCommission:   5,
			StampDutyRate:   0.001,
			TransferFeeRate: 0.00001,
			SlippageRate:    0.001,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATRADER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
