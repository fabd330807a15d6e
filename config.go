package bankhub

import (
	"fmt"
	"io"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BANKHUB_"

type Config struct {
	Server struct {
		Addr            string        `yaml:"addr" env:"ADDR"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LEVEL"`
	} `yaml:"log"`
	Ledger struct {
		NodeID int64         `yaml:"node_id"`
		Seed   []SeedAccount `yaml:"seed"`
	} `yaml:"ledger"`
	Limits struct {
		InFlight       int64         `yaml:"in_flight" env:"IN_FLIGHT"`
		AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"ACQUIRE_TIMEOUT"`
	} `yaml:"limits"`
	Breaker struct {
		ConsecutiveFailures uint32        `yaml:"consecutive_failures" env:"CONSECUTIVE_FAILURES"`
		OpenTimeout         time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT"`
	} `yaml:"breaker"`
}

type SeedAccount struct {
	Owner   string          `yaml:"owner"`
	Type    AccountType     `yaml:"type"`
	Balance decimal.Decimal `yaml:"balance"`
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Addr = ":3000"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Log.Level = "info"
	cfg.Ledger.NodeID = 1
	cfg.Limits.InFlight = 64
	cfg.Limits.AcquireTimeout = 500 * time.Millisecond
	cfg.Breaker.ConsecutiveFailures = 5
	cfg.Breaker.OpenTimeout = 30 * time.Second
	return cfg
}

// LoadConfig decodes YAML from r over the defaults, then applies
// BANKHUB_* environment overrides.
func LoadConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	sections := map[string]any{
		"SERVER_":  &cfg.Server,
		"LOG_":     &cfg.Log,
		"LIMITS_":  &cfg.Limits,
		"BREAKER_": &cfg.Breaker,
	}
	for prefix, section := range sections {
		if err := env.ParseWithOptions(section, env.Options{Prefix: envPrefix + prefix}); err != nil {
			return nil, fmt.Errorf("parse config env: %w", err)
		}
	}
	ledger := struct {
		NodeID int64 `env:"NODE_ID"`
	}{NodeID: cfg.Ledger.NodeID}
	if err := env.ParseWithOptions(&ledger, env.Options{Prefix: envPrefix + "LEDGER_"}); err != nil {
		return nil, fmt.Errorf("parse config env: %w", err)
	}
	cfg.Ledger.NodeID = ledger.NodeID
	return &cfg, nil
}
