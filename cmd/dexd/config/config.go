package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddress = "127.0.0.1:8645"
	DefaultLogLevel      = "info"
)

type NodeConfig struct {
	ListenAddress      string   `yaml:"listen_address"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// RateLimitPerMinute limits requests per client IP. Zero disables the limit.
	RateLimitPerMinute int              `yaml:"rate_limit_per_minute"`
	EnableMetrics      bool             `yaml:"enable_metrics"`
	EnableFaucet       bool             `yaml:"enable_faucet"`
	LogLevel           string           `yaml:"log_level"`
	EventHistory       int              `yaml:"event_history"`
	Genesis            exchange.Genesis `yaml:"genesis"`
}

// LoadConfig reads a configuration file from the given path, unmarshals it into a
// NodeConfig, fills defaults and validates it.
func LoadConfig(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NodeConfig{
		ListenAddress: DefaultListenAddress,
		LogLevel:      DefaultLogLevel,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects values the node cannot start with.
func (c *NodeConfig) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen_address is required")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("rate_limit_per_minute must not be negative")
	}
	if c.EventHistory < 0 {
		return errors.New("event_history must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	for i, p := range c.Genesis.Pools {
		if (p.ReserveA == 0) != (p.ReserveB == 0) {
			return fmt.Errorf("genesis pool %d (%s/%s): reserve_a and reserve_b must both be set or both be zero", i, p.A, p.B)
		}
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *NodeConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
