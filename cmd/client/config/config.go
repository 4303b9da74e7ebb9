package config

import (
	"errors"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type ClientConfig struct {
	// StateStreamURL is the WebSocket endpoint of a dexd node.
	StateStreamURL string `yaml:"state_stream_url"`
	// Account trades, funds and provides liquidity on behalf of the console user.
	Account common.Address `yaml:"account"`
}

// LoadConfig reads a configuration file from the given path and unmarshals it
// into a ClientConfig struct.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.StateStreamURL == "" {
		return nil, errors.New("state_stream_url is required")
	}

	return &cfg, nil
}
