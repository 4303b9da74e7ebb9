// Package cmd holds the dexd command tree.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Iwinswap/iwinswap-amm-router/cmd/dexd/config"
	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const flagConfig = "config"

// NewRootCmd returns the dexd root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dexd",
		Short: "Constant-product AMM node with multi-hop routing",
		Long: `dexd runs an in-memory constant-product exchange and serves it over JSON-RPC.

Example:
  $ dexd serve --config config.yaml
  $ dexd quote --config config.yaml --amount 1000 BTC ETH USD`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(flagConfig, "config.yaml", "Path to the configuration file.")

	rootCmd.AddCommand(
		NewServeCmd(),
		NewQuoteCmd(),
	)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.NodeConfig, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(path)
}

func newLogger(cfg *config.NodeConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// newExchange builds an exchange and loads the configured genesis into it.
func newExchange(cfg *config.NodeConfig, logger *slog.Logger, reg prometheus.Registerer) (*exchange.Exchange, error) {
	ex, err := exchange.New(exchange.Config{
		Logger:       logger.With("component", "exchange"),
		Registry:     reg,
		EventHistory: cfg.EventHistory,
		EnableFaucet: cfg.EnableFaucet,
	})
	if err != nil {
		return nil, err
	}
	if err := ex.ApplyGenesis(cfg.Genesis); err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	return ex, nil
}
