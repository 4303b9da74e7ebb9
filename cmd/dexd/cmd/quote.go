package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Iwinswap/iwinswap-amm-router/pkg/exchange"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/router"
	"github.com/Iwinswap/iwinswap-amm-router/streams/jsonrpc/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	flagAmount  = "amount"
	flagBest    = "best"
	flagMaxHops = "max-hops"
	flagRemote  = "remote"
)

// NewQuoteCmd returns the command that prices a trade without executing it.
func NewQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote [asset] [asset] ...",
		Short: "Price selling an amount along a path",
		Long: `Price selling --amount of the first asset along the given path of assets. Assets are
display names or hex addresses. With --best, exactly two assets are given and the best-paying
path between them is searched. Quotes are computed against the configured genesis, or against
a running node with --remote.

Example:
  $ dexd quote --amount 1000 BTC ETH USD
  $ dexd quote --amount 1000 --best BTC USD
  $ dexd quote --remote http://127.0.0.1:8645 --amount 1000 BTC ETH`,
		Args: cobra.RangeArgs(router.MinPathLength, router.MaxPathLength),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := cmd.Flags().GetUint64(flagAmount)
			if err != nil {
				return err
			}
			best, err := cmd.Flags().GetBool(flagBest)
			if err != nil {
				return err
			}
			maxHops, err := cmd.Flags().GetInt(flagMaxHops)
			if err != nil {
				return err
			}
			remote, err := cmd.Flags().GetString(flagRemote)
			if err != nil {
				return err
			}
			if amount == 0 {
				return errors.New("--amount must be greater than zero")
			}
			if best && len(args) != 2 {
				return fmt.Errorf("--best takes exactly two assets, got %d", len(args))
			}

			var q exchange.Quote
			if remote != "" {
				q, err = quoteRemote(cmd, remote, args, amount, best, maxHops)
			} else {
				q, err = quoteLocal(cmd, args, amount, best, maxHops)
			}
			if err != nil {
				return err
			}
			return printQuote(cmd.OutOrStdout(), q)
		},
	}

	cmd.Flags().Uint64(flagAmount, 0, "Amount of the first asset to sell.")
	cmd.Flags().Bool(flagBest, false, "Search the best-paying path between two assets.")
	cmd.Flags().Int(flagMaxHops, 0, "Longest path searched with --best; zero for the longest supported.")
	cmd.Flags().String(flagRemote, "", "JSON-RPC URL of a running node to quote against.")
	return cmd
}

func quoteLocal(cmd *cobra.Command, args []string, amount uint64, best bool, maxHops int) (exchange.Quote, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exchange.Quote{}, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return exchange.Quote{}, err
	}
	ex, err := newExchange(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return exchange.Quote{}, err
	}

	path := make(router.Path, len(args))
	for i, ref := range args {
		if path[i], err = ex.ResolveAsset(ref); err != nil {
			return exchange.Quote{}, fmt.Errorf("asset %q: %w", ref, err)
		}
	}
	if best {
		return ex.BestPath(path[0], path[1], amount, maxHops)
	}
	return ex.QuoteSwap(path, amount)
}

func quoteRemote(cmd *cobra.Command, url string, args []string, amount uint64, best bool, maxHops int) (exchange.Quote, error) {
	dex, err := client.Dial(cmd.Context(), url)
	if err != nil {
		return exchange.Quote{}, err
	}
	defer dex.Close()

	if best {
		return dex.BestPath(cmd.Context(), args[0], args[1], amount, maxHops)
	}
	return dex.QuoteSwap(cmd.Context(), args, amount)
}

func printQuote(w io.Writer, q exchange.Quote) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Route string `json:"route"`
		exchange.Quote
	}{Route: q.Path.String(), Quote: q})
}
