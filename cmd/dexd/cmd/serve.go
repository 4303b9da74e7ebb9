package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iwinswap/iwinswap-amm-router/streams/jsonrpc/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd returns the command that runs the node until interrupted.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the genesis and serve the exchange over JSON-RPC",
		Long: `Load the genesis from the configuration file and serve the dex namespace over
HTTP and WebSocket on listen_address. /health is always served; /metrics only when
enable_metrics is set.

Example:
  $ dexd serve --config config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			ex, err := newExchange(cfg, logger, reg)
			if err != nil {
				logger.Error("Failed to initialize exchange", "error", err)
				return err
			}

			serverCfg := server.Config{
				Address:        cfg.ListenAddress,
				AllowedOrigins: cfg.CORSAllowedOrigins,
				RatePerMinute:  cfg.RateLimitPerMinute,
				Logger:         logger.With("component", "jsonrpc-server"),
			}
			if cfg.EnableMetrics {
				serverCfg.Gatherer = reg
			}
			srv, err := server.NewServer(serverCfg, ex)
			if err != nil {
				logger.Error("Failed to initialize JSON-RPC server", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.ListenAndServe)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			logger.Info("Node started",
				"address", cfg.ListenAddress,
				"assets", len(ex.Assets()),
				"pools", len(ex.Pools()),
				"faucet", cfg.EnableFaucet,
				"metrics", cfg.EnableMetrics,
			)
			err = g.Wait()
			logger.Info("Node stopped", "error", err)
			return err
		},
	}
}
