package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"operatorMonitor/internal/chain"
	"operatorMonitor/internal/status"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operator status over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addStoreFlags(cmd.Flags())
	cmd.Flags().String("network", "mainnet", "network (mainnet, holesky, hoodi, devnet)")
	cmd.Flags().String("rpc-url", "", "Ethereum RPC URL for /health")
	cmd.Flags().Duration("redis-timeout", 5*time.Second, "Redis operation timeout")
	cmd.Flags().String("status-addr", ":8080", "HTTP listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := requireValidatorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var health status.HealthSource
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.Network)
		if err != nil {
			logger.Warn("rpc unavailable, /health reports without chain", zap.Error(err))
		} else {
			defer client.Close()
			health = client
		}
	}

	srv, err := status.NewServer(cfg.StatusAddr, store, health, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
