package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "opmonitor",
		Short:        "Operator registry event monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newMonitorCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newTestCmd())
	root.AddCommand(newOperatorsCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// addChainFlags registers the flags shared by every command that talks to
// the chain. Flag names match the config keys.
func addChainFlags(fs *pflag.FlagSet) {
	fs.String("network", "mainnet", "network (mainnet, holesky, hoodi, devnet)")
	fs.String("rpc-url", "", "Ethereum RPC URL, defaults to the network's public RPC")
	fs.String("registry-contract-address", "", "Registry contract address (required)")
	fs.String("taiyi-coordinator-contract-address", "", "TaiyiRegistryCoordinator contract address")
	fs.String("taiyi-escrow-contract-address", "", "TaiyiEscrow contract address")
	fs.String("taiyi-core-contract-address", "", "TaiyiCore contract address")
	fs.String("eigenlayer-middleware-contract-address", "", "EigenLayerMiddleware contract address")
	fs.String("eigenlayer-allocation-manager-contract-address", "", "EigenLayer AllocationManager contract address")
	fs.Int("chunk-size", 50000, "blocks per historical query")
	fs.Int("max-retries", 3, "attempts per historical query")
	fs.Bool("enable-calldata-decoding", true, "decode registerValidators calldata for registrations")
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.Bool("enable-redis-storage", false, "store operator validators in Redis")
	fs.String("redis-url", "redis://localhost:6379", "Redis URL")
	fs.String("redis-key-prefix", "validators_by_operator", "Redis key prefix")
	fs.String("postgres-dsn", "", "Postgres DSN for the validator store")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
