package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"operatorMonitor/internal/config"
	"operatorMonitor/internal/storage"
	"operatorMonitor/internal/storage/postgres"
	"operatorMonitor/internal/storage/redisstore"
)

func newOperatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operators [address]",
		Short: "List stored operator validator mappings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOperators,
	}
	addStoreFlags(cmd.Flags())
	cmd.Flags().Duration("redis-timeout", 5*time.Second, "Redis operation timeout")
	return cmd
}

// requireValidatorStore opens the configured store and fails when none is
// configured or reachable.
func requireValidatorStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.ValidatorStore, error) {
	switch {
	case cfg.EnableRedisStorage:
		return redisstore.NewStore(ctx, redisstore.Config{
			URL:     cfg.RedisURL,
			Prefix:  cfg.RedisKeyPrefix,
			Timeout: cfg.RedisTimeout,
		}, logger)
	case cfg.PostgresDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("no validator store configured: set ENABLE_REDIS_STORAGE or POSTGRES_DSN")
	}
}

func runOperators(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := requireValidatorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid operator address %q", args[0])
		}
		operator := common.HexToAddress(args[0])
		validators, err := store.GetOperatorValidators(ctx, operator)
		if err != nil {
			return fmt.Errorf("get operator validators: %w", err)
		}
		fmt.Fprintf(out, "👤 Operator: %s\n", storage.OperatorKey(operator))
		fmt.Fprintf(out, "🔑 Validators (%d):\n", len(validators))
		for _, v := range validators {
			fmt.Fprintf(out, "   %s\n", v)
		}
		return nil
	}

	all, err := store.GetAllOperators(ctx)
	if err != nil {
		return fmt.Errorf("list operators: %w", err)
	}
	operators := make([]string, 0, len(all))
	for op := range all {
		operators = append(operators, op)
	}
	sort.Strings(operators)

	fmt.Fprintf(out, "Found %d operators\n", len(operators))
	for _, op := range operators {
		fmt.Fprintf(out, "👤 %s: %d validators\n", op, len(all[op]))
	}
	return nil
}
