package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"operatorMonitor/internal/calldata"
	"operatorMonitor/internal/chain"
	"operatorMonitor/internal/config"
	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/fetcher"
	"operatorMonitor/internal/monitor"
	"operatorMonitor/internal/notify"
	"operatorMonitor/internal/processor"
	"operatorMonitor/internal/storage"
	"operatorMonitor/internal/storage/postgres"
	"operatorMonitor/internal/storage/redisstore"
)

// app holds the components shared by the chain-facing commands.
type app struct {
	cfg     config.Config
	network config.Network
	logger  *zap.Logger

	client     *chain.Client
	handles    []*contracts.Handle
	kinds      []string
	fetcher    *fetcher.Fetcher
	fanout     *notify.Fanout
	handler    *monitor.Handler
	validators storage.ValidatorStore
	pg         *postgres.Store
	cursor     monitor.CursorStore
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newApp validates the configuration and wires the monitoring pipeline.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	network, err := cfg.NetworkInfo()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, network: network, logger: logger}

	a.client, err = chain.NewClient(ctx, cfg.RPCURL, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.checkChainID(ctx)

	registry, err := contracts.DefaultRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}
	for _, inst := range cfg.Instances() {
		if err := registry.Configure(inst.Name, inst.Kind, inst.Address); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.handles = registry.Instantiate(a.client)
	a.kinds = registry.Kinds()

	a.fetcher, err = fetcher.New(fetcher.Config{
		ChunkSize:   cfg.ChunkSize,
		MaxRetries:  cfg.MaxRetries,
		RetryBase:   cfg.RetryBase,
		Concurrency: cfg.FetchConcurrency,
	}, a.client, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.fanout = notify.NewFanout(logger)
	if cfg.SlackBotToken != "" {
		slackNotifier, err := notify.NewSlack(notify.SlackConfig{
			Token:         cfg.SlackBotToken,
			Channel:       cfg.SlackChannel,
			RatePerSecond: cfg.SlackRatePerSecond,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.fanout.AddPrimary(slackNotifier)
	}
	a.fanout.AddFallback(notify.NewConsole(os.Stdout))

	a.validators, a.pg = openValidatorStore(ctx, cfg, logger)
	if a.pg != nil {
		a.cursor = a.pg.Cursor("monitor:" + cfg.Network)
	}
	if cfg.CursorPath != "" {
		a.cursor = monitor.NewFileCursor(cfg.CursorPath)
	}

	var analyzer monitor.TxAnalyzer
	middleware := cfg.MiddlewareAddress()
	if cfg.EnableCalldataDecoding && middleware != (common.Address{}) {
		an, err := calldata.NewAnalyzer(a.client, middleware)
		if err != nil {
			a.Close()
			return nil, err
		}
		analyzer = an
	}

	var sink storage.EventSink
	if cfg.EventsOut != "" {
		sink = storage.NewJsonlStorage(cfg.EventsOut)
	}

	chainID := network.ChainID
	if id, err := a.client.ChainID(ctx); err == nil && id.IsUint64() {
		chainID = id.Uint64()
	}

	a.handler, err = monitor.NewHandler(monitor.HandlerConfig{
		Classifier: processor.NewClassifier(middleware, logger.Named("classifier")),
		Formatter:  processor.NewFormatter(network.Explorer),
		Fanout:     a.fanout,
		Sink:       sink,
		Validators: a.validators,
		Analyzer:   analyzer,
		ChainID:    chainID,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("components initialized",
		zap.String("network", cfg.Network),
		zap.Int("contracts", len(a.handles)),
		zap.Strings("channels", a.fanout.Channels()),
		zap.Bool("calldata_decoding", analyzer != nil),
		zap.Bool("validator_store", a.validators != nil),
	)
	return a, nil
}

// checkChainID warns when the node reports a different chain id than the
// network table.
func (a *app) checkChainID(ctx context.Context) {
	id, err := a.client.ChainID(ctx)
	if err != nil {
		a.logger.Warn("chain id unavailable", zap.Error(err))
		return
	}
	if !id.IsUint64() || id.Uint64() != a.network.ChainID {
		a.logger.Warn("chain id mismatch",
			zap.String("network", a.cfg.Network),
			zap.Uint64("expected", a.network.ChainID),
			zap.String("actual", id.String()),
		)
	}
}

func (a *app) sources() []fetcher.Source {
	out := make([]fetcher.Source, 0, len(a.handles))
	for _, h := range a.handles {
		out = append(out, h)
	}
	return out
}

func (a *app) Close() {
	if a.validators != nil {
		_ = a.validators.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	_ = a.logger.Sync()
}

// openValidatorStore picks Redis when enabled, else Postgres when a DSN is
// set. Connection failures disable the store with a warning.
func openValidatorStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.ValidatorStore, *postgres.Store) {
	if cfg.EnableRedisStorage {
		store, err := redisstore.NewStore(ctx, redisstore.Config{
			URL:     cfg.RedisURL,
			Prefix:  cfg.RedisKeyPrefix,
			Timeout: cfg.RedisTimeout,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, validator storage disabled", zap.Error(err))
			return nil, nil
		}
		logger.Info("redis validator store enabled")
		return store, nil
	}
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres unavailable, validator storage disabled", zap.Error(err))
			return nil, nil
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Warn("postgres schema setup failed, validator storage disabled", zap.Error(err))
			_ = store.Close()
			return nil, nil
		}
		logger.Info("postgres validator store enabled")
		return store, store
	}
	return nil, nil
}
