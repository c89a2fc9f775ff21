package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/model"
)

var (
	// ErrMissingRegistry is returned when no registry address is configured.
	ErrMissingRegistry = errors.New("REGISTRY_CONTRACT_ADDRESS is required")
	// ErrUnknownNetwork is returned for networks outside the supported table.
	ErrUnknownNetwork = errors.New("unsupported network")
)

// ContractAddresses holds the monitored contract addresses. Only the
// registry is required.
type ContractAddresses struct {
	Registry          string
	Coordinator       string
	Escrow            string
	Core              string
	Middleware        string
	AllocationManager string
}

// Instance is one configured contract.
type Instance struct {
	Name    string
	Kind    string
	Address string
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Network   string
	RPCURL    string
	Contracts ContractAddresses

	SlackBotToken      string
	SlackChannel       string
	SlackRatePerSecond float64

	ShowHistory bool
	FromBlock   string

	UseReconnection      bool
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	PollInterval         time.Duration
	PollFailureLimit     int

	ChunkSize        int
	MaxRetries       int
	RetryBase        time.Duration
	FetchConcurrency int
	MaxEvents        int

	EnableCalldataDecoding bool
	EnableRedisStorage     bool
	RedisURL               string
	RedisKeyPrefix         string
	RedisTimeout           time.Duration
	PostgresDSN            string

	EventsOut  string
	CursorPath string
	StatusAddr string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
// Keys are kebab-case; the matching environment variable is the key in
// upper snake case without a prefix (rpc-url -> RPC_URL).
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("taiyi-coordinator-contract-address", "TAIYI_COORDINATOR_CONTRACT_ADDRESS", "TAIYI_CONTRACT_ADDRESS"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	v.SetDefault("network", "mainnet")
	v.SetDefault("slack-channel", "C091L7Q0ZJN")
	v.SetDefault("slack-rate-per-second", 1.0)
	v.SetDefault("show-history", false)
	v.SetDefault("from-block", "")
	v.SetDefault("use-reconnection", true)
	v.SetDefault("reconnect-base-delay", "30s")
	v.SetDefault("max-reconnect-attempts", 0)
	v.SetDefault("poll-interval", "2s")
	v.SetDefault("poll-failure-limit", 10)
	v.SetDefault("chunk-size", 50000)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-base", "1s")
	v.SetDefault("fetch-concurrency", 4)
	v.SetDefault("max-events", 100)
	v.SetDefault("enable-calldata-decoding", true)
	v.SetDefault("enable-redis-storage", false)
	v.SetDefault("redis-url", "redis://localhost:6379")
	v.SetDefault("redis-key-prefix", "validators_by_operator")
	v.SetDefault("redis-timeout", "5s")
	v.SetDefault("status-addr", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Network: strings.ToLower(strings.TrimSpace(v.GetString("network"))),
		RPCURL:  strings.TrimSpace(v.GetString("rpc-url")),
		Contracts: ContractAddresses{
			Registry:          strings.TrimSpace(v.GetString("registry-contract-address")),
			Coordinator:       strings.TrimSpace(v.GetString("taiyi-coordinator-contract-address")),
			Escrow:            strings.TrimSpace(v.GetString("taiyi-escrow-contract-address")),
			Core:              strings.TrimSpace(v.GetString("taiyi-core-contract-address")),
			Middleware:        strings.TrimSpace(v.GetString("eigenlayer-middleware-contract-address")),
			AllocationManager: strings.TrimSpace(v.GetString("eigenlayer-allocation-manager-contract-address")),
		},
		SlackBotToken:          v.GetString("slack-bot-token"),
		SlackChannel:           v.GetString("slack-channel"),
		SlackRatePerSecond:     v.GetFloat64("slack-rate-per-second"),
		ShowHistory:            v.GetBool("show-history"),
		FromBlock:              strings.TrimSpace(v.GetString("from-block")),
		UseReconnection:        v.GetBool("use-reconnection"),
		MaxReconnectAttempts:   v.GetInt("max-reconnect-attempts"),
		PollFailureLimit:       v.GetInt("poll-failure-limit"),
		ChunkSize:              v.GetInt("chunk-size"),
		MaxRetries:             v.GetInt("max-retries"),
		FetchConcurrency:       v.GetInt("fetch-concurrency"),
		MaxEvents:              v.GetInt("max-events"),
		EnableCalldataDecoding: v.GetBool("enable-calldata-decoding"),
		EnableRedisStorage:     v.GetBool("enable-redis-storage"),
		RedisURL:               v.GetString("redis-url"),
		RedisKeyPrefix:         v.GetString("redis-key-prefix"),
		PostgresDSN:            postgresDSN(v),
		EventsOut:              v.GetString("events-out"),
		CursorPath:             v.GetString("cursor-path"),
		StatusAddr:             v.GetString("status-addr"),
		LogLevel:               v.GetString("log-level"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"reconnect-base-delay", &cfg.ReconnectBaseDelay},
		{"poll-interval", &cfg.PollInterval},
		{"retry-base", &cfg.RetryBase},
		{"redis-timeout", &cfg.RedisTimeout},
	}
	for _, d := range durations {
		val, err := getDuration(v, d.key)
		if err != nil {
			return Config{}, err
		}
		*d.dst = val
	}

	if cfg.RPCURL == "" {
		if n, err := LookupNetwork(cfg.Network); err == nil {
			cfg.RPCURL = n.DefaultRPC
		}
	}

	return cfg, nil
}

// Validate checks settings every command needs.
func (c Config) Validate() error {
	if _, err := LookupNetwork(c.Network); err != nil {
		return err
	}
	if c.Contracts.Registry == "" || isZeroAddress(c.Contracts.Registry) {
		return ErrMissingRegistry
	}
	for _, inst := range c.Instances() {
		if !common.IsHexAddress(inst.Address) {
			return fmt.Errorf("invalid %s address %q", inst.Name, inst.Address)
		}
	}
	if c.Contracts.Middleware != "" && !common.IsHexAddress(c.Contracts.Middleware) {
		return fmt.Errorf("invalid middleware address %q", c.Contracts.Middleware)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if _, err := c.FromBlockRef(); err != nil {
		return err
	}
	return nil
}

// NetworkInfo returns the configured network entry.
func (c Config) NetworkInfo() (Network, error) {
	return LookupNetwork(c.Network)
}

// Instances lists the configured contracts in monitoring order.
func (c Config) Instances() []Instance {
	candidates := []Instance{
		{Name: "registry", Kind: contracts.KindRegistry, Address: c.Contracts.Registry},
		{Name: "coordinator", Kind: contracts.KindCoordinator, Address: c.Contracts.Coordinator},
		{Name: "escrow", Kind: contracts.KindEscrow, Address: c.Contracts.Escrow},
		{Name: "core", Kind: contracts.KindCore, Address: c.Contracts.Core},
		{Name: "middleware", Kind: contracts.KindMiddleware, Address: c.Contracts.Middleware},
		{Name: "allocation-manager", Kind: contracts.KindAllocationManager, Address: c.Contracts.AllocationManager},
	}
	out := make([]Instance, 0, len(candidates))
	for _, inst := range candidates {
		if inst.Address == "" {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// MiddlewareAddress returns the middleware address, or the zero address
// when none is configured.
func (c Config) MiddlewareAddress() common.Address {
	if c.Contracts.Middleware == "" || !common.IsHexAddress(c.Contracts.Middleware) {
		return common.Address{}
	}
	return common.HexToAddress(c.Contracts.Middleware)
}

// FromBlockRef parses FromBlock. Empty means latest.
func (c Config) FromBlockRef() (model.BlockRef, error) {
	ref, err := model.ParseBlockRef(c.FromBlock)
	if err != nil {
		return model.BlockRef{}, fmt.Errorf("from block: %w", err)
	}
	return ref, nil
}

func isZeroAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) == (common.Address{})
}

// getDuration accepts Go durations ("30s") or bare integers in seconds.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// postgresDSN prefers POSTGRES_DSN and otherwise assembles one from the
// POSTGRES_HOST/PORT/USER/PASSWORD/DB parts when a host is set.
func postgresDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("postgres-dsn")); dsn != "" {
		return dsn
	}
	host := strings.TrimSpace(v.GetString("postgres-host"))
	if host == "" {
		return ""
	}
	port := v.GetString("postgres-port")
	if port == "" {
		port = "5432"
	}
	user := v.GetString("postgres-user")
	if user == "" {
		user = "postgres"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, v.GetString("postgres-password")),
		Host:   host + ":" + port,
		Path:   "/" + v.GetString("postgres-db"),
	}
	return u.String()
}
