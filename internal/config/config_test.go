package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/model"
)

const registryAddr = "0x2725F18FD97A99a3105C86331d253C431345CF30"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGISTRY_CONTRACT_ADDRESS", registryAddr)

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Network != "mainnet" || cfg.RPCURL != "https://eth.llamarpc.com" {
		t.Fatalf("network defaults mismatch: %s %s", cfg.Network, cfg.RPCURL)
	}
	if cfg.SlackChannel != "C091L7Q0ZJN" || !cfg.UseReconnection || cfg.ShowHistory {
		t.Fatalf("behavior defaults mismatch: %+v", cfg)
	}
	if cfg.ChunkSize != 50000 || cfg.MaxRetries != 3 || cfg.MaxEvents != 100 {
		t.Fatalf("fetch defaults mismatch: %+v", cfg)
	}
	if cfg.ReconnectBaseDelay != 30*time.Second || cfg.MaxReconnectAttempts != 0 {
		t.Fatalf("reconnect defaults mismatch: %s %d", cfg.ReconnectBaseDelay, cfg.MaxReconnectAttempts)
	}
	if cfg.PollInterval != 2*time.Second || cfg.RetryBase != time.Second || cfg.RedisTimeout != 5*time.Second {
		t.Fatalf("duration defaults mismatch: %+v", cfg)
	}
	if !cfg.EnableCalldataDecoding || cfg.EnableRedisStorage || cfg.RedisKeyPrefix != "validators_by_operator" {
		t.Fatalf("storage defaults mismatch: %+v", cfg)
	}
	ref, err := cfg.FromBlockRef()
	if err != nil || ref != model.LatestBlock() {
		t.Fatalf("from block mismatch: %v %v", ref, err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("NETWORK", "Holesky")
	t.Setenv("REGISTRY_CONTRACT_ADDRESS", registryAddr)
	t.Setenv("TAIYI_CONTRACT_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("EIGENLAYER_MIDDLEWARE_CONTRACT_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("FROM_BLOCK", "123")
	t.Setenv("SHOW_HISTORY", "true")
	t.Setenv("REDIS_TIMEOUT", "7")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "monitor")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if cfg.Network != "holesky" || cfg.RPCURL != "https://ethereum-holesky.publicnode.com" {
		t.Fatalf("network mismatch: %s %s", cfg.Network, cfg.RPCURL)
	}
	if cfg.RedisTimeout != 7*time.Second || cfg.ChunkSize != 1000 || !cfg.ShowHistory {
		t.Fatalf("env values mismatch: %+v", cfg)
	}
	if ref, _ := cfg.FromBlockRef(); ref != model.AtBlock(123) {
		t.Fatalf("from block mismatch: %v", ref)
	}
	if cfg.PostgresDSN != "postgres://postgres:secret@db:5432/monitor" {
		t.Fatalf("dsn mismatch: %s", cfg.PostgresDSN)
	}

	var kinds []string
	for _, inst := range cfg.Instances() {
		kinds = append(kinds, inst.Kind)
	}
	want := []string{contracts.KindRegistry, contracts.KindCoordinator, contracts.KindMiddleware}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("instances mismatch: %v", kinds)
	}
	if cfg.MiddlewareAddress().Hex() != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("middleware mismatch: %s", cfg.MiddlewareAddress().Hex())
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	content := []byte("registry-contract-address: " + registryAddr + "\nnetwork: devnet\nmax-events: 5\npoll-interval: 500ms\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-events", 100, "")
	if err := flags.Parse([]string{"--max-events=9"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Network != "devnet" || cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("file values mismatch: %+v", cfg)
	}
	if cfg.MaxEvents != 9 {
		t.Fatalf("flag should override file: %d", cfg.MaxEvents)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval mismatch: %s", cfg.PollInterval)
	}
}

func TestValidateErrors(t *testing.T) {
	base := Config{
		Network:      "mainnet",
		ChunkSize:    50000,
		PollInterval: time.Second,
		Contracts:    ContractAddresses{Registry: registryAddr},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}

	missing := base
	missing.Contracts.Registry = ""
	if err := missing.Validate(); !errors.Is(err, ErrMissingRegistry) {
		t.Fatalf("expected missing registry, got %v", err)
	}

	zero := base
	zero.Contracts.Registry = "0x0000000000000000000000000000000000000000"
	if err := zero.Validate(); !errors.Is(err, ErrMissingRegistry) {
		t.Fatalf("expected missing registry for zero address, got %v", err)
	}

	network := base
	network.Network = "sepolia"
	if err := network.Validate(); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("expected unknown network, got %v", err)
	}

	badAddr := base
	badAddr.Contracts.Escrow = "0x123"
	if err := badAddr.Validate(); err == nil {
		t.Fatalf("expected invalid address error")
	}

	chunk := base
	chunk.ChunkSize = 0
	if err := chunk.Validate(); err == nil {
		t.Fatalf("expected chunk size error")
	}

	from := base
	from.FromBlock = "yesterday"
	if err := from.Validate(); err == nil {
		t.Fatalf("expected from block error")
	}
}

func TestLookupNetwork(t *testing.T) {
	n, err := LookupNetwork("HOODI")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if n.Explorer != "https://hoodi.etherscan.io" {
		t.Fatalf("explorer mismatch: %s", n.Explorer)
	}
	if !reflect.DeepEqual(NetworkKeys(), []string{"devnet", "holesky", "hoodi", "mainnet"}) {
		t.Fatalf("keys mismatch: %v", NetworkKeys())
	}
}
