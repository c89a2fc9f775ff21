package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"operatorMonitor/internal/storage"
)

const scanBatch = 100

// Store keeps each operator's validator pubkeys as a JSON list under
// "<prefix>:<lowercase operator address>".
type Store struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// Config configures the Redis connection.
type Config struct {
	URL     string
	Prefix  string
	Timeout time.Duration
}

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "validators_by_operator"
	}

	return &Store{client: client, prefix: prefix, timeout: cfg.Timeout, logger: logger.Named("redis")}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(operator common.Address) string {
	return s.prefix + ":" + storage.OperatorKey(operator)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// StoreOperatorValidators merges pubkeys into the operator's list. The
// read-merge-write runs under WATCH so concurrent writers do not lose keys.
func (s *Store) StoreOperatorValidators(ctx context.Context, operator common.Address, pubkeys []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.key(operator)
	var merged []string
	txf := func(tx *redis.Tx) error {
		existing, err := readList(ctx, tx, key)
		if err != nil {
			return err
		}
		merged = storage.MergeValidators(existing, pubkeys)
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("marshal validators: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			s.logger.Info("stored operator validators",
				zap.String("operator", storage.OperatorKey(operator)),
				zap.Int("added", len(pubkeys)),
				zap.Int("total", len(merged)),
			)
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("store validators for %s: too much contention", operator.Hex())
}

// GetOperatorValidators returns the operator's pubkeys, or an empty list.
func (s *Store) GetOperatorValidators(ctx context.Context, operator common.Address) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return readList(ctx, s.client, s.key(operator))
}

// GetAllOperators returns every operator mapping. Keys are enumerated with
// SCAN so large keyspaces do not block the server.
func (s *Store) GetAllOperators(ctx context.Context) (map[string][]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out := make(map[string][]string)
	iter := s.client.Scan(ctx, 0, s.prefix+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		list, err := readList(ctx, s.client, key)
		if err != nil {
			s.logger.Warn("skipping unreadable key", zap.String("key", key), zap.Error(err))
			continue
		}
		out[strings.TrimPrefix(key, s.prefix+":")] = list
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan operators: %w", err)
	}
	return out, nil
}

func readList(ctx context.Context, c redis.Cmdable, key string) ([]string, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return list, nil
}
