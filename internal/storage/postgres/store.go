package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"operatorMonitor/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS operator_validators (
	id BIGSERIAL,
	operator_address TEXT NOT NULL,
	pubkey TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (operator_address, pubkey)
);
CREATE TABLE IF NOT EXISTS monitor_state (
	name TEXT PRIMARY KEY,
	last_seen_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for operator validators and the
// monitor cursor.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// StoreOperatorValidators inserts pubkeys not yet recorded for the operator.
func (s *Store) StoreOperatorValidators(ctx context.Context, operator common.Address, pubkeys []string) error {
	pubkeys = storage.MergeValidators(nil, pubkeys)
	if len(pubkeys) == 0 {
		return nil
	}
	key := storage.OperatorKey(operator)

	batch := &pgx.Batch{}
	for _, pubkey := range pubkeys {
		batch.Queue(`
			INSERT INTO operator_validators (operator_address, pubkey, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (operator_address, pubkey) DO NOTHING
		`, key, strings.ToLower(pubkey))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pubkeys {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetOperatorValidators returns pubkeys in insertion order.
func (s *Store) GetOperatorValidators(ctx context.Context, operator common.Address) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pubkey FROM operator_validators
		WHERE operator_address = $1
		ORDER BY id
	`, storage.OperatorKey(operator))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var pubkey string
		if err := rows.Scan(&pubkey); err != nil {
			return nil, err
		}
		out = append(out, pubkey)
	}
	return out, rows.Err()
}

// GetAllOperators returns every operator mapping.
func (s *Store) GetAllOperators(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT operator_address, pubkey FROM operator_validators
		ORDER BY operator_address, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var operator, pubkey string
		if err := rows.Scan(&operator, &pubkey); err != nil {
			return nil, err
		}
		out[operator] = append(out[operator], pubkey)
	}
	return out, rows.Err()
}

// LoadState returns last_seen_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_seen_block FROM monitor_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_seen_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO monitor_state (name, last_seen_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seen_block = EXCLUDED.last_seen_block, updated_at = now()
	`, name, int64(block))
	return err
}

// Cursor binds the state row for name to the monitor's cursor interface.
func (s *Store) Cursor(name string) *Cursor {
	return &Cursor{store: s, name: name}
}

type Cursor struct {
	store *Store
	name  string
}

func (c *Cursor) Load(ctx context.Context) (uint64, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *Cursor) Save(ctx context.Context, block uint64) error {
	return c.store.SaveState(ctx, c.name, block)
}
