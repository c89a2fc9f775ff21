package calldata

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"operatorMonitor/internal/chain"
)

var (
	// ErrNotMiddlewareCall is returned when the transaction was not sent to the middleware.
	ErrNotMiddlewareCall = errors.New("transaction not sent to middleware")
	// ErrNoRegistrations is returned when the call carries no validators.
	ErrNoRegistrations = errors.New("no registrations in calldata")
)

// TxSource looks up transactions by hash.
type TxSource interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (chain.Transaction, error)
}

// Analysis links a registration transaction to its sender and validators.
type Analysis struct {
	Operator common.Address
	Decoded  *Decoded
}

// Analyzer inspects the transactions behind registry registrations.
type Analyzer struct {
	txs        TxSource
	decoder    *Decoder
	middleware common.Address
}

func NewAnalyzer(txs TxSource, middleware common.Address) (*Analyzer, error) {
	if txs == nil {
		return nil, fmt.Errorf("tx source is nil")
	}
	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Analyzer{txs: txs, decoder: decoder, middleware: middleware}, nil
}

// Analyze fetches the transaction and decodes its registerValidators calldata.
// The operator is the transaction sender.
func (a *Analyzer) Analyze(ctx context.Context, txHash common.Hash) (*Analysis, error) {
	tx, err := a.txs.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", txHash.Hex(), err)
	}
	if tx.To == nil || *tx.To != a.middleware {
		return nil, ErrNotMiddlewareCall
	}

	decoded, err := a.decoder.Decode(tx.Input)
	if err != nil {
		return nil, err
	}
	if len(decoded.Registrations) == 0 {
		return nil, ErrNoRegistrations
	}

	return &Analysis{Operator: tx.From, Decoded: decoded}, nil
}
