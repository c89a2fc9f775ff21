package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	network   string

	mu      sync.RWMutex
	chainID *big.Int
}

// Transaction is the subset of a transaction the monitor inspects.
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Input []byte
}

// Health reports the node status as seen by the client.
type Health struct {
	Connected    bool
	CurrentBlock uint64
	ChainID      uint64
	Network      string
	Err          error
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL, network string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		network:   network,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID, cached after the first successful call.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	cached := c.chainID
	c.mu.RUnlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.chainID = new(big.Int).Set(id)
	c.mu.Unlock()

	return id, nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// IsConnected reports whether the node answers a block number query.
func (c *Client) IsConnected(ctx context.Context) bool {
	_, err := c.ethClient.BlockNumber(ctx)
	return err == nil
}

// Health queries the current block and chain ID.
func (c *Client) Health(ctx context.Context) Health {
	h := Health{Network: c.network}

	block, err := c.LatestBlockNumber(ctx)
	if err != nil {
		h.Err = err
		return h
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		h.Err = err
		return h
	}

	h.Connected = true
	h.CurrentBlock = block
	h.ChainID = id.Uint64()
	return h
}

// TransactionByHash fetches a transaction and recovers its sender.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (Transaction, error) {
	tx, _, err := c.ethClient.TransactionByHash(ctx, hash)
	if err != nil {
		return Transaction{}, err
	}

	chainID := tx.ChainId()
	if chainID == nil || chainID.Sign() == 0 {
		chainID, err = c.ChainID(ctx)
		if err != nil {
			return Transaction{}, fmt.Errorf("chain id: %w", err)
		}
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return Transaction{}, fmt.Errorf("recover sender: %w", err)
	}

	return Transaction{
		Hash:  tx.Hash(),
		From:  from,
		To:    tx.To(),
		Input: tx.Data(),
	}, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// NewFilter installs a provider-side log filter and returns its ID.
// A nil fromBlock starts the filter at the chain head.
func (c *Client) NewFilter(ctx context.Context, fromBlock *uint64, address common.Address, topic0 common.Hash) (string, error) {
	arg := map[string]interface{}{
		"address": address,
		"topics":  []interface{}{topic0},
	}
	if fromBlock == nil {
		arg["fromBlock"] = "latest"
	} else {
		arg["fromBlock"] = hexutil.EncodeUint64(*fromBlock)
	}

	var id string
	if err := c.rpcClient.CallContext(ctx, &id, "eth_newFilter", arg); err != nil {
		return "", err
	}
	return id, nil
}

// FilterChanges returns the logs accumulated by a filter since the last poll.
func (c *Client) FilterChanges(ctx context.Context, id string) ([]types.Log, error) {
	var logs []types.Log
	if err := c.rpcClient.CallContext(ctx, &logs, "eth_getFilterChanges", id); err != nil {
		return nil, err
	}
	return logs, nil
}

// UninstallFilter removes a filter from the node.
func (c *Client) UninstallFilter(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := c.rpcClient.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
		return false, err
	}
	return ok, nil
}
