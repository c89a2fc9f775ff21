package model

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// UnknownContract names events whose log address matches no configured contract.
const UnknownContract = "Unknown"

// ChainEvent is a decoded contract event attributed to a monitored contract.
type ChainEvent struct {
	ContractName    string
	ContractAddress common.Address
	EventName       string
	BlockNumber     uint64
	TxIndex         uint
	TxHash          common.Hash
	LogAddress      common.Address
	Args            map[string]interface{}
}

// Less orders events by block number, then transaction index.
func (e ChainEvent) Less(other ChainEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.TxIndex < other.TxIndex
}

// Arg returns the named argument, if present.
func (e ChainEvent) Arg(name string) (interface{}, bool) {
	if e.Args == nil {
		return nil, false
	}
	v, ok := e.Args[name]
	return v, ok
}

// SortEvents sorts events in place by (block number, tx index), keeping
// the relative order of events with equal keys.
func SortEvents(events []ChainEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// Record converts the event into its storage representation.
func (e ChainEvent) Record(chainID uint64, observedAt string) EventRecord {
	args := make(map[string]interface{}, len(e.Args))
	for k, v := range e.Args {
		args[k] = JSONValue(v)
	}
	return EventRecord{
		ChainID:         chainID,
		ContractName:    e.ContractName,
		ContractAddress: e.ContractAddress.Hex(),
		EventName:       e.EventName,
		BlockNumber:     e.BlockNumber,
		TxIndex:         uint64(e.TxIndex),
		TxHash:          e.TxHash.Hex(),
		LogAddress:      e.LogAddress.Hex(),
		Args:            args,
		ObservedAt:      observedAt,
	}
}
