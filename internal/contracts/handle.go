package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"operatorMonitor/internal/model"
)

// LogSource is the part of the chain gateway the handles query.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Handle is one monitored contract instance.
type Handle struct {
	instance string
	address  common.Address
	kind     Kind
	events   []string
	source   LogSource
}

// NewHandle binds a kind to an address.
func NewHandle(instance string, address common.Address, kind Kind, source LogSource) *Handle {
	return &Handle{
		instance: instance,
		address:  address,
		kind:     kind,
		events:   kind.EventTypes(),
		source:   source,
	}
}

// Name returns the contract kind name shown to users.
func (h *Handle) Name() string { return h.kind.Name() }

// Instance returns the configured instance name.
func (h *Handle) Instance() string { return h.instance }

func (h *Handle) Address() common.Address { return h.address }

// EventTypes returns the monitored event names in declaration order.
func (h *Handle) EventTypes() []string {
	return append([]string(nil), h.events...)
}

// Topic returns the topic0 hash of a monitored event.
func (h *Handle) Topic(event string) (common.Hash, bool) {
	return h.kind.Topic(event)
}

// DecodeLog turns a raw log into an event attributed to this contract.
func (h *Handle) DecodeLog(log types.Log) (model.ChainEvent, error) {
	name, args, err := h.kind.Decode(log)
	if err != nil {
		return model.ChainEvent{}, err
	}
	return model.ChainEvent{
		ContractName:    h.kind.Name(),
		ContractAddress: h.address,
		EventName:       name,
		BlockNumber:     log.BlockNumber,
		TxIndex:         log.TxIndex,
		TxHash:          log.TxHash,
		LogAddress:      log.Address,
		Args:            args,
	}, nil
}

// HistoricalEvents returns the decoded logs of one event type in [from, to].
// Logs that fail to decode are skipped.
func (h *Handle) HistoricalEvents(ctx context.Context, event string, from, to uint64) ([]model.ChainEvent, error) {
	topic, ok := h.kind.Topic(event)
	if !ok {
		return nil, fmt.Errorf("%s does not declare event %s", h.kind.Name(), event)
	}
	if h.source == nil {
		return nil, fmt.Errorf("%s has no log source", h.instance)
	}

	logs, err := h.source.FilterLogs(ctx, from, to, []common.Address{h.address}, []common.Hash{topic})
	if err != nil {
		return nil, err
	}

	events := make([]model.ChainEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := h.DecodeLog(log)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Lookup indexes handles by address for log attribution.
type Lookup map[common.Address]*Handle

// NewLookup builds an address index over handles. The first handle
// configured for an address wins.
func NewLookup(handles []*Handle) Lookup {
	l := make(Lookup, len(handles))
	for _, h := range handles {
		if _, ok := l[h.address]; !ok {
			l[h.address] = h
		}
	}
	return l
}

// Attribute sets the contract identity of an event from its log address.
// Addresses compare as bytes, so checksum casing does not matter.
func (l Lookup) Attribute(ev model.ChainEvent) model.ChainEvent {
	if h, ok := l[ev.LogAddress]; ok {
		ev.ContractName = h.Name()
		ev.ContractAddress = h.address
		return ev
	}
	ev.ContractName = model.UnknownContract
	ev.ContractAddress = ev.LogAddress
	return ev
}
