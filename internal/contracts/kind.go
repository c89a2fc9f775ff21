package contracts

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	errNoTopics     = errors.New("log has no topics")
	errUnknownTopic = errors.New("topic0 does not match a monitored event")
)

// Kind describes one contract kind: the events it declares and how to
// decode their logs.
type Kind interface {
	Name() string
	EventTypes() []string
	Topic(event string) (common.Hash, bool)
	Decode(log types.Log) (string, map[string]interface{}, error)
}

// ABIKind is a Kind backed by a static ABI.
type ABIKind struct {
	name    string
	events  []string
	abi     abi.ABI
	byTopic map[common.Hash]abi.Event
}

// NewABIKind builds a kind from a parsed ABI restricted to the given events.
func NewABIKind(name string, contractABI abi.ABI, events []string) (*ABIKind, error) {
	k := &ABIKind{
		name:    name,
		events:  append([]string(nil), events...),
		abi:     contractABI,
		byTopic: make(map[common.Hash]abi.Event, len(events)),
	}
	for _, eventName := range events {
		ev, ok := contractABI.Events[eventName]
		if !ok {
			return nil, fmt.Errorf("event %s not found in %s abi", eventName, k.name)
		}
		k.byTopic[ev.ID] = ev
	}
	return k, nil
}

// BuiltinKind returns one of the statically known contract kinds.
func BuiltinKind(name string) (*ABIKind, error) {
	entry, ok := builtinKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	parsed, err := BuiltinABI(name)
	if err != nil {
		return nil, err
	}
	return NewABIKind(name, parsed, entry.events)
}

func (k *ABIKind) Name() string { return k.name }

func (k *ABIKind) EventTypes() []string {
	return append([]string(nil), k.events...)
}

func (k *ABIKind) Topic(event string) (common.Hash, bool) {
	ev, ok := k.abi.Events[event]
	if !ok {
		return common.Hash{}, false
	}
	if _, monitored := k.byTopic[ev.ID]; !monitored {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// ABI returns the underlying contract ABI.
func (k *ABIKind) ABI() abi.ABI { return k.abi }

// Decode unpacks indexed and non-indexed fields of a log into an args map.
// Tuples become maps keyed by their ABI component names.
func (k *ABIKind) Decode(log types.Log) (string, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, errNoTopics
	}
	ev, ok := k.byTopic[log.Topics[0]]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", errUnknownTopic, log.Topics[0].Hex())
	}

	args := make(map[string]interface{}, len(ev.Inputs))
	if err := ev.Inputs.UnpackIntoMap(args, log.Data); err != nil {
		return "", nil, fmt.Errorf("unpack %s data: %w", ev.Name, err)
	}

	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return "", nil, fmt.Errorf("parse %s topics: %w", ev.Name, err)
	}

	for _, input := range ev.Inputs {
		if v, ok := args[input.Name]; ok {
			args[input.Name] = normalize(input.Type, v)
		}
	}

	return ev.Name, args, nil
}

func normalize(t abi.Type, v interface{}) interface{} {
	switch t.T {
	case abi.TupleTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return v
		}
		out := make(map[string]interface{}, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			field := rv.FieldByName(abi.ToCamelCase(t.TupleRawNames[i]))
			if !field.IsValid() {
				continue
			}
			out[t.TupleRawNames[i]] = normalize(*elem, field.Interface())
		}
		return out
	case abi.SliceTy, abi.ArrayTy:
		if t.Elem == nil || t.Elem.T != abi.TupleTy {
			return v
		}
		rv := reflect.ValueOf(v)
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(*t.Elem, rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}
