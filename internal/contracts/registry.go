package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownKind is returned when configuring an instance of an unregistered kind.
	ErrUnknownKind = errors.New("unknown contract kind")
	// ErrNoEventTypes is returned when a kind declares no events.
	ErrNoEventTypes = errors.New("contract kind declares no events")
)

type instanceConfig struct {
	name    string
	kind    string
	address common.Address
}

// Registry maps contract kinds to configured instances.
type Registry struct {
	kinds     map[string]Kind
	instances []instanceConfig
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// DefaultRegistry returns a registry with every built-in kind registered.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, name := range kindOrder {
		kind, err := BuiltinKind(name)
		if err != nil {
			return nil, err
		}
		if err := r.Register(name, kind); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a contract kind under a name.
func (r *Registry) Register(name string, kind Kind) error {
	if name == "" {
		return fmt.Errorf("kind name is required")
	}
	if kind == nil {
		return fmt.Errorf("kind %s is nil", name)
	}
	r.kinds[name] = kind
	return nil
}

// Kinds returns the registered kind names.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for _, name := range kindOrder {
		if _, ok := r.kinds[name]; ok {
			names = append(names, name)
		}
	}
	for name := range r.kinds {
		if _, builtin := builtinKinds[name]; !builtin {
			names = append(names, name)
		}
	}
	return names
}

// Configure binds an address to a registered kind.
func (r *Registry) Configure(instance, kindName, address string) error {
	kind, ok := r.kinds[kindName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kindName)
	}
	if len(kind.EventTypes()) == 0 {
		return fmt.Errorf("%w: %s", ErrNoEventTypes, kindName)
	}
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address for %s: %q", instance, address)
	}
	r.instances = append(r.instances, instanceConfig{
		name:    instance,
		kind:    kindName,
		address: common.HexToAddress(address),
	})
	return nil
}

// Instantiate builds handles for every configured instance, in configuration
// order, all sharing the given log source.
func (r *Registry) Instantiate(source LogSource) []*Handle {
	handles := make([]*Handle, 0, len(r.instances))
	for _, inst := range r.instances {
		handles = append(handles, NewHandle(inst.name, inst.address, r.kinds[inst.kind], source))
	}
	return handles
}
