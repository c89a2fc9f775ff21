package config

import (
	"fmt"
	"sort"
	"strings"
)

// Network describes a supported chain.
type Network struct {
	Key        string
	Name       string
	ChainID    uint64
	DefaultRPC string
	Explorer   string
}

var networks = map[string]Network{
	"mainnet": {
		Key:        "mainnet",
		Name:       "Ethereum Mainnet",
		ChainID:    1,
		DefaultRPC: "https://eth.llamarpc.com",
		Explorer:   "https://etherscan.io",
	},
	"holesky": {
		Key:        "holesky",
		Name:       "Holesky Testnet",
		ChainID:    17000,
		DefaultRPC: "https://ethereum-holesky.publicnode.com",
		Explorer:   "https://holesky.etherscan.io",
	},
	"hoodi": {
		Key:        "hoodi",
		Name:       "Hoodi Testnet",
		ChainID:    560048,
		DefaultRPC: "https://ethereum-hoodi-rpc.publicnode.com",
		Explorer:   "https://hoodi.etherscan.io",
	},
	"devnet": {
		Key:        "devnet",
		Name:       "Local Devnet",
		ChainID:    1337,
		DefaultRPC: "http://localhost:8545",
		Explorer:   "http://localhost:8545",
	},
}

// LookupNetwork returns the network for a case-insensitive key.
func LookupNetwork(key string) (Network, error) {
	n, ok := networks[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Network{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownNetwork, key, strings.Join(NetworkKeys(), ", "))
	}
	return n, nil
}

// NetworkKeys lists the supported network keys.
func NetworkKeys() []string {
	keys := make([]string, 0, len(networks))
	for k := range networks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
