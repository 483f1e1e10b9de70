package config

import (
	"fmt"
	"sort"
)

// Network contains the static endpoints of a network where the fee module is
// deployed.
type Network struct {
	Name    string
	ChainID uint64
	// RPCURL is the default public JSON-RPC endpoint.
	RPCURL string
	// Explorer is the order explorer base URL, used to link the settlement.
	Explorer string
	// OrderBookAPI is the base URL of the order book for this network.
	OrderBookAPI string
	// TokenListAPI is the Blockscout v2 API used by the explorer token list
	// strategy. Empty when the network has no supported instance.
	TokenListAPI string
}

// SettlementURL returns the explorer link for the settlement account.
func (n Network) SettlementURL(settlement string) string {
	return fmt.Sprintf("%s/address/%s", n.Explorer, settlement)
}

// DefaultNetwork is used when none is selected.
const DefaultNetwork = "mainnet"

// Networks contains the known networks by name.
var Networks = map[string]Network{
	"mainnet": {
		ChainID:      1,
		RPCURL:       "https://eth.llamarpc.com",
		Explorer:     "https://explorer.cow.fi",
		OrderBookAPI: "https://api.cow.fi/mainnet",
		TokenListAPI: "https://eth.blockscout.com/api/v2",
	},
	"gnosis": {
		ChainID:      100,
		RPCURL:       "https://1rpc.io/gnosis",
		Explorer:     "https://explorer.cow.fi/gc",
		OrderBookAPI: "https://api.cow.fi/xdai",
		TokenListAPI: "https://gnosis.blockscout.com/api/v2",
	},
	"arbitrum": {
		ChainID:      42161,
		RPCURL:       "https://arb1.arbitrum.io/rpc",
		Explorer:     "https://explorer.cow.fi/arb1",
		OrderBookAPI: "https://api.cow.fi/arbitrum_one",
		TokenListAPI: "https://arbitrum.blockscout.com/api/v2",
	},
	"base": {
		ChainID:      8453,
		RPCURL:       "https://base.llamarpc.com",
		Explorer:     "https://explorer.cow.fi/base",
		OrderBookAPI: "https://api.cow.fi/base",
		TokenListAPI: "https://base.blockscout.com/api/v2",
	},
	"sepolia": {
		ChainID:      11155111,
		RPCURL:       "https://sepolia.drpc.org",
		Explorer:     "https://explorer.cow.fi/sepolia",
		OrderBookAPI: "https://api.cow.fi/sepolia",
		TokenListAPI: "https://eth-sepolia.blockscout.com/api/v2",
	},
	"avalanche": {
		ChainID:      43114,
		RPCURL:       "https://api.avax.network/ext/bc/C/rpc",
		Explorer:     "https://explorer.cow.fi/avax",
		OrderBookAPI: "https://api.cow.fi/avalanche",
	},
	"polygon": {
		ChainID:      137,
		RPCURL:       "https://polygon-rpc.com",
		Explorer:     "https://explorer.cow.fi/pol",
		OrderBookAPI: "https://api.cow.fi/polygon",
		TokenListAPI: "https://polygon.blockscout.com/api/v2",
	},
	"lens": {
		ChainID:      232,
		RPCURL:       "https://rpc.lens.xyz",
		Explorer:     "https://explorer.cow.fi/lens",
		OrderBookAPI: "https://api.cow.fi/lens",
	},
	"bnb": {
		ChainID:      56,
		RPCURL:       "https://bsc-dataseed.bnbchain.org",
		Explorer:     "https://explorer.cow.fi/bnb",
		OrderBookAPI: "https://api.cow.fi/bnb",
	},
	"linea": {
		ChainID:      59144,
		RPCURL:       "https://rpc.linea.build",
		Explorer:     "https://explorer.cow.fi/linea",
		OrderBookAPI: "https://api.cow.fi/linea",
	},
	"plasma": {
		ChainID:      9745,
		RPCURL:       "https://rpc.plasma.to",
		Explorer:     "https://explorer.cow.fi/plasma",
		OrderBookAPI: "https://api.cow.fi/plasma",
	},
}

// AvailableNetworks returns the sorted list of network names.
func AvailableNetworks() []string {
	names := make([]string, 0, len(Networks))
	for name := range Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NetworkByName returns the network called name.
func NetworkByName(name string) (Network, error) {
	n, ok := Networks[name]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q, available: %v", name, AvailableNetworks())
	}
	n.Name = name
	return n, nil
}
