package persist

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ChainIDEthereum represents the Ethereum mainnet
	ChainIDEthereum ChainID = 1
	// ChainIDOptimism represents the Optimism mainnet
	ChainIDOptimism ChainID = 10
	// ChainIDPolygon represents the Polygon/Matic mainnet
	ChainIDPolygon ChainID = 137
	// ChainIDBase represents the Base mainnet
	ChainIDBase ChainID = 8453
	// ChainIDArbitrum represents the Arbitrum One mainnet
	ChainIDArbitrum ChainID = 42161
)

// NativeCurrency represents the native currency of a network
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network represents a configured network entry
type Network struct {
	ChainID           ChainID        `json:"chain_id"`
	Name              string         `json:"name"`
	RPCURL            string         `json:"rpc_url,omitempty"`
	NativeCurrency    NativeCurrency `json:"native_currency"`
	BlockExplorerURLs []string       `json:"block_explorer_urls,omitempty"`
}

// NetworkList is an ordered list of configured networks
type NetworkList []Network

// Get returns the configured network for a chain id
func (l NetworkList) Get(chainID ChainID) (Network, bool) {
	for _, n := range l {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// ChainIDs returns the chain ids of the configured networks in order
func (l NetworkList) ChainIDs() []ChainID {
	ids := make([]ChainID, len(l))
	for i, n := range l {
		ids[i] = n.ChainID
	}
	return ids
}

// DefaultNetworks are the networks the library knows out of the box. RPC URLs
// are deliberately left empty; they come from configuration.
var DefaultNetworks = NetworkList{
	{
		ChainID:           ChainIDEthereum,
		Name:              "Ethereum",
		NativeCurrency:    NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		BlockExplorerURLs: []string{"https://etherscan.io"},
	},
	{
		ChainID:           ChainIDOptimism,
		Name:              "Optimism",
		NativeCurrency:    NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		BlockExplorerURLs: []string{"https://optimistic.etherscan.io"},
	},
	{
		ChainID:           ChainIDPolygon,
		Name:              "Polygon",
		NativeCurrency:    NativeCurrency{Name: "Matic", Symbol: "MATIC", Decimals: 18},
		BlockExplorerURLs: []string{"https://polygonscan.com"},
	},
	{
		ChainID:           ChainIDBase,
		Name:              "Base",
		NativeCurrency:    NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		BlockExplorerURLs: []string{"https://basescan.org"},
	},
	{
		ChainID:           ChainIDArbitrum,
		Name:              "Arbitrum One",
		NativeCurrency:    NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		BlockExplorerURLs: []string{"https://arbiscan.io"},
	},
}

// ParseReadOnlyURLs parses a "chainID=url" comma separated list, the format
// used by the READONLY_RPC_URLS environment variable
func ParseReadOnlyURLs(s string) (map[ChainID]string, error) {
	urls := map[ChainID]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid read-only URL entry %q, expected chainID=url", pair)
		}
		chainID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in read-only URL entry %q: %w", pair, err)
		}
		urls[ChainID(chainID)] = strings.TrimSpace(url)
	}
	return urls, nil
}

// ErrNetworkNotFound is an error that is returned when no network is configured for a chain id
type ErrNetworkNotFound struct {
	ChainID ChainID
}

func (e ErrNetworkNotFound) Error() string {
	return fmt.Sprintf("no network configured for chain id %d", e.ChainID)
}
