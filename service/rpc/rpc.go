package rpc

import (
	"context"
	"fmt"

	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Provider is the raw JSON-RPC send capability through which calls reach a
// wallet or a node. go-ethereum's *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// ReadOnly is a dialed read-only endpoint for a single network
type ReadOnly struct {
	ChainID persist.ChainID
	URL     string

	client *gethrpc.Client
	eth    *ethclient.Client
}

// DialReadOnly dials a read-only endpoint and verifies its chain id. A zero
// expected chain id skips the verification and adopts whatever the node
// reports.
func DialReadOnly(ctx context.Context, expected persist.ChainID, url string) (*ReadOnly, error) {
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial read-only endpoint %s: %w", url, err)
	}

	chainID, err := ChainID(ctx, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	if expected != 0 && chainID != expected {
		client.Close()
		return nil, fmt.Errorf("read-only endpoint %s reports chain id %d, expected %d", url, chainID, expected)
	}

	return &ReadOnly{
		ChainID: chainID,
		URL:     url,
		client:  client,
		eth:     ethclient.NewClient(client),
	}, nil
}

// Provider returns the raw send capability of the endpoint
func (r *ReadOnly) Provider() Provider {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client
}

// Eth returns the typed go-ethereum client for the endpoint
func (r *ReadOnly) Eth() *ethclient.Client {
	if r == nil {
		return nil
	}
	return r.eth
}

// Close releases the underlying connection
func (r *ReadOnly) Close() {
	if r != nil && r.client != nil {
		r.client.Close()
	}
}

// ChainID fetches the network's chain id over the provider
func ChainID(ctx context.Context, p Provider) (persist.ChainID, error) {
	var raw string
	if err := p.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	return persist.ChainIDFromHex(raw)
}

// Accounts fetches the unlocked accounts over the provider without prompting
func Accounts(ctx context.Context, p Provider) ([]persist.Address, error) {
	var raw []string
	if err := p.CallContext(ctx, &raw, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	return toAddresses(raw), nil
}

// RequestAccounts asks the wallet for account access. Unlike Accounts this
// may prompt the user.
func RequestAccounts(ctx context.Context, p Provider) ([]persist.Address, error) {
	var raw []string
	if err := p.CallContext(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("failed to request accounts: %w", err)
	}
	return toAddresses(raw), nil
}

func toAddresses(raw []string) []persist.Address {
	addresses := make([]persist.Address, len(raw))
	for i, r := range raw {
		addresses[i] = persist.Address(r)
	}
	return addresses
}
