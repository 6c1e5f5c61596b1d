// Package eoa implements a headless connector backed by a locally held
// externally-owned-account private key. The account is derived from the key;
// the provider comes from a configured RPC endpoint.
package eoa

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync"

	"github.com/SplitFi/go-dappconn/service/connector"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
	"github.com/ethereum/go-ethereum/crypto"
)

// Connector is a private-key-backed connector
type Connector struct {
	key     *ecdsa.PrivateKey
	account persist.Address
	url     string

	mu       sync.Mutex
	ro       *rpc.ReadOnly
	onUpdate func(connector.Update)
}

// New creates a connector from a hex-encoded private key and an RPC URL
func New(privateKeyHex string, rpcURL string) (*Connector, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, err
	}
	return &Connector{
		key:     key,
		account: persist.Address(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		url:     rpcURL,
	}, nil
}

func (c *Connector) Name() string  { return "eoa" }
func (c *Connector) Priority() int { return 1 }

// Account returns the address derived from the private key. It is defined
// even while the connector is inactive.
func (c *Connector) Account() persist.Address { return c.account }

// Key returns the private key for signing
func (c *Connector) Key() *ecdsa.PrivateKey { return c.key }

func (c *Connector) Provider() rpc.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ro == nil {
		return nil
	}
	return c.ro.Provider()
}

func (c *Connector) ChainID() persist.ChainID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ro == nil {
		return 0
	}
	return c.ro.ChainID
}

func (c *Connector) Accounts() []persist.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ro == nil {
		return nil
	}
	return []persist.Address{c.account}
}

// ConnectEagerly dials the endpoint. A local key never prompts, so the eager
// path and the interactive path are the same.
func (c *Connector) ConnectEagerly(ctx context.Context) error {
	return c.Activate(ctx)
}

func (c *Connector) Activate(ctx context.Context) error {
	ro, err := rpc.DialReadOnly(ctx, 0, c.url)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.ro != nil {
		c.ro.Close()
	}
	c.ro = ro
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(connector.Update{ChainID: ro.ChainID, Accounts: []persist.Address{c.account}})
	}
	return nil
}

func (c *Connector) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if c.ro != nil {
		c.ro.Close()
		c.ro = nil
	}
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(connector.Update{})
	}
	return nil
}

func (c *Connector) OnUpdate(fn func(connector.Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}
