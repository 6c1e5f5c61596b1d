// Package readonly exposes a configured read-only RPC endpoint through the
// connector contract. It never has accounts; it exists so that an
// application without a wallet still resolves a provider and chain id.
package readonly

import (
	"context"
	"sync"

	"github.com/SplitFi/go-dappconn/service/connector"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
)

// Connector is a read-only endpoint behind the connector contract
type Connector struct {
	url      string
	expected persist.ChainID

	mu       sync.Mutex
	ro       *rpc.ReadOnly
	onUpdate func(connector.Update)
}

// New creates a read-only connector for an endpoint. A non-zero chainID is
// verified against what the endpoint reports on dial.
func New(chainID persist.ChainID, url string) *Connector {
	return &Connector{url: url, expected: chainID}
}

func (c *Connector) Name() string { return "readonly" }

// Priority is the lowest of all connectors; any wallet wins over the
// read-only fallback.
func (c *Connector) Priority() int { return 0 }

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

func (c *Connector) Accounts() []persist.Address { return nil }

// ConnectEagerly dials the endpoint. Dialing a node never prompts, so the
// eager path and the interactive path are the same.
func (c *Connector) ConnectEagerly(ctx context.Context) error {
	return c.Activate(ctx)
}

func (c *Connector) Activate(ctx context.Context) error {
	ro, err := rpc.DialReadOnly(ctx, c.expected, c.url)
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
		onUpdate(connector.Update{ChainID: ro.ChainID})
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
