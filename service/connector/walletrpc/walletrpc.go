// Package walletrpc connects to an external wallet over its JSON-RPC
// endpoint, the headless counterpart of a browser-extension wallet. Account
// and chain changes are observed by polling and pushed as updates.
package walletrpc

import (
	"context"
	"sync"
	"time"

	"github.com/SplitFi/go-dappconn/service/connector"
	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const defaultPollInterval = 4 * time.Second

// Connector speaks to a wallet's JSON-RPC endpoint
type Connector struct {
	url          string
	name         string
	priority     int
	pollInterval time.Duration

	mu       sync.Mutex
	client   *gethrpc.Client
	chainID  persist.ChainID
	accounts []persist.Address
	stopPoll context.CancelFunc
	onUpdate func(connector.Update)
}

// Option configures a Connector
type Option func(*Connector)

// WithName overrides the connector name
func WithName(name string) Option {
	return func(c *Connector) { c.name = name }
}

// WithPriority overrides the connector priority
func WithPriority(priority int) Option {
	return func(c *Connector) { c.priority = priority }
}

// WithPollInterval overrides how often the wallet is polled for account and
// chain changes
func WithPollInterval(interval time.Duration) Option {
	return func(c *Connector) { c.pollInterval = interval }
}

// New creates a wallet connector for an endpoint
func New(url string, opts ...Option) *Connector {
	c := &Connector{
		url:          url,
		name:         "wallet",
		priority:     2,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) Name() string  { return c.name }
func (c *Connector) Priority() int { return c.priority }

func (c *Connector) Provider() rpc.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	return c.client
}

func (c *Connector) ChainID() persist.ChainID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID
}

func (c *Connector) Accounts() []persist.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts
}

// ConnectEagerly reconnects to a wallet session that already granted account
// access. It issues eth_accounts, which never prompts; a wallet with no
// session simply reports no accounts and the connector stays inactive.
func (c *Connector) ConnectEagerly(ctx context.Context) error {
	return c.connect(ctx, false)
}

// Activate performs the user-facing handshake via eth_requestAccounts, which
// may prompt inside the wallet.
func (c *Connector) Activate(ctx context.Context) error {
	return c.connect(ctx, true)
}

func (c *Connector) connect(ctx context.Context, prompt bool) error {
	client, err := gethrpc.DialContext(ctx, c.url)
	if err != nil {
		return err
	}

	var accounts []persist.Address
	if prompt {
		accounts, err = rpc.RequestAccounts(ctx, client)
	} else {
		accounts, err = rpc.Accounts(ctx, client)
	}
	if err != nil {
		client.Close()
		return err
	}
	if !prompt && len(accounts) == 0 {
		// no prior session; stay inactive without an update
		client.Close()
		return nil
	}

	chainID, err := rpc.ChainID(ctx, client)
	if err != nil {
		client.Close()
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.stopPoll != nil {
		c.stopPoll()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.client = client
	c.chainID = chainID
	c.accounts = accounts
	c.stopPoll = cancel
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(connector.Update{ChainID: chainID, Accounts: accounts})
	}

	go c.poll(pollCtx, client)
	return nil
}

// poll watches the wallet for account and chain changes until the connector
// is deactivated
func (c *Connector) poll(ctx context.Context, client *gethrpc.Client) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		chainID, err := rpc.ChainID(ctx, client)
		if err != nil {
			logger.For(ctx).WithError(err).Debug("wallet poll failed")
			continue
		}
		accounts, err := rpc.Accounts(ctx, client)
		if err != nil {
			logger.For(ctx).WithError(err).Debug("wallet poll failed")
			continue
		}

		c.mu.Lock()
		if c.client != client {
			c.mu.Unlock()
			return
		}
		changed := chainID != c.chainID || !equalAccounts(accounts, c.accounts)
		c.chainID = chainID
		c.accounts = accounts
		onUpdate := c.onUpdate
		c.mu.Unlock()

		if changed && onUpdate != nil {
			onUpdate(connector.Update{ChainID: chainID, Accounts: accounts})
		}
	}
}

func (c *Connector) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.chainID = 0
	c.accounts = nil
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

func equalAccounts(a, b []persist.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
