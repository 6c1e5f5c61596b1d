package connector

import (
	"context"
	"errors"
	"sync"

	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
)

// ErrNilProvider is returned when a provider connector is activated without a
// provider handle
var ErrNilProvider = errors.New("no provider to activate")

// providerConnector adapts an already-connected raw provider handle to the
// Connector contract
type providerConnector struct {
	mu       sync.Mutex
	provider rpc.Provider
	chainID  persist.ChainID
	accounts []persist.Address
	active   bool
	onUpdate func(Update)
}

// FromProvider wraps a raw provider as a connector named "injected". The
// provider is assumed to already be connected; activation only reads its
// chain id and accounts.
func FromProvider(p rpc.Provider) Connector {
	return &providerConnector{provider: p}
}

func (c *providerConnector) Name() string  { return "injected" }
func (c *providerConnector) Priority() int { return 0 }

func (c *providerConnector) Provider() rpc.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	return c.provider
}

func (c *providerConnector) ChainID() persist.ChainID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID
}

func (c *providerConnector) Accounts() []persist.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts
}

func (c *providerConnector) ConnectEagerly(ctx context.Context) error {
	return c.Activate(ctx)
}

func (c *providerConnector) Activate(ctx context.Context) error {
	if c.provider == nil {
		return ErrNilProvider
	}

	chainID, err := rpc.ChainID(ctx, c.provider)
	if err != nil {
		return err
	}
	accounts, err := rpc.Accounts(ctx, c.provider)
	if err != nil {
		// a read-only provider has no account surface
		logger.For(ctx).WithError(err).Debug("injected provider exposes no accounts")
		accounts = nil
	}

	c.mu.Lock()
	c.active = true
	c.chainID = chainID
	c.accounts = accounts
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(Update{ChainID: chainID, Accounts: accounts})
	}
	return nil
}

func (c *providerConnector) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	c.active = false
	c.chainID = 0
	c.accounts = nil
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(Update{})
	}
	return nil
}

func (c *providerConnector) OnUpdate(fn func(Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}
