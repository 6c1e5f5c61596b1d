// Package connection reconciles the active connector, the configured network
// policy, and the read-only fallback into one coherent view, and provides the
// imperative connection actions.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/SplitFi/go-dappconn/service/connector"
	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
	ens "github.com/benny-conn/go-ens"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/exp/slices"
)

// codeChainNotAdded is the provider error code a wallet reports when asked to
// switch to a chain it does not know (EIP-3085)
const codeChainNotAdded = 4902

// Config is the network policy the client enforces
type Config struct {
	// Networks are the supported networks. A connected chain id outside this
	// list surfaces a ChainIDError of kind ChainIDUnsupported.
	Networks persist.NetworkList
	// ReadOnlyURLs maps chain ids to read-only RPC endpoints. A connected
	// chain id outside this set surfaces a ChainIDError of kind
	// ChainIDNotConfigured.
	ReadOnlyURLs map[persist.ChainID]string
	// ReadOnlyChainID selects the fallback network used when no connector is
	// active. Zero disables the fallback.
	ReadOnlyChainID persist.ChainID
	// PoolSize bounds the read-only provider pool; zero uses the default
	PoolSize int
}

// View is the derived, UI-facing connection state. It is recomputed from the
// registry on every read and holds no state of its own.
type View struct {
	Connector connector.Connector
	Provider  rpc.Provider
	ChainID   persist.ChainID
	Account   persist.Address
	Error     error
	Active    bool
	IsLoading bool
}

// readOnlyDialer resolves the fallback provider and chain id
type readOnlyDialer func(ctx context.Context) (rpc.Provider, persist.ChainID, error)

// Client is the connection facade
type Client struct {
	cfg      Config
	reg      *connector.Registry
	pool     *rpc.ReadOnlyPool
	readOnly readOnlyDialer
}

// Option configures a Client
type Option func(*Client)

// WithReadOnlyDialer overrides how the read-only fallback is resolved
func WithReadOnlyDialer(dial func(ctx context.Context) (rpc.Provider, persist.ChainID, error)) Option {
	return func(c *Client) { c.readOnly = dial }
}

// New creates a client over a connector registry
func New(cfg Config, reg *connector.Registry, opts ...Option) (*Client, error) {
	pool, err := rpc.NewReadOnlyPool(cfg.ReadOnlyURLs, cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, reg: reg, pool: pool}
	c.readOnly = c.dialReadOnly
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry returns the underlying connector registry
func (c *Client) Registry() *connector.Registry { return c.reg }

// View derives the current connection state. It is a pure function of the
// registry snapshot and the configured policy.
func (c *Client) View(ctx context.Context) View {
	state := c.reg.State()
	verr := c.currentError(state)

	v := View{
		Connector: state.Active,
		Error:     verr,
		Active:    state.Active != nil,
		IsLoading: state.Loading,
	}
	if state.Active != nil && len(state.Accounts) > 0 {
		v.Account = state.Accounts[0].Checksum()
	}

	var activeProvider rpc.Provider
	if state.Active != nil {
		activeProvider = state.Active.Provider()
	}
	if activeProvider != nil {
		v.Provider = activeProvider
		// an error masks the chain id so that consumers treat the
		// connection as unusable instead of continuing on a bad chain
		if verr == nil {
			v.ChainID = state.ChainID
		}
		return v
	}

	provider, chainID, err := c.readOnly(ctx)
	if err != nil {
		logger.For(ctx).WithError(err).Debug("no read-only fallback available")
		return v
	}
	v.Provider = provider
	v.ChainID = chainID
	return v
}

// Watch emits a fresh view on every registry state change until the context
// is canceled
func (c *Client) Watch(ctx context.Context) <-chan View {
	views := make(chan View)
	notify, unsubscribe := c.reg.Subscribe()

	go func() {
		defer close(views)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
			select {
			case <-ctx.Done():
				return
			case views <- c.View(ctx):
			}
		}
	}()
	return views
}

// Deactivate tears down the active connection
func (c *Client) Deactivate(ctx context.Context) error {
	return c.reg.Deactivate(ctx)
}

// SwitchNetwork asks the connected wallet to switch to another chain. When
// the wallet does not know the chain and a configured network with an RPC URL
// exists, a single follow-up add-chain request is issued; its failure is
// absorbed. The switch outcome itself is observed through subsequent
// connector updates.
func (c *Client) SwitchNetwork(ctx context.Context, chainID persist.ChainID) error {
	if chainID <= 0 {
		return ErrInvalidChainID{ChainID: chainID}
	}

	var provider rpc.Provider
	if state := c.reg.State(); state.Active != nil {
		provider = state.Active.Provider()
	}
	if provider == nil {
		return ErrNotConnected
	}

	err := provider.CallContext(ctx, nil, "wallet_switchEthereumChain", switchChainParam{ChainID: chainID.Hex()})
	if err == nil {
		return nil
	}

	if isChainNotAdded(err) {
		if network, ok := c.cfg.Networks.Get(chainID); ok && network.RPCURL != "" {
			if addErr := provider.CallContext(ctx, nil, "wallet_addEthereumChain", addChainParamFromNetwork(network)); addErr != nil {
				// known gap: the add attempt is best-effort and its failure
				// is not surfaced distinctly
				logger.For(ctx).WithError(addErr).Debugf("failed to add chain %d to wallet", chainID)
			}
		}
	}

	c.reg.RecordError(fmt.Errorf("failed to switch network to chain %d: %w", chainID, err))
	return nil
}

// SetError existed on the old surface for injecting an error into the view.
//
// Deprecated: it always fails; errors now flow exclusively from the registry
// and the network policy.
func (c *Client) SetError(err error) error {
	return ErrSetErrorDeprecated
}

// LookupAddress reverse-resolves the connected account's ENS name over the
// read-only fallback, falling back to the checksummed address itself
func (c *Client) LookupAddress(ctx context.Context) (string, error) {
	account := c.View(ctx).Account
	if account == "" {
		return "", ErrNotConnected
	}

	ro, err := c.pool.Get(ctx, c.cfg.ReadOnlyChainID)
	if err != nil {
		return account.String(), nil
	}

	resultChan := make(chan string)
	errChan := make(chan error)
	go func() {
		// ReverseResolve takes no context, so run it off to the side
		domain, err := ens.ReverseResolve(ro.Eth(), account.Address())
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- domain
	}()
	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errChan:
		logger.For(ctx).WithError(err).Debugf("failed to reverse resolve %s", account)
		return account.String(), nil
	case <-ctx.Done():
		return account.String(), ctx.Err()
	}
}

// currentError resolves the error the view exposes: a chain-id policy error
// when the active chain id falls outside configuration, else the most recent
// externally recorded error
func (c *Client) currentError(state connector.State) error {
	if state.ChainID != 0 {
		supported := c.cfg.Networks.ChainIDs()
		readOnlyIDs := make([]persist.ChainID, 0, len(c.cfg.ReadOnlyURLs))
		for id := range c.cfg.ReadOnlyURLs {
			readOnlyIDs = append(readOnlyIDs, id)
		}

		notConfigured := len(readOnlyIDs) > 0 && !slices.Contains(readOnlyIDs, state.ChainID)
		unsupported := len(supported) > 0 && !slices.Contains(supported, state.ChainID)
		// unsupported takes precedence when both hold
		if unsupported {
			return ChainIDError{ChainID: state.ChainID, Kind: ChainIDUnsupported}
		}
		if notConfigured {
			return ChainIDError{ChainID: state.ChainID, Kind: ChainIDNotConfigured}
		}
	}

	if n := len(state.Errors); n > 0 {
		return state.Errors[n-1]
	}
	return nil
}

func (c *Client) dialReadOnly(ctx context.Context) (rpc.Provider, persist.ChainID, error) {
	if c.cfg.ReadOnlyChainID == 0 {
		return nil, 0, nil
	}
	ro, err := c.pool.Get(ctx, c.cfg.ReadOnlyChainID)
	if err != nil {
		return nil, 0, err
	}
	return ro.Provider(), ro.ChainID, nil
}

func isChainNotAdded(err error) bool {
	var rpcErr gethrpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeChainNotAdded
}

type switchChainParam struct {
	ChainID string `json:"chainId"`
}

type nativeCurrencyParam struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type addChainParam struct {
	ChainID           string              `json:"chainId"`
	ChainName         string              `json:"chainName"`
	NativeCurrency    nativeCurrencyParam `json:"nativeCurrency"`
	RPCUrls           []string            `json:"rpcUrls"`
	BlockExplorerUrls []string            `json:"blockExplorerUrls,omitempty"`
}

func addChainParamFromNetwork(n persist.Network) addChainParam {
	return addChainParam{
		ChainID:   n.ChainID.Hex(),
		ChainName: n.Name,
		NativeCurrency: nativeCurrencyParam{
			Name:     n.NativeCurrency.Name,
			Symbol:   n.NativeCurrency.Symbol,
			Decimals: n.NativeCurrency.Decimals,
		},
		RPCUrls:           []string{n.RPCURL},
		BlockExplorerUrls: n.BlockExplorerURLs,
	}
}
