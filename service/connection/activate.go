package connection

import (
	"context"
	"errors"

	"github.com/SplitFi/go-dappconn/service/connector"
	"github.com/SplitFi/go-dappconn/service/logger"
	"github.com/SplitFi/go-dappconn/service/rpc"
)

// LegacyConnector is the connector shape from before the connector contract.
//
// Deprecated: implement connector.Connector instead.
type LegacyConnector interface {
	GetProvider() rpc.Provider
	Activate(ctx context.Context) error
}

type activateKind int

const (
	activateNone activateKind = iota
	activateProvider
	activateLegacy
	activateNamed
)

// ActivateInput selects how a connection is established: a raw provider
// handle, a deprecated legacy connector, or a connector registered by name.
// Construct it with WithProvider, WithLegacyConnector, or WithConnectorName.
type ActivateInput struct {
	kind     activateKind
	provider rpc.Provider
	legacy   LegacyConnector
	name     string
}

// WithProvider activates an already-connected raw provider
func WithProvider(p rpc.Provider) ActivateInput {
	return ActivateInput{kind: activateProvider, provider: p}
}

// WithLegacyConnector activates through the deprecated connector shape
//
// Deprecated: register a connector.Connector and use WithConnectorName.
func WithLegacyConnector(lc LegacyConnector) ActivateInput {
	return ActivateInput{kind: activateLegacy, legacy: lc}
}

// WithConnectorName activates the connector registered under a name
func WithConnectorName(name string) ActivateInput {
	return ActivateInput{kind: activateNamed, name: name}
}

// Activate establishes a connection from the given input by delegating to the
// registry's activation entry point
func (c *Client) Activate(ctx context.Context, input ActivateInput) error {
	switch input.kind {
	case activateProvider:
		return c.reg.ActivateConnector(ctx, connector.FromProvider(input.provider))
	case activateLegacy:
		// deprecated path: the legacy connector's own activation failure is
		// swallowed and whatever provider it yields, possibly nil, continues
		// down the provider path
		if err := input.legacy.Activate(ctx); err != nil {
			logger.For(ctx).WithError(err).Warn("legacy connector activation failed")
		}
		return c.reg.ActivateConnector(ctx, connector.FromProvider(input.legacy.GetProvider()))
	case activateNamed:
		return c.reg.Activate(ctx, input.name)
	default:
		return errors.New("empty activate input")
	}
}

// ActivateDefault activates the highest-priority registered connector, the
// headless counterpart of "connect the browser wallet"
func (c *Client) ActivateDefault(ctx context.Context) error {
	def, ok := c.reg.Default()
	if !ok {
		return errors.New("no connectors registered")
	}
	return c.reg.ActivateConnector(ctx, def)
}
