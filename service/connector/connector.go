// Package connector defines the uniform lifecycle surface for any wallet or
// provider integration and the registry that owns the active connection.
package connector

import (
	"context"

	"github.com/SplitFi/go-dappconn/service/persist"
	"github.com/SplitFi/go-dappconn/service/rpc"
)

// Connector is a pluggable source of a wallet or provider connection.
//
// A connector reports state changes exclusively through the callback
// registered with OnUpdate; the lifecycle methods only signal failure through
// their returned error.
type Connector interface {
	// Name identifies the connector within a registry
	Name() string

	// Priority orders simultaneously eligible connectors; the higher numeric
	// value wins.
	Priority() int

	// Provider returns the live provider handle, or nil while inactive
	Provider() rpc.Provider

	// ChainID returns the active chain id, zero while inactive
	ChainID() persist.ChainID

	// Accounts returns the active accounts, nil while inactive or when the
	// connection exposes none
	Accounts() []persist.Address

	// ConnectEagerly attempts a silent reconnection from a previously
	// persisted session. It must not prompt the user and resolves regardless
	// of success; failure is signaled only by the absence of a subsequent
	// Update.
	ConnectEagerly(ctx context.Context) error

	// Activate performs a user-facing connection handshake. It may prompt.
	// On success ChainID and Accounts become defined and the update callback
	// fires at least once.
	Activate(ctx context.Context) error

	// Deactivate releases the session; afterward ChainID and Accounts are
	// undefined.
	Deactivate(ctx context.Context) error

	// OnUpdate registers the callback invoked whenever the underlying wallet
	// or network changes
	OnUpdate(func(Update))
}

// Update is an immutable snapshot pushed by a connector whenever the
// underlying wallet or network changes. A disconnect is signaled by empty
// accounts.
type Update struct {
	ChainID  persist.ChainID
	Accounts []persist.Address
}
