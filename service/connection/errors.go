package connection

import (
	"errors"
	"fmt"

	"github.com/SplitFi/go-dappconn/service/persist"
)

// ErrNotConnected is returned when an operation needs a connected provider
// supporting raw RPC calls and none exists
var ErrNotConnected = errors.New("not connected to a provider supporting raw RPC calls")

// ErrSetErrorDeprecated is returned by SetError unconditionally. The method
// is retained only so that callers of the old surface fail with a clear
// message instead of silently diverging.
var ErrSetErrorDeprecated = errors.New("setting the connection error directly is deprecated and no longer supported")

// ErrInvalidChainID is an error that is returned when an operation receives a
// chain id that cannot identify a network
type ErrInvalidChainID struct {
	ChainID persist.ChainID
}

func (e ErrInvalidChainID) Error() string {
	return fmt.Sprintf("invalid chain id: %d", e.ChainID)
}

// ChainIDErrorKind distinguishes the two chain-id policy failures
type ChainIDErrorKind int

const (
	// ChainIDUnsupported marks a chain id absent from the configured
	// supported networks
	ChainIDUnsupported ChainIDErrorKind = iota
	// ChainIDNotConfigured marks a chain id with no configured read-only URL
	ChainIDNotConfigured
)

func (k ChainIDErrorKind) String() string {
	switch k {
	case ChainIDUnsupported:
		return "unsupported"
	case ChainIDNotConfigured:
		return "not configured"
	default:
		return "unknown"
	}
}

// ChainIDError reports an active chain id that falls outside the configured
// network policy. It surfaces through the view's Error field and is never
// returned from a method; a bad chain is an expected runtime condition, not a
// programmer error.
type ChainIDError struct {
	ChainID persist.ChainID
	Kind    ChainIDErrorKind
}

func (e ChainIDError) Error() string {
	switch e.Kind {
	case ChainIDNotConfigured:
		return fmt.Sprintf("chain id %d has no configured read-only URL", e.ChainID)
	default:
		return fmt.Sprintf("unsupported chain id: %d", e.ChainID)
	}
}
