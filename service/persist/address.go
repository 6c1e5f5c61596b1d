package persist

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ZeroAddress is the all-zero Ethereum address
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// Address represents an EVM account address
type Address string

// Address returns the go-ethereum representation of the address
func (a Address) Address() common.Address {
	return common.HexToAddress(string(a))
}

// Checksum returns the canonical EIP-55 mixed-case encoding of the address
func (a Address) Checksum() Address {
	if a == "" {
		return a
	}
	return Address(a.Address().Hex())
}

// IsValid returns true if the address is a well-formed hex address
func (a Address) IsValid() bool {
	return common.IsHexAddress(string(a))
}

func (a Address) String() string {
	return string(a)
}

// ChainID represents the numeric identifier of an EVM network
type ChainID int64

// Hex returns the 0x-prefixed encoding used by the wallet RPC methods
func (c ChainID) Hex() string {
	return hexutil.EncodeUint64(uint64(c))
}

func (c ChainID) String() string {
	return fmt.Sprintf("%d", c)
}

// ChainIDFromHex parses a 0x-prefixed chain id as returned by eth_chainId
func ChainIDFromHex(s string) (ChainID, error) {
	n, err := hexutil.DecodeUint64(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return ChainID(n), nil
}
