package poolregistry

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrIdenticalAddresses is returned when both sides of a pair are the same token.
	ErrIdenticalAddresses = errors.New("identical token addresses")
	// ErrZeroAddress is returned when a pair contains the zero address.
	ErrZeroAddress = errors.New("zero token address")
)

// PoolKey identifies a pool by its unordered token pair and fee tier.
type PoolKey [32]byte

// Hex returns the 0x-prefixed hex encoding of the key.
func (k PoolKey) Hex() string {
	return hexutil.Encode(k[:])
}

func (k PoolKey) String() string {
	return k.Hex()
}

func (k PoolKey) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

func (k *PoolKey) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("PoolKey", input, k[:])
}

// SortTokens returns a and b in canonical (ascending byte) order.
func SortTokens(a, b common.Address) (token0, token1 common.Address, err error) {
	if a == b {
		return common.Address{}, common.Address{}, ErrIdenticalAddresses
	}
	token0, token1 = a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		token0, token1 = b, a
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroAddress
	}
	return token0, token1, nil
}

// NewPoolKey returns keccak256(token0 ‖ token1 ‖ uint16be(feeBps)) for the sorted pair,
// so NewPoolKey(a, b, f) == NewPoolKey(b, a, f).
func NewPoolKey(a, b common.Address, feeBps uint16) (PoolKey, error) {
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return PoolKey{}, err
	}
	var fee [2]byte
	binary.BigEndian.PutUint16(fee[:], feeBps)
	return PoolKey(crypto.Keccak256Hash(token0[:], token1[:], fee[:])), nil
}

// PairAddress computes the CREATE2 address of a Uniswap-V2 style pair deployed by factory.
func PairAddress(factory common.Address, initCodeHash common.Hash, a, b common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(token0[:], token1[:])
	return crypto.CreateAddress2(factory, salt, initCodeHash[:]), nil
}
