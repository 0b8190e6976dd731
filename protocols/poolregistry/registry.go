package poolregistry

import "github.com/ethereum/go-ethereum/common"

// Pool is the static metadata of a single pool: which tokens it pairs, at which fee,
// and optionally which price feed values its base token.
type Pool struct {
	ID      uint64         `json:"id"`
	Key     PoolKey        `json:"key"`
	Address common.Address `json:"address"`
	Token0  uint64         `json:"token0"`
	Token1  uint64         `json:"token1"`
	FeeBps  uint16         `json:"feeBps"`
	// OracleFeed prices Token0 in units of Token1. It is the zero address when the pool has no feed.
	OracleFeed common.Address `json:"oracleFeed,omitempty"`
}

// HasOracle reports whether the pool has a price feed configured.
func (p Pool) HasOracle() bool {
	return p.OracleFeed != (common.Address{})
}

// Other returns the pool's token opposite to tokenID, and false when tokenID is not in the pool.
func (p Pool) Other(tokenID uint64) (uint64, bool) {
	switch tokenID {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	}
	return 0, false
}

// PoolRegistry represents the complete state of the registry.
type PoolRegistry struct {
	Pools []Pool `json:"pools"`
}
