package indexer

import (
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedPoolRegistry defines the methods for accessing indexed pool registry data.
type IndexedPoolRegistry interface {
	GetByID(id uint64) (poolregistry.Pool, bool)
	GetByAddress(address common.Address) (poolregistry.Pool, bool)
	GetByPoolKey(key poolregistry.PoolKey) (poolregistry.Pool, bool)
	// GetByTokens returns every pool pairing a and b, in either order, sorted by ID.
	GetByTokens(a, b uint64) []poolregistry.Pool
	// GetByToken returns every pool containing token, sorted by ID.
	GetByToken(token uint64) []poolregistry.Pool
	All() []poolregistry.Pool
}
