package indexer

import uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"

// IndexedUniswapV2 is a read-only view over one reserve snapshot.
type IndexedUniswapV2 interface {
	GetByID(id uint64) (uniswapv2.Pool, bool)
	All() []uniswapv2.Pool
	Len() int
}
