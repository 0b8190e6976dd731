package indexer

import (
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
)

// Indexer builds IndexedUniswapV2 views; it satisfies chains.UniswapV2Indexer.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index builds an indexed view of pools.
func (i *Indexer) Index(pools []uniswapv2.Pool) IndexedUniswapV2 {
	return NewIndexableUniswapV2System(pools)
}

// IndexableUniswapV2System answers ID lookups over a reserve snapshot.
// Returned pools are clones, so callers may simulate swaps on them freely.
type IndexableUniswapV2System struct {
	byID map[uint64]int
	all  []uniswapv2.Pool
}

// NewIndexableUniswapV2System indexes pools. Later duplicates of an ID win.
func NewIndexableUniswapV2System(pools []uniswapv2.Pool) *IndexableUniswapV2System {
	byID := make(map[uint64]int, len(pools))
	all := make([]uniswapv2.Pool, 0, len(pools))
	for _, p := range pools {
		if i, dup := byID[p.ID]; dup {
			all[i] = p.Clone()
			continue
		}
		byID[p.ID] = len(all)
		all = append(all, p.Clone())
	}
	return &IndexableUniswapV2System{byID: byID, all: all}
}

// GetByID retrieves a pool by its unique ID.
func (s *IndexableUniswapV2System) GetByID(id uint64) (uniswapv2.Pool, bool) {
	i, ok := s.byID[id]
	if !ok {
		return uniswapv2.Pool{}, false
	}
	return s.all[i].Clone(), true
}

// All returns a copy of every pool in the snapshot.
func (s *IndexableUniswapV2System) All() []uniswapv2.Pool {
	out := make([]uniswapv2.Pool, len(s.all))
	for i, p := range s.all {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of distinct pools.
func (s *IndexableUniswapV2System) Len() int {
	return len(s.all)
}
