package indexer

import (
	"slices"

	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed pool registry from the full registry view.
func (i *Indexer) Index(view poolregistry.PoolRegistry) IndexedPoolRegistry {
	return NewIndexablePoolRegistry(view)
}

type pairKey [2]uint64

func newPairKey(a, b uint64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// IndexablePoolRegistry provides fast, indexed access to pool registry data.
type IndexablePoolRegistry struct {
	byID      map[uint64]poolregistry.Pool
	byKey     map[poolregistry.PoolKey]poolregistry.Pool
	byAddress map[common.Address]poolregistry.Pool
	byPair    map[pairKey][]poolregistry.Pool
	byToken   map[uint64][]poolregistry.Pool
	all       []poolregistry.Pool
}

// NewIndexablePoolRegistry creates a new indexed pool registry from the view.
func NewIndexablePoolRegistry(view poolregistry.PoolRegistry) *IndexablePoolRegistry {
	pools := slices.Clone(view.Pools)
	slices.SortFunc(pools, func(a, b poolregistry.Pool) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	ipr := &IndexablePoolRegistry{
		byID:      make(map[uint64]poolregistry.Pool, len(pools)),
		byKey:     make(map[poolregistry.PoolKey]poolregistry.Pool, len(pools)),
		byAddress: make(map[common.Address]poolregistry.Pool, len(pools)),
		byPair:    make(map[pairKey][]poolregistry.Pool),
		byToken:   make(map[uint64][]poolregistry.Pool),
		all:       pools,
	}

	for _, p := range pools {
		ipr.byID[p.ID] = p
		ipr.byKey[p.Key] = p
		if p.Address != (common.Address{}) {
			ipr.byAddress[p.Address] = p
		}
		pk := newPairKey(p.Token0, p.Token1)
		ipr.byPair[pk] = append(ipr.byPair[pk], p)
		ipr.byToken[p.Token0] = append(ipr.byToken[p.Token0], p)
		if p.Token1 != p.Token0 {
			ipr.byToken[p.Token1] = append(ipr.byToken[p.Token1], p)
		}
	}

	return ipr
}

// GetByID retrieves a pool by its unique ID.
func (ipr *IndexablePoolRegistry) GetByID(id uint64) (poolregistry.Pool, bool) {
	p, ok := ipr.byID[id]
	return p, ok
}

// GetByAddress retrieves a pool by its contract address.
func (ipr *IndexablePoolRegistry) GetByAddress(address common.Address) (poolregistry.Pool, bool) {
	p, ok := ipr.byAddress[address]
	return p, ok
}

// GetByPoolKey retrieves a pool by its poolregistry.PoolKey.
func (ipr *IndexablePoolRegistry) GetByPoolKey(key poolregistry.PoolKey) (poolregistry.Pool, bool) {
	p, ok := ipr.byKey[key]
	return p, ok
}

func (ipr *IndexablePoolRegistry) GetByTokens(a, b uint64) []poolregistry.Pool {
	return slices.Clone(ipr.byPair[newPairKey(a, b)])
}

func (ipr *IndexablePoolRegistry) GetByToken(token uint64) []poolregistry.Pool {
	return slices.Clone(ipr.byToken[token])
}

// All returns a copy of the slice of all pools in the system.
func (ipr *IndexablePoolRegistry) All() []poolregistry.Pool {
	return slices.Clone(ipr.all)
}
