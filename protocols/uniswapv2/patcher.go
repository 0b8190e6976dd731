package uniswapv2

import (
	"fmt"
	"math/big"
	"slices"
)

// Clone returns a copy of p that shares no *big.Int with it.
func (p Pool) Clone() Pool {
	c := p
	c.Reserve0 = cloneBig(p.Reserve0)
	c.Reserve1 = cloneBig(p.Reserve1)
	c.TotalSupply = cloneBig(p.TotalSupply)
	return c
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// Patcher applies diff to prevState and returns the next snapshot.
// prevState is never mutated and the result shares no memory with it.
// Updating or deleting an unknown pool is an error: it means the diff was
// computed against a different base snapshot.
func Patcher(prevState []Pool, diff UniswapV2SystemDiff) ([]Pool, error) {
	next := make(map[uint64]Pool, len(prevState)+len(diff.Additions))
	for _, pool := range prevState {
		next[pool.ID] = pool.Clone()
	}

	for _, id := range diff.Deletions {
		if _, ok := next[id]; !ok {
			return nil, fmt.Errorf("uniswapv2 patch: delete of unknown pool %d", id)
		}
		delete(next, id)
	}
	for _, pool := range diff.Updates {
		if _, ok := next[pool.ID]; !ok {
			return nil, fmt.Errorf("uniswapv2 patch: update of unknown pool %d", pool.ID)
		}
		next[pool.ID] = pool.Clone()
	}
	for _, pool := range diff.Additions {
		next[pool.ID] = pool.Clone()
	}

	out := make([]Pool, 0, len(next))
	for _, pool := range next {
		out = append(out, pool)
	}
	slices.SortFunc(out, func(a, b Pool) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}
