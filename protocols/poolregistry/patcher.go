package poolregistry

import (
	"fmt"
	"slices"
)

// Patcher constructs a new registry state by applying a diff to a previous state.
// Updates and deletions must refer to pools present in prevState.
func Patcher(prevState PoolRegistry, diff PoolRegistryDiff) (PoolRegistry, error) {
	poolMap := make(map[uint64]Pool, len(prevState.Pools))
	for _, pool := range prevState.Pools {
		poolMap[pool.ID] = pool
	}

	for _, id := range diff.Deletions {
		if _, ok := poolMap[id]; !ok {
			return PoolRegistry{}, fmt.Errorf("poolregistry: delete of unknown pool %d", id)
		}
		delete(poolMap, id)
	}
	for _, pool := range diff.Updates {
		if _, ok := poolMap[pool.ID]; !ok {
			return PoolRegistry{}, fmt.Errorf("poolregistry: update of unknown pool %d", pool.ID)
		}
		poolMap[pool.ID] = pool
	}
	for _, pool := range diff.Additions {
		poolMap[pool.ID] = pool
	}

	pools := make([]Pool, 0, len(poolMap))
	for _, pool := range poolMap {
		pools = append(pools, pool)
	}
	slices.SortFunc(pools, func(a, b Pool) int { return compareID(a.ID, b.ID) })

	return PoolRegistry{Pools: pools}, nil
}
