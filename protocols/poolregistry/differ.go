package poolregistry

import "slices"

// PoolRegistryDiff represents the changes required to transition from one registry state to another.
type PoolRegistryDiff struct {
	// Additions contains new pools that were registered.
	Additions []Pool `json:"additions,omitempty"`
	// Updates contains pools whose metadata changed, e.g. a new oracle feed.
	Updates []Pool `json:"updates,omitempty"`
	// Deletions contains IDs of pools that were removed.
	Deletions []uint64 `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolRegistryDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ calculates the difference between two full registry views (Old -> New).
func Differ(old, new PoolRegistry) PoolRegistryDiff {
	oldPools := make(map[uint64]Pool, len(old.Pools))
	for _, pool := range old.Pools {
		oldPools[pool.ID] = pool
	}
	newPools := make(map[uint64]Pool, len(new.Pools))
	for _, pool := range new.Pools {
		newPools[pool.ID] = pool
	}

	var diff PoolRegistryDiff
	for id, pool := range newPools {
		prev, exists := oldPools[id]
		switch {
		case !exists:
			diff.Additions = append(diff.Additions, pool)
		case prev != pool:
			diff.Updates = append(diff.Updates, pool)
		}
	}
	for id := range oldPools {
		if _, exists := newPools[id]; !exists {
			diff.Deletions = append(diff.Deletions, id)
		}
	}

	byID := func(a, b Pool) int { return compareID(a.ID, b.ID) }
	slices.SortFunc(diff.Additions, byID)
	slices.SortFunc(diff.Updates, byID)
	slices.Sort(diff.Deletions)
	return diff
}

func compareID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
