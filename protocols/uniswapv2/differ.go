package uniswapv2

import (
	"math/big"
	"slices"
)

// UniswapV2SystemDiff describes how one reserve snapshot turns into the next.
type UniswapV2SystemDiff struct {
	Additions []Pool   `json:"additions,omitempty"`
	Updates   []Pool   `json:"updates,omitempty"`
	Deletions []uint64 `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d UniswapV2SystemDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Changed returns the number of pools touched by the diff.
func (d UniswapV2SystemDiff) Changed() int {
	return len(d.Additions) + len(d.Updates) + len(d.Deletions)
}

// Differ computes the diff between two reserve snapshots keyed by pool ID.
// A pool counts as updated when its reserves, LP supply or fee changed.
// Output slices are ordered by pool ID so equal inputs give equal diffs.
func Differ(old, new []Pool) UniswapV2SystemDiff {
	oldByID := make(map[uint64]Pool, len(old))
	for _, pool := range old {
		oldByID[pool.ID] = pool
	}

	var diff UniswapV2SystemDiff
	seen := make(map[uint64]struct{}, len(new))
	for _, pool := range new {
		seen[pool.ID] = struct{}{}
		prev, ok := oldByID[pool.ID]
		switch {
		case !ok:
			diff.Additions = append(diff.Additions, pool)
		case poolChanged(prev, pool):
			diff.Updates = append(diff.Updates, pool)
		}
	}

	for id := range oldByID {
		if _, ok := seen[id]; !ok {
			diff.Deletions = append(diff.Deletions, id)
		}
	}

	byID := func(a, b Pool) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
	slices.SortFunc(diff.Additions, byID)
	slices.SortFunc(diff.Updates, byID)
	slices.Sort(diff.Deletions)

	return diff
}

func poolChanged(a, b Pool) bool {
	return a.FeeBps != b.FeeBps ||
		!bigEqual(a.Reserve0, b.Reserve0) ||
		!bigEqual(a.Reserve1, b.Reserve1) ||
		!bigEqual(a.TotalSupply, b.TotalSupply)
}

// bigEqual treats nil as zero.
func bigEqual(a, b *big.Int) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil:
		return b.Sign() == 0
	case b == nil:
		return a.Sign() == 0
	}
	return a.Cmp(b) == 0
}
