package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findPoolByID(pools []Pool, id uint64) *Pool {
	for i := range pools {
		if pools[i].ID == id {
			return &pools[i]
		}
	}
	return nil
}

func TestPatcher(t *testing.T) {
	base := func() []Pool {
		return []Pool{
			{ID: 1, Reserve0: big.NewInt(1000), Reserve1: big.NewInt(5000), TotalSupply: big.NewInt(2236)},
			{ID: 2, Reserve0: big.NewInt(2000), Reserve1: big.NewInt(6000), TotalSupply: big.NewInt(3464)},
			{ID: 3, Reserve0: big.NewInt(3000), Reserve1: big.NewInt(7000), TotalSupply: big.NewInt(4582)},
		}
	}

	t.Run("additions", func(t *testing.T) {
		next, err := Patcher(base(), UniswapV2SystemDiff{
			Additions: []Pool{{ID: 4, Reserve0: big.NewInt(4000)}},
		})
		require.NoError(t, err)

		assert.Len(t, next, 4)
		added := findPoolByID(next, 4)
		require.NotNil(t, added)
		assert.Equal(t, int64(4000), added.Reserve0.Int64())
	})

	t.Run("deletions", func(t *testing.T) {
		next, err := Patcher(base(), UniswapV2SystemDiff{Deletions: []uint64{2}})
		require.NoError(t, err)

		assert.Len(t, next, 2)
		assert.Nil(t, findPoolByID(next, 2))
	})

	t.Run("updates", func(t *testing.T) {
		next, err := Patcher(base(), UniswapV2SystemDiff{
			Updates: []Pool{{ID: 1, Reserve0: big.NewInt(1001), Reserve1: big.NewInt(5005), TotalSupply: big.NewInt(2240)}},
		})
		require.NoError(t, err)

		updated := findPoolByID(next, 1)
		require.NotNil(t, updated)
		assert.Equal(t, int64(1001), updated.Reserve0.Int64())
		assert.Equal(t, int64(5005), updated.Reserve1.Int64())
		assert.Equal(t, int64(2240), updated.TotalSupply.Int64())
	})

	t.Run("unknown update is rejected", func(t *testing.T) {
		_, err := Patcher(base(), UniswapV2SystemDiff{Updates: []Pool{{ID: 42}}})
		assert.Error(t, err)
	})

	t.Run("unknown deletion is rejected", func(t *testing.T) {
		_, err := Patcher(base(), UniswapV2SystemDiff{Deletions: []uint64{42}})
		assert.Error(t, err)
	})

	t.Run("result is isolated from the previous state", func(t *testing.T) {
		prev := base()
		next, err := Patcher(prev, UniswapV2SystemDiff{})
		require.NoError(t, err)

		prev[0].Reserve0.SetInt64(9999)
		prev[0].TotalSupply.SetInt64(1)

		kept := findPoolByID(next, 1)
		require.NotNil(t, kept)
		assert.Equal(t, int64(1000), kept.Reserve0.Int64())
		assert.Equal(t, int64(2236), kept.TotalSupply.Int64())
	})

	t.Run("diff round trip", func(t *testing.T) {
		old := base()
		moved := old[1].Clone()
		moved.Reserve0.SetInt64(2100)
		target := []Pool{old[0].Clone(), moved, {ID: 7, Reserve0: big.NewInt(1), Reserve1: big.NewInt(2)}}

		next, err := Patcher(old, Differ(old, target))
		require.NoError(t, err)
		assert.True(t, Differ(next, target).IsEmpty())
		assert.Equal(t, []uint64{1, 2, 7}, []uint64{next[0].ID, next[1].ID, next[2].ID})
	})
}
