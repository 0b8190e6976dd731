package tokenregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatcher(t *testing.T) {
	weth := newTestToken(1, "WETH", 18)
	usdc := newTestToken(2, "USDC", 6)
	dai := newTestToken(3, "DAI", 18)

	t.Run("applies additions, updates and deletions", func(t *testing.T) {
		prev := []Token{dai, weth}
		renamed := weth
		renamed.Name = "Wrapped Ether"

		next, err := Patcher(prev, TokenSystemDiff{
			Additions: []Token{usdc},
			Updates:   []Token{renamed},
			Deletions: []uint64{3},
		})
		require.NoError(t, err)
		assert.Equal(t, []Token{renamed, usdc}, next)
		assert.Equal(t, []Token{dai, weth}, prev, "previous state must be untouched")
	})

	t.Run("empty diff returns an equal state", func(t *testing.T) {
		next, err := Patcher([]Token{usdc, weth}, TokenSystemDiff{})
		require.NoError(t, err)
		assert.Equal(t, []Token{weth, usdc}, next)
	})

	t.Run("round trip through Differ", func(t *testing.T) {
		old := []Token{weth, usdc}
		target := []Token{usdc, dai}
		next, err := Patcher(old, Differ(old, target))
		require.NoError(t, err)
		assert.Equal(t, []Token{usdc, dai}, next)
	})
}
