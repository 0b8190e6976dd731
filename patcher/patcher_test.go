package patcher

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/defistate/ammquote-go/differ"
	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeState(blockNum int64) *engine.State {
	return &engine.State{
		Schema:  engine.StateSchema,
		ChainID: 1,
		Block: engine.BlockSummary{
			Number: big.NewInt(blockNum),
			Hash:   common.BigToHash(big.NewInt(blockNum)),
		},
		Tokens: []tokenregistry.Token{
			{ID: 0, Symbol: "USDC", Decimals: 6},
			{ID: 1, Symbol: "WETH", Decimals: 18},
		},
		Registry: poolregistry.PoolRegistry{Pools: []poolregistry.Pool{
			{ID: 1, Token0: 0, Token1: 1, FeeBps: 30},
		}},
		Pools: []uniswapv2.Pool{
			{ID: 1, Token0: 0, Token1: 1, Reserve0: big.NewInt(100), Reserve1: big.NewInt(200), TotalSupply: big.NewInt(141), FeeBps: 30},
		},
		Oracles: []engine.OraclePrice{
			{PoolID: 1, Answer: big.NewInt(2), Decimals: 8, UpdatedAt: 1},
		},
	}
}

func TestPatch_HappyPath(t *testing.T) {
	oldState := makeState(100)

	diff := &differ.StateDiff{
		Schema:    engine.StateSchema,
		Timestamp: 42,
		FromBlock: 100,
		ToBlock:   engine.BlockSummary{Number: big.NewInt(101)},
		Pools: uniswapv2.UniswapV2SystemDiff{
			Updates: []uniswapv2.Pool{
				{ID: 1, Token0: 0, Token1: 1, Reserve0: big.NewInt(110), Reserve1: big.NewInt(182), TotalSupply: big.NewInt(141), FeeBps: 30},
			},
		},
		Oracles: differ.OracleDiff{
			Updates: []engine.OraclePrice{{PoolID: 1, Answer: big.NewInt(3), Decimals: 8, UpdatedAt: 2}},
		},
	}

	newState, err := Patch(oldState, diff)
	require.NoError(t, err)

	assert.Equal(t, uint64(101), newState.BlockNumber())
	assert.Equal(t, uint64(42), newState.Timestamp)
	assert.Equal(t, uint64(1), newState.ChainID)
	require.Len(t, newState.Pools, 1)
	assert.Equal(t, "110", newState.Pools[0].Reserve0.String())
	require.Len(t, newState.Oracles, 1)
	assert.Equal(t, "3", newState.Oracles[0].Answer.String())

	// untouched components are shared, patched ones are not
	assert.Equal(t, oldState.Tokens, newState.Tokens)
	assert.Equal(t, "100", oldState.Pools[0].Reserve0.String())
	assert.Equal(t, "2", oldState.Oracles[0].Answer.String())
}

func TestPatch_RegistryAndTokens(t *testing.T) {
	oldState := makeState(100)
	dai := tokenregistry.Token{ID: 2, Symbol: "DAI", Decimals: 18}
	newPool := poolregistry.Pool{ID: 2, Token0: 2, Token1: 1, FeeBps: 30}

	newState, err := Patch(oldState, &differ.StateDiff{
		FromBlock: 100,
		ToBlock:   engine.BlockSummary{Number: big.NewInt(101)},
		Tokens:    tokenregistry.TokenSystemDiff{Additions: []tokenregistry.Token{dai}},
		Registry:  poolregistry.PoolRegistryDiff{Additions: []poolregistry.Pool{newPool}},
		Pools: uniswapv2.UniswapV2SystemDiff{
			Additions: []uniswapv2.Pool{{ID: 2, Token0: 2, Token1: 1, Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), FeeBps: 30}},
		},
	})
	require.NoError(t, err)

	assert.Len(t, newState.Tokens, 3)
	assert.Len(t, newState.Registry.Pools, 2)
	assert.Len(t, newState.Pools, 2)
	assert.Len(t, oldState.Tokens, 2)
}

func TestPatch_OracleDeletion(t *testing.T) {
	newState, err := Patch(makeState(100), &differ.StateDiff{
		FromBlock: 100,
		ToBlock:   engine.BlockSummary{Number: big.NewInt(101)},
		Oracles:   differ.OracleDiff{Deletions: []uint64{1}},
	})
	require.NoError(t, err)
	assert.Empty(t, newState.Oracles)
}

func TestPatch_BlockMismatch(t *testing.T) {
	_, err := Patch(makeState(100), &differ.StateDiff{FromBlock: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch fromBlock")
}

func TestPatch_SchemaMismatch(t *testing.T) {
	_, err := Patch(makeState(100), &differ.StateDiff{FromBlock: 100, Schema: "other@v9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
}

func TestPatch_UnknownPoolUpdate(t *testing.T) {
	_, err := Patch(makeState(100), &differ.StateDiff{
		FromBlock: 100,
		Pools: uniswapv2.UniswapV2SystemDiff{
			Updates: []uniswapv2.Pool{{ID: 77}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pools")
}

// TestPatch_DiffRoundTrip checks that patching with a computed diff reproduces the target state.
func TestPatch_DiffRoundTrip(t *testing.T) {
	d, err := differ.NewStateDiffer(&differ.StateDifferConfig{
		Registry: prometheus.NewRegistry(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	old := makeState(100)
	target := makeState(105)
	target.Pools[0].Reserve0 = big.NewInt(150)
	target.Pools[0].Reserve1 = big.NewInt(134)
	target.Oracles[0].Answer = big.NewInt(9)
	target.Oracles[0].UpdatedAt = 9

	diff, err := d.Diff(old, target)
	require.NoError(t, err)

	patched, err := Patch(old, diff)
	require.NoError(t, err)

	assert.Equal(t, target.BlockNumber(), patched.BlockNumber())
	assert.Equal(t, target.Pools, patched.Pools)
	assert.True(t, target.Oracles[0].Equal(patched.Oracles[0]))
	assert.Equal(t, target.Registry, patched.Registry)
}
