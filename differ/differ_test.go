package differ

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiffer(t *testing.T) (*StateDiffer, *Metrics) {
	t.Helper()
	d, err := NewStateDiffer(&StateDifferConfig{
		Registry: prometheus.NewRegistry(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return d, d.metrics
}

func makeState(block int64, pools []uniswapv2.Pool, oracles []engine.OraclePrice) *engine.State {
	return &engine.State{
		Schema:  engine.StateSchema,
		ChainID: 1,
		Block:   engine.BlockSummary{Number: big.NewInt(block), Hash: common.BigToHash(big.NewInt(block))},
		Tokens: []tokenregistry.Token{
			{ID: 0, Symbol: "USDC", Decimals: 6},
			{ID: 1, Symbol: "WETH", Decimals: 18},
		},
		Registry: poolregistry.PoolRegistry{Pools: []poolregistry.Pool{{ID: 1, Token0: 0, Token1: 1, FeeBps: 30}}},
		Pools:    pools,
		Oracles:  oracles,
	}
}

func v2Pool(id uint64, r0, r1 int64) uniswapv2.Pool {
	return uniswapv2.Pool{
		ID:          id,
		Token0:      0,
		Token1:      1,
		Reserve0:    big.NewInt(r0),
		Reserve1:    big.NewInt(r1),
		TotalSupply: big.NewInt(1000),
		FeeBps:      30,
	}
}

func TestNewStateDiffer_Validation(t *testing.T) {
	_, err := NewStateDiffer(&StateDifferConfig{Logger: slog.Default()})
	assert.Error(t, err)

	_, err = NewStateDiffer(&StateDifferConfig{Registry: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestStateDiffer_Diff(t *testing.T) {
	d, m := newTestDiffer(t)

	price := engine.OraclePrice{PoolID: 1, Answer: big.NewInt(2000_00000000), Decimals: 8, UpdatedAt: 10}
	old := makeState(100, []uniswapv2.Pool{v2Pool(1, 100, 200), v2Pool(2, 5, 5)}, []engine.OraclePrice{price})

	newPrice := price
	newPrice.Answer = big.NewInt(2010_00000000)
	newPrice.UpdatedAt = 22
	next := makeState(101, []uniswapv2.Pool{v2Pool(1, 110, 190), v2Pool(3, 7, 7)}, []engine.OraclePrice{newPrice})

	diff, err := d.Diff(old, next)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), diff.FromBlock)
	assert.Equal(t, int64(101), diff.ToBlock.Number.Int64())
	assert.Equal(t, engine.StateSchema, diff.Schema)
	assert.True(t, diff.Tokens.IsEmpty())
	assert.True(t, diff.Registry.IsEmpty())

	require.Len(t, diff.Pools.Updates, 1)
	assert.Equal(t, uint64(1), diff.Pools.Updates[0].ID)
	require.Len(t, diff.Pools.Additions, 1)
	assert.Equal(t, uint64(3), diff.Pools.Additions[0].ID)
	assert.Equal(t, []uint64{2}, diff.Pools.Deletions)

	require.Len(t, diff.Oracles.Updates, 1)
	assert.Equal(t, "201000000000", diff.Oracles.Updates[0].Answer.String())
	assert.False(t, diff.IsEmpty())

	assert.Equal(t, float64(3), testutil.ToFloat64(m.changes.WithLabelValues(engine.ComponentPools)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.changes.WithLabelValues(engine.ComponentOracles)))
}

func TestStateDiffer_UnchangedState(t *testing.T) {
	d, _ := newTestDiffer(t)
	price := engine.OraclePrice{PoolID: 1, Answer: big.NewInt(5), Decimals: 8, UpdatedAt: 10}

	old := makeState(100, []uniswapv2.Pool{v2Pool(1, 100, 200)}, []engine.OraclePrice{price})
	next := makeState(101, []uniswapv2.Pool{v2Pool(1, 100, 200)}, []engine.OraclePrice{price})

	diff, err := d.Diff(old, next)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())
}

func TestStateDiffer_OracleRemoval(t *testing.T) {
	d, _ := newTestDiffer(t)
	price := engine.OraclePrice{PoolID: 1, Answer: big.NewInt(5), Decimals: 8, UpdatedAt: 10}

	diff, err := d.Diff(
		makeState(100, nil, []engine.OraclePrice{price}),
		makeState(101, nil, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, diff.Oracles.Deletions)
}

func TestStateDiffer_Rejections(t *testing.T) {
	d, _ := newTestDiffer(t)
	good := makeState(100, nil, nil)

	t.Run("state with errors", func(t *testing.T) {
		bad := makeState(101, nil, nil)
		bad.Errors = map[string]string{engine.ComponentOracles: "feed unreachable"}
		_, err := d.Diff(good, bad)
		assert.Error(t, err)
	})

	t.Run("chain mismatch", func(t *testing.T) {
		other := makeState(101, nil, nil)
		other.ChainID = 10
		_, err := d.Diff(good, other)
		assert.ErrorContains(t, err, "chain mismatch")
	})

	t.Run("schema mismatch", func(t *testing.T) {
		other := makeState(101, nil, nil)
		other.Schema = "ammquote/state@v0"
		_, err := d.Diff(good, other)
		assert.ErrorContains(t, err, "schema mismatch")
	})

	t.Run("nil state", func(t *testing.T) {
		_, err := d.Diff(nil, good)
		assert.Error(t, err)
	})
}
