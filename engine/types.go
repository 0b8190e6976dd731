package engine

import (
	"math/big"

	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
)

// StateSchema is the decode contract of State and of the diffs built from it.
const StateSchema = "ammquote/state@v1"

// Error components reported in State.Errors.
const (
	ComponentPools   = "pools"
	ComponentOracles = "oracles"
)

// BlockSummary contains only the essential block information for clients.
type BlockSummary struct {
	Number     *big.Int    `json:"number"`
	Hash       common.Hash `json:"hash"`
	Timestamp  uint64      `json:"timestamp"`
	ReceivedAt int64       `json:"receivedAt"` // Unix nanoseconds when processing of the block started.
}

// OraclePrice is the latest answer of the price feed attached to a pool.
type OraclePrice struct {
	PoolID    uint64         `json:"poolId"`
	Feed      common.Address `json:"feed"`
	Answer    *big.Int       `json:"answer"`
	Decimals  uint8          `json:"decimals"`
	RoundID   *big.Int       `json:"roundId,omitempty"`
	UpdatedAt uint64         `json:"updatedAt"`
}

// Equal reports whether two prices carry the same round data.
func (o OraclePrice) Equal(other OraclePrice) bool {
	return o.PoolID == other.PoolID &&
		o.Feed == other.Feed &&
		o.Decimals == other.Decimals &&
		o.UpdatedAt == other.UpdatedAt &&
		bigEqual(o.Answer, other.Answer) &&
		bigEqual(o.RoundID, other.RoundID)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// State is one reserve snapshot: everything a quote needs at a given block.
type State struct {
	Schema    string                    `json:"schema"`
	ChainID   uint64                    `json:"chainId"`
	Timestamp uint64                    `json:"timestamp"`
	Block     BlockSummary              `json:"block"`
	Tokens    []tokenregistry.Token     `json:"tokens"`
	Registry  poolregistry.PoolRegistry `json:"registry"`
	Pools     []uniswapv2.Pool          `json:"pools"`
	Oracles   []OraclePrice             `json:"oracles,omitempty"`

	// Errors maps a component to the reason it is stale for this block.
	Errors map[string]string `json:"errors,omitempty"`
}

func (state *State) HasErrors() bool {
	return len(state.Errors) > 0
}

// BlockNumber returns the snapshot's block number, or zero when unknown.
func (state *State) BlockNumber() uint64 {
	if state.Block.Number == nil {
		return 0
	}
	return state.Block.Number.Uint64()
}
