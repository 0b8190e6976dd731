package patcher

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	differ "github.com/defistate/ammquote-go/differ"
	engine "github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
)

// Patch creates a new State by applying diff to oldState. oldState is never mutated;
// components the diff leaves untouched are shared with it.
func Patch(oldState *engine.State, diff *differ.StateDiff) (*engine.State, error) {
	if oldState == nil || diff == nil {
		return nil, fmt.Errorf("patcher: nil state or diff")
	}
	if oldState.BlockNumber() != diff.FromBlock {
		return nil, fmt.Errorf("patcher: mismatch fromBlock (state=%d, diff=%d)", oldState.BlockNumber(), diff.FromBlock)
	}
	if diff.Schema != "" && oldState.Schema != diff.Schema {
		return nil, fmt.Errorf("patcher: schema mismatch (state=%q, diff=%q)", oldState.Schema, diff.Schema)
	}

	next := &engine.State{
		Schema:    oldState.Schema,
		ChainID:   oldState.ChainID,
		Timestamp: diff.Timestamp,
		Block:     diff.ToBlock,
		Tokens:    oldState.Tokens,
		Registry:  oldState.Registry,
		Pools:     oldState.Pools,
		Oracles:   oldState.Oracles,
		Errors:    maps.Clone(diff.Errors),
	}

	var err error
	if !diff.Tokens.IsEmpty() {
		if next.Tokens, err = tokenregistry.Patcher(oldState.Tokens, diff.Tokens); err != nil {
			return nil, fmt.Errorf("patcher: tokens: %w", err)
		}
	}
	if !diff.Registry.IsEmpty() {
		if next.Registry, err = poolregistry.Patcher(oldState.Registry, diff.Registry); err != nil {
			return nil, fmt.Errorf("patcher: registry: %w", err)
		}
	}
	if !diff.Pools.IsEmpty() {
		if next.Pools, err = uniswapv2.Patcher(oldState.Pools, diff.Pools); err != nil {
			return nil, fmt.Errorf("patcher: pools: %w", err)
		}
	}
	if !diff.Oracles.IsEmpty() {
		next.Oracles = patchOracles(oldState.Oracles, diff.Oracles)
	}

	return next, nil
}

func patchOracles(prev []engine.OraclePrice, diff differ.OracleDiff) []engine.OraclePrice {
	byPool := make(map[uint64]engine.OraclePrice, len(prev)+len(diff.Updates))
	for _, o := range prev {
		byPool[o.PoolID] = o
	}
	for _, id := range diff.Deletions {
		delete(byPool, id)
	}
	for _, o := range diff.Updates {
		byPool[o.PoolID] = o
	}

	out := slices.Collect(maps.Values(byPool))
	slices.SortFunc(out, func(a, b engine.OraclePrice) int { return cmp.Compare(a.PoolID, b.PoolID) })
	return out
}
