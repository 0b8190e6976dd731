package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Storage layout of a UniswapV2Pair:
//
//	slot 0: totalSupply (UniswapV2ERC20)
//	slot 6: token0
//	slot 7: token1
//	slot 8: reserve0 uint112 | reserve1 uint112 | blockTimestampLast uint32
const (
	slotTotalSupply = 0
	slotToken0      = 6
	slotToken1      = 7
	slotReserves    = 8
)

const aggregatorV3ABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"internalType":"uint80","name":"roundId","type":"uint80"},
		{"internalType":"int256","name":"answer","type":"int256"},
		{"internalType":"uint256","name":"startedAt","type":"uint256"},
		{"internalType":"uint256","name":"updatedAt","type":"uint256"},
		{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var (
	// ErrPairMismatch is returned when a pair contract holds other tokens than the registry says.
	ErrPairMismatch = errors.New("pair tokens do not match registry")
	// ErrStaleFeed is returned when a feed reports a non-positive answer.
	ErrStaleFeed = errors.New("oracle feed returned a non-positive answer")

	mask112 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

	aggregatorABI = mustParseABI(aggregatorV3ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse aggregator abi: %v", err))
	}
	return parsed
}

// ChainReader is the subset of ethclient.Client the reader and poller depend on.
type ChainReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PairReader reads Uniswap V2 pair and Chainlink feed state at a given block.
type PairReader struct {
	chain ChainReader
}

func NewPairReader(chain ChainReader) *PairReader {
	return &PairReader{chain: chain}
}

func (r *PairReader) readSlot(ctx context.Context, pair common.Address, blockNum *big.Int, slot uint64) ([]byte, error) {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	b, err := r.chain.StorageAt(ctx, pair, key, blockNum)
	if err != nil {
		return nil, fmt.Errorf("storageAt slot %d (pair %s, block %v): %w", slot, pair.Hex(), blockNum, err)
	}
	return b, nil
}

// ReadPairTokens returns token0 and token1 of the pair contract.
func (r *PairReader) ReadPairTokens(ctx context.Context, pair common.Address, blockNum *big.Int) (common.Address, common.Address, error) {
	b0, err := r.readSlot(ctx, pair, blockNum, slotToken0)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	b1, err := r.readSlot(ctx, pair, blockNum, slotToken1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return common.BytesToAddress(b0), common.BytesToAddress(b1), nil
}

// ReadPool reads reserves and LP supply of meta's pair. token0 and token1 are the
// registry's addresses for meta.Token0 and meta.Token1; the pair must hold exactly those.
func (r *PairReader) ReadPool(
	ctx context.Context,
	meta poolregistry.Pool,
	token0, token1 common.Address,
	blockNum *big.Int,
) (uniswapv2.Pool, error) {
	onChain0, onChain1, err := r.ReadPairTokens(ctx, meta.Address, blockNum)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	if onChain0 != token0 || onChain1 != token1 {
		return uniswapv2.Pool{}, fmt.Errorf("%w: pool %d (%s) holds %s/%s, want %s/%s",
			ErrPairMismatch, meta.ID, meta.Address.Hex(), onChain0.Hex(), onChain1.Hex(), token0.Hex(), token1.Hex())
	}

	packed, err := r.readSlot(ctx, meta.Address, blockNum, slotReserves)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	supply, err := r.readSlot(ctx, meta.Address, blockNum, slotTotalSupply)
	if err != nil {
		return uniswapv2.Pool{}, err
	}

	reserve0, reserve1 := parseReserves(packed)
	return uniswapv2.Pool{
		ID:          meta.ID,
		Token0:      meta.Token0,
		Token1:      meta.Token1,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		TotalSupply: new(big.Int).SetBytes(supply),
		FeeBps:      meta.FeeBps,
	}, nil
}

// parseReserves unpacks the two uint112 reserves of a pair's packed storage word.
//
//	[ 32 bits timestamp | 112 bits reserve1 | 112 bits reserve0 ]
func parseReserves(b []byte) (reserve0, reserve1 *big.Int) {
	v := new(big.Int).SetBytes(b)
	reserve0 = new(big.Int).And(v, mask112)
	reserve1 = new(big.Int).And(new(big.Int).Rsh(v, 112), mask112)
	return reserve0, reserve1
}

func (r *PairReader) call(ctx context.Context, feed common.Address, method string, blockNum *big.Int) ([]any, error) {
	input, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.chain.CallContract(ctx, goethereum.CallMsg{To: &feed, Data: input}, blockNum)
	if err != nil {
		return nil, fmt.Errorf("call %s on feed %s: %w", method, feed.Hex(), err)
	}
	values, err := aggregatorABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s from feed %s: %w", method, feed.Hex(), err)
	}
	return values, nil
}

// ReadOracle reads the latest round of the Chainlink aggregator attached to meta.
func (r *PairReader) ReadOracle(ctx context.Context, meta poolregistry.Pool, blockNum *big.Int) (engine.OraclePrice, error) {
	decValues, err := r.call(ctx, meta.OracleFeed, "decimals", blockNum)
	if err != nil {
		return engine.OraclePrice{}, err
	}
	round, err := r.call(ctx, meta.OracleFeed, "latestRoundData", blockNum)
	if err != nil {
		return engine.OraclePrice{}, err
	}

	decimals, ok := decValues[0].(uint8)
	if !ok {
		return engine.OraclePrice{}, fmt.Errorf("feed %s: unexpected decimals type %T", meta.OracleFeed.Hex(), decValues[0])
	}
	roundID, _ := round[0].(*big.Int)
	answer, _ := round[1].(*big.Int)
	updatedAt, _ := round[3].(*big.Int)
	if answer == nil || answer.Sign() <= 0 {
		return engine.OraclePrice{}, fmt.Errorf("%w: feed %s answered %v", ErrStaleFeed, meta.OracleFeed.Hex(), answer)
	}

	price := engine.OraclePrice{
		PoolID:   meta.ID,
		Feed:     meta.OracleFeed,
		Answer:   answer,
		Decimals: decimals,
		RoundID:  roundID,
	}
	if updatedAt != nil && updatedAt.IsUint64() {
		price.UpdatedAt = updatedAt.Uint64()
	}
	return price, nil
}
