package ethereum

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

type feedRound struct {
	decimals  uint8
	roundID   *big.Int
	answer    *big.Int
	updatedAt *big.Int
}

// fakeEth serves the handful of eth_* methods the reader needs.
type fakeEth struct {
	mu          sync.RWMutex
	blockNumber uint64
	blockTime   uint64
	// storage[address][positionHash] = 32-byte value
	storage map[common.Address]map[common.Hash][]byte
	feeds   map[common.Address]feedRound
}

type callArgs struct {
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
}

func newFakeEth(block uint64) *fakeEth {
	return &fakeEth{
		blockNumber: block,
		blockTime:   1_700_000_000,
		storage:     make(map[common.Address]map[common.Hash][]byte),
		feeds:       make(map[common.Address]feedRound),
	}
}

func (f *fakeEth) GetBlockByNumber(ctx context.Context, number gethrpc.BlockNumber, full bool) (*types.Header, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &types.Header{
		Number:     new(big.Int).SetUint64(f.blockNumber),
		Time:       f.blockTime + f.blockNumber*12,
		Difficulty: new(big.Int),
	}, nil
}

func (f *fakeEth) GetStorageAt(ctx context.Context, addr common.Address, position common.Hash, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if m, ok := f.storage[addr]; ok {
		if v, ok := m[position]; ok {
			return hexutil.Bytes(v), nil
		}
	}
	return hexutil.Bytes(make([]byte, 32)), nil
}

func (f *fakeEth) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	input := args.Input
	if len(input) == 0 {
		input = args.Data
	}
	if args.To == nil || len(input) < 4 {
		return nil, errors.New("execution reverted")
	}
	feed, ok := f.feeds[*args.To]
	if !ok {
		return hexutil.Bytes{}, nil
	}

	switch {
	case bytes.Equal(input[:4], aggregatorABI.Methods["decimals"].ID):
		return aggregatorABI.Methods["decimals"].Outputs.Pack(feed.decimals)
	case bytes.Equal(input[:4], aggregatorABI.Methods["latestRoundData"].ID):
		return aggregatorABI.Methods["latestRoundData"].Outputs.Pack(
			feed.roundID, feed.answer, feed.updatedAt, feed.updatedAt, feed.roundID,
		)
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeEth) setBlock(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockNumber = n
}

func (f *fakeEth) setPair(pair, token0, token1 common.Address, r0, r1, supply *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storage[pair] = map[common.Hash][]byte{
		slotHash(slotTotalSupply): u256Bytes(supply),
		slotHash(slotToken0):      common.LeftPadBytes(token0.Bytes(), 32),
		slotHash(slotToken1):      common.LeftPadBytes(token1.Bytes(), 32),
		slotHash(slotReserves):    packReserves(r0, r1, 1_700_000_000),
	}
}

func (f *fakeEth) setFeed(feed common.Address, round feedRound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[feed] = round
}

func newInprocEthClient(t *testing.T, fe *fakeEth) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fe))
	c := gethrpc.DialInProc(srv)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return ethclient.NewClient(c)
}

func slotHash(slot uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(slot))
}

func u256Bytes(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func packReserves(r0, r1 *big.Int, ts uint32) []byte {
	v := new(big.Int).SetUint64(uint64(ts))
	v.Lsh(v, 112)
	v.Or(v, r1)
	v.Lsh(v, 112)
	v.Or(v, r0)
	return u256Bytes(v)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

var (
	weth     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai      = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	pairAddr = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	pair2    = common.HexToAddress("0xAE461cA67B15dc8dc81CE7615e0320dA1A9aB8D5")
	feedAddr = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
)

func testTokens() []tokenregistry.Token {
	return []tokenregistry.Token{
		{ID: 1, Address: usdc, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		{ID: 2, Address: weth, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		{ID: 3, Address: dai, Name: "Dai Stablecoin", Symbol: "DAI", Decimals: 18},
	}
}

func testRegistry() poolregistry.PoolRegistry {
	return poolregistry.PoolRegistry{Pools: []poolregistry.Pool{
		{ID: 10, Address: pairAddr, Token0: 1, Token1: 2, FeeBps: 30, OracleFeed: feedAddr},
		{ID: 11, Address: pair2, Token0: 3, Token1: 1, FeeBps: 30},
	}}
}

// seed installs the two registered pairs and the USDC/WETH feed.
func seed(fe *fakeEth) {
	fe.setPair(pairAddr, usdc, weth, big.NewInt(100_000_000_000), e18(50), big.NewInt(2_000_000))
	fe.setPair(pair2, dai, usdc, e18(1_000_000), big.NewInt(1_000_000_000_000), big.NewInt(3_000_000))
	fe.setFeed(feedAddr, feedRound{
		decimals:  8,
		roundID:   big.NewInt(42),
		answer:    big.NewInt(50_000), // 0.0005 WETH per USDC
		updatedAt: big.NewInt(1_700_000_100),
	})
}
