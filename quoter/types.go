package quoter

import (
	"math/big"

	uniswapv2calculator "github.com/defistate/ammquote-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Price sources accepted by PreviewZap.
const (
	PriceSourcePool   = "pool"
	PriceSourceOracle = "oracle"
)

// Defaults carries every value a request may leave out. Nothing in this package
// falls back to anything else.
type Defaults struct {
	// SlippageBps applies when a request has no tolerance of its own.
	SlippageBps uint16 `json:"slippageBps" yaml:"slippage_bps"`
	// SlippagePresets are the tolerances offered to clients.
	SlippagePresets []uint16 `json:"slippagePresets" yaml:"slippage_presets"`
	// ZapSplitBps is the share of a zap sold for the paired token unless the request asks for the optimum.
	ZapSplitBps uint16 `json:"zapSplitBps" yaml:"zap_split_bps"`
	// FeeTiers restricts which pools are considered; empty means every tier.
	FeeTiers []uint16 `json:"feeTiers" yaml:"fee_tiers"`
	// Intermediates are the token IDs two-hop routes may pass through.
	Intermediates []uint64 `json:"intermediates" yaml:"intermediates"`
}

// TokenInfo identifies a token in responses.
type TokenInfo struct {
	ID       uint64         `json:"id"`
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// QuoteRequest asks for a swap quote. Tokens are referenced by address or symbol.
// Amount is the exact input for QuoteExactIn and the exact output for QuoteExactOut.
type QuoteRequest struct {
	TokenIn  string
	TokenOut string
	Amount   *big.Int
	// SlippageBps overrides Defaults.SlippageBps when set.
	SlippageBps *uint16
}

// Hop is one pool traversal of a route.
type Hop struct {
	PoolID    uint64         `json:"poolId"`
	Pool      common.Address `json:"pool"`
	FeeBps    uint16         `json:"feeBps"`
	TokenIn   common.Address `json:"tokenIn"`
	TokenOut  common.Address `json:"tokenOut"`
	AmountIn  *big.Int       `json:"amountIn"`
	AmountOut *big.Int       `json:"amountOut"`
}

// Quote is the best route found for a QuoteRequest.
type Quote struct {
	Block    uint64    `json:"block"`
	ExactIn  bool      `json:"exactIn"`
	TokenIn  TokenInfo `json:"tokenIn"`
	TokenOut TokenInfo `json:"tokenOut"`

	AmountIn  *big.Int `json:"amountIn"`
	AmountOut *big.Int `json:"amountOut"`
	// IntermediateAmount is set for two-hop routes only.
	IntermediateAmount *big.Int `json:"intermediateAmount,omitempty"`
	Route              []Hop    `json:"route"`

	SlippageBps uint16 `json:"slippageBps"`
	// MinAmountOut bounds exact-input quotes, MaxAmountIn exact-output ones.
	MinAmountOut *big.Int `json:"minAmountOut,omitempty"`
	MaxAmountIn  *big.Int `json:"maxAmountIn,omitempty"`

	RoutesEvaluated int `json:"routesEvaluated"`
}

// ZapRequest asks for a single-sided deposit preview: Amount of TokenIn goes into the
// TokenIn/TokenOther pool.
type ZapRequest struct {
	TokenIn    string
	TokenOther string
	Amount     *big.Int
	// PoolID selects a pool; zero picks the deepest pool for the pair.
	PoolID uint64
	// SplitBps overrides Defaults.ZapSplitBps. Ignored when Optimal is set.
	SplitBps *uint16
	Optimal  bool
	// PriceSource is PriceSourcePool (default) or PriceSourceOracle.
	PriceSource string
	SlippageBps *uint16
}

// ZapPreview is the outcome of a ZapRequest.
type ZapPreview struct {
	Block       uint64         `json:"block"`
	PoolID      uint64         `json:"poolId"`
	Pool        common.Address `json:"pool"`
	TokenIn     TokenInfo      `json:"tokenIn"`
	TokenOther  TokenInfo      `json:"tokenOther"`
	Amount      *big.Int       `json:"amount"`
	SplitBps    uint16         `json:"splitBps"`
	PriceSource string         `json:"priceSource"`

	uniswapv2calculator.ZapEstimate

	SlippageBps  uint16   `json:"slippageBps"`
	MinLiquidity *big.Int `json:"minLiquidity"`
}

// AddLiquidityRequest asks for a two-sided deposit preview of up to AmountA and AmountB.
type AddLiquidityRequest struct {
	TokenA      string
	TokenB      string
	AmountA     *big.Int
	AmountB     *big.Int
	PoolID      uint64
	SlippageBps *uint16
}

// AddLiquidityPreview reports the amounts the pool accepts and the shares minted.
type AddLiquidityPreview struct {
	Block   uint64         `json:"block"`
	PoolID  uint64         `json:"poolId"`
	Pool    common.Address `json:"pool"`
	TokenA  TokenInfo      `json:"tokenA"`
	TokenB  TokenInfo      `json:"tokenB"`
	AmountA *big.Int       `json:"amountA"`
	AmountB *big.Int       `json:"amountB"`
	Shares  *big.Int       `json:"shares"`
	// ShareOfPoolBps is the deposit's share of the pool after minting.
	ShareOfPoolBps uint16   `json:"shareOfPoolBps"`
	SlippageBps    uint16   `json:"slippageBps"`
	MinShares      *big.Int `json:"minShares"`
}

// RemoveLiquidityRequest asks what burning Shares of the TokenA/TokenB pool returns.
type RemoveLiquidityRequest struct {
	TokenA      string
	TokenB      string
	Shares      *big.Int
	PoolID      uint64
	SlippageBps *uint16
}

// RemoveLiquidityPreview reports the withdrawn amounts and their slippage bounds.
type RemoveLiquidityPreview struct {
	Block       uint64         `json:"block"`
	PoolID      uint64         `json:"poolId"`
	Pool        common.Address `json:"pool"`
	TokenA      TokenInfo      `json:"tokenA"`
	TokenB      TokenInfo      `json:"tokenB"`
	Shares      *big.Int       `json:"shares"`
	AmountA     *big.Int       `json:"amountA"`
	AmountB     *big.Int       `json:"amountB"`
	SlippageBps uint16         `json:"slippageBps"`
	MinAmountA  *big.Int       `json:"minAmountA"`
	MinAmountB  *big.Int       `json:"minAmountB"`
}
