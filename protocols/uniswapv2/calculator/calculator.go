package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/holiman/uint256"
)

const (
	// BasisPointDivisor represents 100% in basis points.
	BasisPointDivisor = 10000

	// MinimumLiquidity is the amount of LP shares permanently locked by the first mint of a pool.
	MinimumLiquidity = 1000
)

var (
	u256Divisor  = uint256.NewInt(BasisPointDivisor)
	u256MinShare = uint256.NewInt(MinimumLiquidity)

	ten     = big.NewInt(10)
	hundred = big.NewInt(100)

	// precomputed 10^dec for typical ERC20 decimals (0..18)
	precomputedScales [19]*big.Int

	// ErrNilAmount is returned when a nil pointer is passed for an amount or reserve.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrInvalidAmount is returned when an amount or reserve is negative.
	ErrInvalidAmount = errors.New("amount must be non-negative")
	// ErrInvalidFee is returned when a fee is not strictly below 10000 bps.
	ErrInvalidFee = errors.New("fee must be below 10000 bps")
	// ErrOverflow is returned when an input or an intermediate product does not fit in 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnsatisfiable is returned when a requested output is at or above the output reserve.
	ErrUnsatisfiable = errors.New("requested output exceeds available reserve")
	// ErrTokenMismatch is returned when the specified input/output tokens do not match the pool's tokens.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrInsufficientLiquidity is returned when a pool has no usable reserves for the requested operation.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)

func init() {
	precomputedScales[0] = big.NewInt(1)
	for i := 1; i < len(precomputedScales); i++ {
		precomputedScales[i] = new(big.Int).Mul(precomputedScales[i-1], ten)
	}
}

// GetScaledDecimal returns 10^dec. It returns a *big.Int that MUST NOT be modified.
func GetScaledDecimal(dec uint8) *big.Int {
	if int(dec) < len(precomputedScales) {
		return precomputedScales[dec]
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(dec)), nil)
}

// Reserves are a pool's balances oriented for one swap direction.
type Reserves struct {
	In  *big.Int
	Out *big.Int
}

// Calculator holds reusable 256-bit scratch values to avoid allocations during calculations.
// Instances are NOT safe for concurrent use by themselves; they are handed out by calculatorPool.
type Calculator struct {
	a, b, c, d    uint256.Int
	fee, withFee  uint256.Int
	num, den, rem uint256.Int
	res, aux      uint256.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return new(Calculator)
	},
}

func acquire() *Calculator {
	return calculatorPool.Get().(*Calculator)
}

func release(c *Calculator) {
	calculatorPool.Put(c)
}

// load validates v and stores it in dst.
func load(dst *uint256.Int, v *big.Int, name string) error {
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNilAmount, name)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s is %s", ErrInvalidAmount, name, v)
	}
	if dst.SetFromBig(v) {
		return fmt.Errorf("%w: %s does not fit in 256 bits", ErrOverflow, name)
	}
	return nil
}

func validateFee(feeBps uint16) error {
	if feeBps >= BasisPointDivisor {
		return fmt.Errorf("%w: got %d", ErrInvalidFee, feeBps)
	}
	return nil
}

func mul(dst, x, y *uint256.Int) error {
	if _, overflow := dst.MulOverflow(x, y); overflow {
		return ErrOverflow
	}
	return nil
}

func add(dst, x, y *uint256.Int) error {
	if _, overflow := dst.AddOverflow(x, y); overflow {
		return ErrOverflow
	}
	return nil
}

// amountOut writes the constant-product output for amountIn into dst.
// dst may alias any of the inputs.
func (c *Calculator) amountOut(dst, amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint16) error {
	if amountIn.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		dst.Clear()
		return nil
	}

	c.fee.SetUint64(uint64(BasisPointDivisor - feeBps))
	if err := mul(&c.withFee, amountIn, &c.fee); err != nil {
		return err
	}
	if err := mul(&c.num, &c.withFee, reserveOut); err != nil {
		return err
	}
	if err := mul(&c.den, reserveIn, u256Divisor); err != nil {
		return err
	}
	if err := add(&c.den, &c.den, &c.withFee); err != nil {
		return err
	}

	dst.Div(&c.num, &c.den)
	return nil
}

// amountIn writes the smallest input that yields at least amountOut into dst.
func (c *Calculator) amountIn(dst, amountOut, reserveIn, reserveOut *uint256.Int, feeBps uint16) error {
	if amountOut.IsZero() || reserveIn.IsZero() || reserveOut.IsZero() {
		dst.Clear()
		return nil
	}
	if !amountOut.Lt(reserveOut) {
		return ErrUnsatisfiable
	}

	// amountIn = ceil(reserveIn * amountOut * 10000 / ((reserveOut - amountOut) * (10000 - fee)))
	if err := mul(&c.num, reserveIn, amountOut); err != nil {
		return err
	}
	if err := mul(&c.num, &c.num, u256Divisor); err != nil {
		return err
	}
	c.fee.SetUint64(uint64(BasisPointDivisor - feeBps))
	c.den.Sub(reserveOut, amountOut)
	if err := mul(&c.den, &c.den, &c.fee); err != nil {
		return err
	}

	dst.DivMod(&c.num, &c.den, &c.rem)
	if !c.rem.IsZero() {
		dst.AddUint64(dst, 1)
	}
	return nil
}

// QuoteOutputForInput returns the output produced by selling amountIn into a pool holding
// reserveIn/reserveOut with the given fee. The result is rounded down.
// Zero input or an empty pool yields zero.
func QuoteOutputForInput(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if err := validateFee(feeBps); err != nil {
		return nil, err
	}

	c := acquire()
	defer release(c)

	if err := c.loadSwap(amountIn, reserveIn, reserveOut, "amountIn"); err != nil {
		return nil, err
	}
	if err := c.amountOut(&c.res, &c.a, &c.b, &c.c, feeBps); err != nil {
		return nil, err
	}
	return c.res.ToBig(), nil
}

// QuoteInputForOutput returns the minimum input required to receive amountOut, rounded up so
// that quoting the result forward never falls short of amountOut.
// ErrUnsatisfiable is returned when amountOut is not strictly below reserveOut.
func QuoteInputForOutput(amountOut, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if err := validateFee(feeBps); err != nil {
		return nil, err
	}

	c := acquire()
	defer release(c)

	if err := c.loadSwap(amountOut, reserveIn, reserveOut, "amountOut"); err != nil {
		return nil, err
	}
	if err := c.amountIn(&c.res, &c.a, &c.b, &c.c, feeBps); err != nil {
		if errors.Is(err, ErrUnsatisfiable) {
			return nil, fmt.Errorf("%w: amountOut %s, reserveOut %s", ErrUnsatisfiable, amountOut, reserveOut)
		}
		return nil, err
	}
	return c.res.ToBig(), nil
}

func (c *Calculator) loadSwap(amount, reserveIn, reserveOut *big.Int, name string) error {
	if err := load(&c.a, amount, name); err != nil {
		return err
	}
	if err := load(&c.b, reserveIn, "reserveIn"); err != nil {
		return err
	}
	return load(&c.c, reserveOut, "reserveOut")
}

// GetAmountOut calculates the output amount for a swap through pool.
func GetAmountOut(
	amountIn *big.Int,
	tokenIn uint64,
	tokenOut uint64,
	pool uniswapv2.Pool,
) (*big.Int, error) {
	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	return QuoteOutputForInput(amountIn, reserveIn, reserveOut, pool.FeeBps)
}

// GetAmountIn calculates the required input amount for a desired output from pool.
func GetAmountIn(
	amountOut *big.Int,
	tokenIn uint64,
	tokenOut uint64,
	pool uniswapv2.Pool,
) (*big.Int, error) {
	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	return QuoteInputForOutput(amountOut, reserveIn, reserveOut, pool.FeeBps)
}

// SimulateSwap returns the output of a swap together with the pool state after it settles.
// The returned pool never shares big.Int values with the input pool.
func SimulateSwap(
	amountIn *big.Int,
	tokenInID uint64,
	tokenOutID uint64,
	pool uniswapv2.Pool,
) (*big.Int, uniswapv2.Pool, error) {
	amountOut, err := GetAmountOut(amountIn, tokenInID, tokenOutID, pool)
	if err != nil {
		return nil, uniswapv2.Pool{}, err
	}

	next := pool.Clone()
	if next.Reserve0 == nil {
		next.Reserve0 = new(big.Int)
	}
	if next.Reserve1 == nil {
		next.Reserve1 = new(big.Int)
	}

	if tokenInID == pool.Token0 {
		next.Reserve0.Add(next.Reserve0, amountIn)
		next.Reserve1.Sub(next.Reserve1, amountOut)
	} else {
		next.Reserve1.Add(next.Reserve1, amountIn)
		next.Reserve0.Sub(next.Reserve0, amountOut)
	}

	return amountOut, next, nil
}

// GetReserves returns the reserves for the given token pair, oriented in -> out.
// Missing reserves are reported as zero.
func GetReserves(tokenInID, tokenOutID uint64, pool uniswapv2.Pool) (reserveIn, reserveOut *big.Int, err error) {
	r0, r1 := orZero(pool.Reserve0), orZero(pool.Reserve1)
	if tokenInID == pool.Token0 && tokenOutID == pool.Token1 {
		return r0, r1, nil
	} else if tokenInID == pool.Token1 && tokenOutID == pool.Token0 {
		return r1, r0, nil
	}
	return nil, nil, fmt.Errorf("%w: pool %d does not contain the pair %d -> %d", ErrTokenMismatch, pool.ID, tokenInID, tokenOutID)
}

// GetTotalSupply returns the pool's outstanding LP shares. A missing supply is reported as zero.
func GetTotalSupply(pool uniswapv2.Pool) *big.Int {
	return orZero(pool.TotalSupply)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// GetExchangeRate returns how many tokenOut base units one whole tokenIn buys, fee included.
// The rate is probed with 1% of the input reserve so that it reflects a realistic trade size.
func GetExchangeRate(
	tokenInID, tokenOutID uint64,
	decimalsIn uint8,
	pool uniswapv2.Pool,
) (*big.Int, error) {
	reserveIn, _, err := GetReserves(tokenInID, tokenOutID, pool)
	if err != nil {
		return nil, err
	}
	if reserveIn.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool %d has zero reserve for token %d", ErrInsufficientLiquidity, pool.ID, tokenInID)
	}

	probe := new(big.Int).Div(reserveIn, hundred)
	if probe.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool %d reserve too small to probe", ErrInsufficientLiquidity, pool.ID)
	}

	amountOut, err := GetAmountOut(probe, tokenInID, tokenOutID, pool)
	if err != nil {
		return nil, err
	}

	rate := new(big.Int).Mul(GetScaledDecimal(decimalsIn), amountOut)
	return rate.Div(rate, probe), nil
}
