package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrInvalidSplit is returned when a zap split exceeds 10000 bps.
	ErrInvalidSplit = errors.New("split must not exceed 10000 bps")
	// ErrNilPriceSource is returned when a zap is estimated without a price source.
	ErrNilPriceSource = errors.New("nil price source")
)

// ZapEstimate describes a single-sided deposit: part of the input is sold for the paired
// token and both sides are then added as liquidity.
type ZapEstimate struct {
	SwapAmount     *big.Int `json:"swapAmount"`
	RetainedAmount *big.Int `json:"retainedAmount"`
	ReceivedAmount *big.Int `json:"receivedAmount"`
	Liquidity      *big.Int `json:"liquidity"`
}

func zeroZap() ZapEstimate {
	return ZapEstimate{
		SwapAmount:     new(big.Int),
		RetainedAmount: new(big.Int),
		ReceivedAmount: new(big.Int),
		Liquidity:      new(big.Int),
	}
}

// EstimateZapLiquidity estimates the LP shares minted by zapping total of token A into a pool
// holding reserveA/reserveB, selling splitBps of it through the same pool.
func EstimateZapLiquidity(total *big.Int, splitBps uint16, reserveA, reserveB *big.Int, feeBps uint16, lpSupply *big.Int) (ZapEstimate, error) {
	if err := validateFee(feeBps); err != nil {
		return ZapEstimate{}, err
	}
	source := PoolReserveSource{ReserveIn: reserveA, ReserveOut: reserveB, FeeBps: feeBps}
	return EstimateZapLiquidityWithSource(total, splitBps, reserveA, reserveB, lpSupply, source)
}

// EstimateZapLiquidityWithSource is EstimateZapLiquidity with the swap leg priced by source.
// The deposit is valued against the pool as it stands after the swap leg settles.
func EstimateZapLiquidityWithSource(total *big.Int, splitBps uint16, reserveA, reserveB, lpSupply *big.Int, source PriceSource) (ZapEstimate, error) {
	if splitBps > BasisPointDivisor {
		return ZapEstimate{}, fmt.Errorf("%w: got %d", ErrInvalidSplit, splitBps)
	}
	if source == nil {
		return ZapEstimate{}, ErrNilPriceSource
	}

	c := acquire()
	defer release(c)

	if err := load(&c.a, total, "total"); err != nil {
		return ZapEstimate{}, err
	}
	if err := load(&c.c, reserveA, "reserveA"); err != nil {
		return ZapEstimate{}, err
	}
	if err := load(&c.d, reserveB, "reserveB"); err != nil {
		return ZapEstimate{}, err
	}
	if err := load(&c.aux, lpSupply, "lpSupply"); err != nil {
		return ZapEstimate{}, err
	}
	if c.a.IsZero() {
		return zeroZap(), nil
	}

	var swap, retained, received uint256.Int
	c.fee.SetUint64(uint64(splitBps))
	if err := mul(&swap, &c.a, &c.fee); err != nil {
		return ZapEstimate{}, err
	}
	swap.Div(&swap, u256Divisor)
	retained.Sub(&c.a, &swap)

	out, err := source.Quote(swap.ToBig())
	if err != nil {
		return ZapEstimate{}, fmt.Errorf("pricing swap leg: %w", err)
	}
	if err := load(&received, out, "received"); err != nil {
		return ZapEstimate{}, fmt.Errorf("pricing swap leg: %w", err)
	}

	est := ZapEstimate{
		SwapAmount:     swap.ToBig(),
		RetainedAmount: retained.ToBig(),
		ReceivedAmount: received.ToBig(),
	}

	if !c.aux.IsZero() {
		if c.c.IsZero() || c.d.IsZero() {
			est.Liquidity = new(big.Int)
			return est, nil
		}
		if !received.Lt(&c.d) {
			return ZapEstimate{}, fmt.Errorf("%w: swap leg receives %s of reserve %s", ErrInsufficientLiquidity, out, reserveB)
		}
		if err := add(&c.c, &c.c, &swap); err != nil {
			return ZapEstimate{}, err
		}
		c.d.Sub(&c.d, &received)
	}

	if err := c.mint(&c.res, &retained, &received, &c.c, &c.d, &c.aux); err != nil {
		return ZapEstimate{}, err
	}
	est.Liquidity = c.res.ToBig()
	return est, nil
}

// OptimalSwapAmount returns how much of total token A to sell so that the remainder and the
// proceeds match the pool ratio after the swap, accounting for the fee:
//
//	s = (sqrt(((2F-f)r)^2 + 4F(F-f)ar) - (2F-f)r) / (2(F-f)),  F = 10000
func OptimalSwapAmount(total, reserveIn *big.Int, feeBps uint16) (*big.Int, error) {
	if err := validateFee(feeBps); err != nil {
		return nil, err
	}

	c := acquire()
	defer release(c)

	if err := load(&c.a, total, "total"); err != nil {
		return nil, err
	}
	if err := load(&c.c, reserveIn, "reserveIn"); err != nil {
		return nil, err
	}
	if c.a.IsZero() || c.c.IsZero() {
		return new(big.Int), nil
	}

	var kr, fF uint256.Int
	c.fee.SetUint64(uint64(2*BasisPointDivisor - uint64(feeBps)))
	if err := mul(&kr, &c.fee, &c.c); err != nil {
		return nil, err
	}
	if err := mul(&c.num, &kr, &kr); err != nil {
		return nil, err
	}

	fF.SetUint64(4 * BasisPointDivisor * uint64(BasisPointDivisor-feeBps))
	if err := mul(&c.den, &fF, &c.a); err != nil {
		return nil, err
	}
	if err := mul(&c.den, &c.den, &c.c); err != nil {
		return nil, err
	}
	if err := add(&c.num, &c.num, &c.den); err != nil {
		return nil, err
	}

	sqrt(&c.res, &c.num)
	c.res.Sub(&c.res, &kr)
	c.fee.SetUint64(2 * uint64(BasisPointDivisor-feeBps))
	c.res.Div(&c.res, &c.fee)
	if c.a.Lt(&c.res) {
		c.res.Set(&c.a)
	}
	return c.res.ToBig(), nil
}

// OptimalSplitBps expresses OptimalSwapAmount as a split of total, rounded down to whole bps,
// so the swap portion it yields never exceeds the optimum.
func OptimalSplitBps(total, reserveIn *big.Int, feeBps uint16) (uint16, error) {
	swap, err := OptimalSwapAmount(total, reserveIn, feeBps)
	if err != nil {
		return 0, err
	}
	if total.Sign() == 0 {
		return 0, nil
	}

	// floor(swap * 10000 / total)
	bps := new(big.Int).Mul(swap, big.NewInt(BasisPointDivisor))
	bps.Div(bps, total)
	if bps.Cmp(big.NewInt(BasisPointDivisor)) > 0 {
		return BasisPointDivisor, nil
	}
	return uint16(bps.Uint64()), nil
}
