package uniswapv2

import (
	"fmt"
	"math/big"
)

// TwoHopEstimate is the result of chaining two exact-input swaps.
type TwoHopEstimate struct {
	// AmountOut is what the second pool pays out.
	AmountOut *big.Int
	// IntermediateAmount is what the first pool pays out and the second pool receives.
	IntermediateAmount *big.Int
}

// EstimateTwoHopOutput quotes amountIn through source and then target.
// If either leg has no liquidity or produces nothing, both amounts are zero.
func EstimateTwoHopOutput(amountIn *big.Int, source, target Reserves, sourceFeeBps, targetFeeBps uint16) (TwoHopEstimate, error) {
	if err := validateFee(sourceFeeBps); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("source: %w", err)
	}
	if err := validateFee(targetFeeBps); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("target: %w", err)
	}

	c := acquire()
	defer release(c)

	if err := c.loadSwap(amountIn, source.In, source.Out, "amountIn"); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("source: %w", err)
	}
	if err := load(&c.d, target.In, "reserveIn"); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("target: %w", err)
	}
	if err := load(&c.aux, target.Out, "reserveOut"); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("target: %w", err)
	}

	if err := c.amountOut(&c.a, &c.a, &c.b, &c.c, sourceFeeBps); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("source: %w", err)
	}
	if c.a.IsZero() || c.d.IsZero() || c.aux.IsZero() {
		return TwoHopEstimate{AmountOut: new(big.Int), IntermediateAmount: new(big.Int)}, nil
	}
	if err := c.amountOut(&c.res, &c.a, &c.d, &c.aux, targetFeeBps); err != nil {
		return TwoHopEstimate{}, fmt.Errorf("target: %w", err)
	}

	return TwoHopEstimate{AmountOut: c.res.ToBig(), IntermediateAmount: c.a.ToBig()}, nil
}
