package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"
)

// Direction selects which side of a quote a slippage tolerance protects.
type Direction uint8

const (
	// MinOutput lowers an exact-input quote to the least output the caller accepts.
	MinOutput Direction = iota
	// MaxInput raises an exact-output quote to the most input the caller is willing to pay.
	MaxInput
)

func (d Direction) String() string {
	switch d {
	case MinOutput:
		return "min_output"
	case MaxInput:
		return "max_input"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

var (
	// ErrInvalidSlippage is returned when a tolerance exceeds 10000 bps.
	ErrInvalidSlippage = errors.New("slippage tolerance must not exceed 10000 bps")
	// ErrInvalidDirection is returned for an unknown slippage direction.
	ErrInvalidDirection = errors.New("unknown slippage direction")
)

// ApplySlippage bounds amount by toleranceBps.
// MinOutput yields floor(amount*(10000-t)/10000); MaxInput yields ceil(amount*(10000+t)/10000).
func ApplySlippage(amount *big.Int, toleranceBps uint16, direction Direction) (*big.Int, error) {
	if toleranceBps > BasisPointDivisor {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSlippage, toleranceBps)
	}

	c := acquire()
	defer release(c)

	if err := load(&c.a, amount, "amount"); err != nil {
		return nil, err
	}

	switch direction {
	case MinOutput:
		c.fee.SetUint64(uint64(BasisPointDivisor - toleranceBps))
	case MaxInput:
		c.fee.SetUint64(uint64(BasisPointDivisor + uint64(toleranceBps)))
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDirection, direction)
	}

	if err := mul(&c.num, &c.a, &c.fee); err != nil {
		return nil, err
	}
	c.res.DivMod(&c.num, u256Divisor, &c.rem)
	if direction == MaxInput && !c.rem.IsZero() {
		c.res.AddUint64(&c.res, 1)
	}
	return c.res.ToBig(), nil
}
