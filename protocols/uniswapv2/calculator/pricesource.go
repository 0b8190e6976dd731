package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidPrice is returned for a price source with a zero denominator or a non-positive feed answer.
var ErrInvalidPrice = errors.New("invalid price")

// PriceSource converts an amount of one token into an amount of another.
type PriceSource interface {
	Quote(amountIn *big.Int) (*big.Int, error)
}

// PoolReserveSource prices through the constant-product curve of a pool.
type PoolReserveSource struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
	FeeBps     uint16
}

func (s PoolReserveSource) Quote(amountIn *big.Int) (*big.Int, error) {
	return QuoteOutputForInput(amountIn, s.ReserveIn, s.ReserveOut, s.FeeBps)
}

// OraclePriceSource prices at a fixed ratio, floor(amountIn * Numerator / Denominator).
// Both terms are in base units of the respective tokens.
type OraclePriceSource struct {
	Numerator   *big.Int
	Denominator *big.Int
}

// NewOraclePriceSource validates the ratio num/den.
func NewOraclePriceSource(num, den *big.Int) (OraclePriceSource, error) {
	if num == nil || den == nil || num.Sign() < 0 || den.Sign() <= 0 {
		return OraclePriceSource{}, fmt.Errorf("%w: ratio %v/%v", ErrInvalidPrice, num, den)
	}
	return OraclePriceSource{Numerator: num, Denominator: den}, nil
}

// NewOraclePriceSourceFromFeed builds a source from a feed answer quoting one whole unit of the
// base token in the quote token, scaled by 10^feedDecimals. By default the input token is the
// base token; invert prices the quote token into the base token instead.
func NewOraclePriceSourceFromFeed(answer *big.Int, feedDecimals, decimalsIn, decimalsOut uint8, invert bool) (OraclePriceSource, error) {
	if answer == nil || answer.Sign() <= 0 {
		return OraclePriceSource{}, fmt.Errorf("%w: feed answer %v", ErrInvalidPrice, answer)
	}

	if !invert {
		// out = in * answer * 10^decOut / 10^(feedDec + decIn)
		num := new(big.Int).Mul(answer, GetScaledDecimal(decimalsOut))
		den := new(big.Int).Mul(GetScaledDecimal(feedDecimals), GetScaledDecimal(decimalsIn))
		return OraclePriceSource{Numerator: num, Denominator: den}, nil
	}

	// out = in * 10^(feedDec + decOut) / (answer * 10^decIn)
	num := new(big.Int).Mul(GetScaledDecimal(feedDecimals), GetScaledDecimal(decimalsOut))
	den := new(big.Int).Mul(answer, GetScaledDecimal(decimalsIn))
	return OraclePriceSource{Numerator: num, Denominator: den}, nil
}

func (s OraclePriceSource) Quote(amountIn *big.Int) (*big.Int, error) {
	if s.Numerator == nil || s.Denominator == nil || s.Denominator.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	c := acquire()
	defer release(c)

	if err := load(&c.a, amountIn, "amountIn"); err != nil {
		return nil, err
	}
	if err := load(&c.b, s.Numerator, "numerator"); err != nil {
		return nil, err
	}
	if err := load(&c.c, s.Denominator, "denominator"); err != nil {
		return nil, err
	}
	if err := mul(&c.num, &c.a, &c.b); err != nil {
		return nil, err
	}
	return c.res.Div(&c.num, &c.c).ToBig(), nil
}
