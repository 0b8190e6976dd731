package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientSeedLiquidity is returned when a first deposit is too small to cover MinimumLiquidity.
	ErrInsufficientSeedLiquidity = errors.New("first deposit does not exceed minimum liquidity")
	// ErrInsufficientAAmount is returned when the optimal amount of token A falls below the caller's minimum.
	ErrInsufficientAAmount = errors.New("insufficient A amount")
	// ErrInsufficientBAmount is returned when the optimal amount of token B falls below the caller's minimum.
	ErrInsufficientBAmount = errors.New("insufficient B amount")
	// ErrExceedsSupply is returned when burning more shares than exist.
	ErrExceedsSupply = errors.New("shares exceed total supply")
)

// mint writes the LP shares minted for depositing a and b into a pool with reserves ra/rb
// and supply s. An empty supply takes the first-mint path.
func (c *Calculator) mint(dst, a, b, ra, rb, s *uint256.Int) error {
	if s.IsZero() {
		if err := mul(&c.num, a, b); err != nil {
			return err
		}
		sqrt(&c.num, &c.num)
		if c.num.Lt(u256MinShare) {
			return fmt.Errorf("%w: sqrt(a*b) is %s", ErrInsufficientSeedLiquidity, c.num.Dec())
		}
		dst.Sub(&c.num, u256MinShare)
		return nil
	}
	if ra.IsZero() || rb.IsZero() {
		dst.Clear()
		return nil
	}

	if err := mul(&c.num, a, s); err != nil {
		return err
	}
	c.num.Div(&c.num, ra)
	if err := mul(&c.den, b, s); err != nil {
		return err
	}
	c.den.Div(&c.den, rb)

	if c.den.Lt(&c.num) {
		dst.Set(&c.den)
	} else {
		dst.Set(&c.num)
	}
	return nil
}

// MintLiquidity returns the LP shares minted for depositing amountA and amountB.
// With totalSupply zero this is the first mint, sqrt(amountA*amountB) - MinimumLiquidity.
func MintLiquidity(amountA, amountB, reserveA, reserveB, totalSupply *big.Int) (*big.Int, error) {
	c := acquire()
	defer release(c)

	if err := c.loadPair(amountA, amountB, reserveA, reserveB); err != nil {
		return nil, err
	}
	if err := load(&c.aux, totalSupply, "totalSupply"); err != nil {
		return nil, err
	}
	if err := c.mint(&c.res, &c.a, &c.b, &c.c, &c.d, &c.aux); err != nil {
		return nil, err
	}
	return c.res.ToBig(), nil
}

// BurnLiquidity returns the amounts of each token withdrawn by burning shares.
func BurnLiquidity(shares, reserveA, reserveB, totalSupply *big.Int) (amountA, amountB *big.Int, err error) {
	c := acquire()
	defer release(c)

	if err := load(&c.a, shares, "shares"); err != nil {
		return nil, nil, err
	}
	if err := load(&c.c, reserveA, "reserveA"); err != nil {
		return nil, nil, err
	}
	if err := load(&c.d, reserveB, "reserveB"); err != nil {
		return nil, nil, err
	}
	if err := load(&c.aux, totalSupply, "totalSupply"); err != nil {
		return nil, nil, err
	}
	if c.aux.IsZero() {
		if c.a.IsZero() {
			return new(big.Int), new(big.Int), nil
		}
		return nil, nil, fmt.Errorf("%w: pool has no shares", ErrExceedsSupply)
	}
	if c.aux.Lt(&c.a) {
		return nil, nil, fmt.Errorf("%w: %s > %s", ErrExceedsSupply, shares, totalSupply)
	}

	if err := mul(&c.num, &c.a, &c.c); err != nil {
		return nil, nil, err
	}
	c.num.Div(&c.num, &c.aux)
	if err := mul(&c.den, &c.a, &c.d); err != nil {
		return nil, nil, err
	}
	c.den.Div(&c.den, &c.aux)

	return c.num.ToBig(), c.den.ToBig(), nil
}

// Quote returns the amount of token B worth amountA at the pool's current ratio, without fees.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	c := acquire()
	defer release(c)

	if err := load(&c.a, amountA, "amountA"); err != nil {
		return nil, err
	}
	if err := load(&c.c, reserveA, "reserveA"); err != nil {
		return nil, err
	}
	if err := load(&c.d, reserveB, "reserveB"); err != nil {
		return nil, err
	}
	if err := c.quote(&c.res, &c.a, &c.c, &c.d); err != nil {
		return nil, err
	}
	return c.res.ToBig(), nil
}

func (c *Calculator) quote(dst, a, ra, rb *uint256.Int) error {
	if a.IsZero() || ra.IsZero() || rb.IsZero() {
		dst.Clear()
		return nil
	}
	if err := mul(&c.num, a, rb); err != nil {
		return err
	}
	dst.Div(&c.num, ra)
	return nil
}

// OptimalDeposit returns the amounts actually deposited when adding up to desiredA/desiredB,
// keeping the pool ratio. An empty pool accepts the desired amounts as they are.
func OptimalDeposit(desiredA, desiredB, minA, minB, reserveA, reserveB *big.Int) (amountA, amountB *big.Int, err error) {
	c := acquire()
	defer release(c)

	if err := c.loadPair(desiredA, desiredB, reserveA, reserveB); err != nil {
		return nil, nil, err
	}
	var lowA, lowB uint256.Int
	if err := load(&lowA, minA, "minA"); err != nil {
		return nil, nil, err
	}
	if err := load(&lowB, minB, "minB"); err != nil {
		return nil, nil, err
	}

	if c.c.IsZero() && c.d.IsZero() {
		return c.a.ToBig(), c.b.ToBig(), nil
	}

	if err := c.quote(&c.res, &c.a, &c.c, &c.d); err != nil {
		return nil, nil, err
	}
	if !c.b.Lt(&c.res) {
		if c.res.Lt(&lowB) {
			return nil, nil, fmt.Errorf("%w: optimal %s below minimum %s", ErrInsufficientBAmount, c.res.Dec(), minB)
		}
		return c.a.ToBig(), c.res.ToBig(), nil
	}

	if err := c.quote(&c.res, &c.b, &c.d, &c.c); err != nil {
		return nil, nil, err
	}
	// the B-optimal amount never exceeds desiredA when the A-optimal amount exceeded desiredB
	if c.res.Lt(&lowA) {
		return nil, nil, fmt.Errorf("%w: optimal %s below minimum %s", ErrInsufficientAAmount, c.res.Dec(), minA)
	}
	return c.res.ToBig(), c.b.ToBig(), nil
}

func (c *Calculator) loadPair(amountA, amountB, reserveA, reserveB *big.Int) error {
	if err := load(&c.a, amountA, "amountA"); err != nil {
		return err
	}
	if err := load(&c.b, amountB, "amountB"); err != nil {
		return err
	}
	if err := load(&c.c, reserveA, "reserveA"); err != nil {
		return err
	}
	return load(&c.d, reserveB, "reserveB")
}
