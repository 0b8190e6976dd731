package uniswapv2

import (
	"math/big"

	"github.com/holiman/uint256"
)

// sqrt writes floor(sqrt(y)) into dst using the Babylonian method.
func sqrt(dst, y *uint256.Int) *uint256.Int {
	if y.GtUint64(3) {
		var z, x, q uint256.Int
		z.Set(y)
		x.Rsh(y, 1)
		x.AddUint64(&x, 1)
		for x.Lt(&z) {
			z.Set(&x)
			q.Div(y, &x)
			x.Add(&q, &x)
			x.Rsh(&x, 1)
		}
		return dst.Set(&z)
	}
	if !y.IsZero() {
		return dst.SetOne()
	}
	return dst.Clear()
}

// Sqrt returns floor(sqrt(n)) for a non-negative n below 2^256.
func Sqrt(n *big.Int) (*big.Int, error) {
	var v uint256.Int
	if err := load(&v, n, "n"); err != nil {
		return nil, err
	}
	return sqrt(&v, &v).ToBig(), nil
}
