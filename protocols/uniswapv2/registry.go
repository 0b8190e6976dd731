package uniswapv2

import "math/big"

// Schema identifies the reserve snapshot payload carried by the state stream.
const Schema = "ammquote/uniswap-v2/poolView@v1"

// Pool is a point-in-time reserve snapshot of a constant-product pair.
type Pool struct {
	ID          uint64   `json:"id"`
	Token0      uint64   `json:"token0"`
	Token1      uint64   `json:"token1"`
	Reserve0    *big.Int `json:"reserve0"`
	Reserve1    *big.Int `json:"reserve1"`
	TotalSupply *big.Int `json:"totalSupply"` // outstanding LP shares
	FeeBps      uint16   `json:"feeBps"`      // i.e 30 for 0.3%
}

// HasLiquidity reports whether both reserves are strictly positive.
func (p Pool) HasLiquidity() bool {
	return p.Reserve0 != nil && p.Reserve1 != nil && p.Reserve0.Sign() > 0 && p.Reserve1.Sign() > 0
}
