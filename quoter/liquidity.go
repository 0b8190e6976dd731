package quoter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/defistate/ammquote-go/chains/ethereum"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2calculator "github.com/defistate/ammquote-go/protocols/uniswapv2/calculator"
)

// PreviewZap estimates the shares minted by depositing req.Amount of req.TokenIn alone.
// The swap leg is priced by the pool itself or, with PriceSourceOracle, by the pool's feed.
func (s *Service) PreviewZap(ctx context.Context, req ZapRequest) (p ZapPreview, err error) {
	start := time.Now()
	defer func() { s.observe(opZap, start, err) }()

	state, err := s.snapshot(ctx)
	if err != nil {
		return ZapPreview{}, err
	}
	in, other, err := resolvePair(state, req.TokenIn, req.TokenOther)
	if err != nil {
		return ZapPreview{}, err
	}
	if err := validAmount(req.Amount, "amount"); err != nil {
		return ZapPreview{}, err
	}
	slippage, err := s.slippage(req.SlippageBps)
	if err != nil {
		return ZapPreview{}, err
	}
	m, err := s.selectMarket(state, in, other, req.PoolID)
	if err != nil {
		return ZapPreview{}, err
	}
	reserveIn, reserveOther, err := uniswapv2calculator.GetReserves(in.ID, other.ID, m.reserves)
	if err != nil {
		return ZapPreview{}, err
	}

	split := s.defaults.ZapSplitBps
	switch {
	case req.Optimal:
		split, err = uniswapv2calculator.OptimalSplitBps(req.Amount, reserveIn, m.reserves.FeeBps)
		if err != nil {
			return ZapPreview{}, err
		}
	case req.SplitBps != nil:
		split = *req.SplitBps
	}

	sourceName := strings.ToLower(strings.TrimSpace(req.PriceSource))
	if sourceName == "" {
		sourceName = PriceSourcePool
	}
	supply := uniswapv2calculator.GetTotalSupply(m.reserves)
	source, err := s.priceSource(state, sourceName, m, in, other, reserveIn, reserveOther)
	if err != nil {
		return ZapPreview{}, err
	}

	est, err := uniswapv2calculator.EstimateZapLiquidityWithSource(req.Amount, split, reserveIn, reserveOther, supply, source)
	if err != nil {
		return ZapPreview{}, err
	}
	minLiquidity, err := uniswapv2calculator.ApplySlippage(est.Liquidity, slippage, uniswapv2calculator.MinOutput)
	if err != nil {
		return ZapPreview{}, err
	}

	return ZapPreview{
		Block:        blockNumber(state),
		PoolID:       m.meta.ID,
		Pool:         m.meta.Address,
		TokenIn:      tokenInfo(in),
		TokenOther:   tokenInfo(other),
		Amount:       new(big.Int).Set(req.Amount),
		SplitBps:     split,
		PriceSource:  sourceName,
		ZapEstimate:  est,
		SlippageBps:  slippage,
		MinLiquidity: minLiquidity,
	}, nil
}

func (s *Service) priceSource(
	state *ethereum.State,
	name string,
	m market,
	in, other tokenregistry.Token,
	reserveIn, reserveOther *big.Int,
) (uniswapv2calculator.PriceSource, error) {
	switch name {
	case PriceSourcePool:
		return uniswapv2calculator.PoolReserveSource{ReserveIn: reserveIn, ReserveOut: reserveOther, FeeBps: m.reserves.FeeBps}, nil
	case PriceSourceOracle:
		price, ok := state.Oracle(m.meta.ID)
		if !ok {
			return nil, fmt.Errorf("%w: pool %d", ErrNoOracle, m.meta.ID)
		}
		// feeds price Token0 in Token1
		invert := in.ID == m.meta.Token1
		source, err := uniswapv2calculator.NewOraclePriceSourceFromFeed(price.Answer, price.Decimals, in.Decimals, other.Decimals, invert)
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPriceSource, name)
	}
}

// PreviewAddLiquidity reports the amounts a pool accepts for a deposit of up to
// req.AmountA and req.AmountB and the shares it mints.
func (s *Service) PreviewAddLiquidity(ctx context.Context, req AddLiquidityRequest) (p AddLiquidityPreview, err error) {
	start := time.Now()
	defer func() { s.observe(opAddLiquidity, start, err) }()

	state, err := s.snapshot(ctx)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	a, b, err := resolvePair(state, req.TokenA, req.TokenB)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	if err := validAmount(req.AmountA, "amountA"); err != nil {
		return AddLiquidityPreview{}, err
	}
	if err := validAmount(req.AmountB, "amountB"); err != nil {
		return AddLiquidityPreview{}, err
	}
	slippage, err := s.slippage(req.SlippageBps)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	m, err := s.selectMarket(state, a, b, req.PoolID)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	reserveA, reserveB, err := uniswapv2calculator.GetReserves(a.ID, b.ID, m.reserves)
	if err != nil {
		return AddLiquidityPreview{}, err
	}

	supply := uniswapv2calculator.GetTotalSupply(m.reserves)
	zero := new(big.Int)
	amountA, amountB, err := uniswapv2calculator.OptimalDeposit(req.AmountA, req.AmountB, zero, zero, reserveA, reserveB)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	shares, err := uniswapv2calculator.MintLiquidity(amountA, amountB, reserveA, reserveB, supply)
	if err != nil {
		return AddLiquidityPreview{}, err
	}
	minShares, err := uniswapv2calculator.ApplySlippage(shares, slippage, uniswapv2calculator.MinOutput)
	if err != nil {
		return AddLiquidityPreview{}, err
	}

	return AddLiquidityPreview{
		Block:          blockNumber(state),
		PoolID:         m.meta.ID,
		Pool:           m.meta.Address,
		TokenA:         tokenInfo(a),
		TokenB:         tokenInfo(b),
		AmountA:        amountA,
		AmountB:        amountB,
		Shares:         shares,
		ShareOfPoolBps: shareOfPool(shares, supply),
		SlippageBps:    slippage,
		MinShares:      minShares,
	}, nil
}

// shareOfPool is shares / (supply after minting) in bps. A first mint also locks MinimumLiquidity.
func shareOfPool(shares, supply *big.Int) uint16 {
	if shares.Sign() == 0 {
		return 0
	}
	after := new(big.Int).Set(shares)
	if supply == nil || supply.Sign() == 0 {
		after.Add(after, big.NewInt(uniswapv2calculator.MinimumLiquidity))
	} else {
		after.Add(after, supply)
	}
	bps := new(big.Int).Mul(shares, big.NewInt(uniswapv2calculator.BasisPointDivisor))
	bps.Div(bps, after)
	return uint16(bps.Uint64())
}

// PreviewRemoveLiquidity reports what burning req.Shares returns.
func (s *Service) PreviewRemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (p RemoveLiquidityPreview, err error) {
	start := time.Now()
	defer func() { s.observe(opRemoveLiquidity, start, err) }()

	state, err := s.snapshot(ctx)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	a, b, err := resolvePair(state, req.TokenA, req.TokenB)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	if err := validAmount(req.Shares, "shares"); err != nil {
		return RemoveLiquidityPreview{}, err
	}
	slippage, err := s.slippage(req.SlippageBps)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	m, err := s.selectMarket(state, a, b, req.PoolID)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	reserveA, reserveB, err := uniswapv2calculator.GetReserves(a.ID, b.ID, m.reserves)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}

	supply := uniswapv2calculator.GetTotalSupply(m.reserves)
	amountA, amountB, err := uniswapv2calculator.BurnLiquidity(req.Shares, reserveA, reserveB, supply)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	minA, err := uniswapv2calculator.ApplySlippage(amountA, slippage, uniswapv2calculator.MinOutput)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}
	minB, err := uniswapv2calculator.ApplySlippage(amountB, slippage, uniswapv2calculator.MinOutput)
	if err != nil {
		return RemoveLiquidityPreview{}, err
	}

	return RemoveLiquidityPreview{
		Block:       blockNumber(state),
		PoolID:      m.meta.ID,
		Pool:        m.meta.Address,
		TokenA:      tokenInfo(a),
		TokenB:      tokenInfo(b),
		Shares:      new(big.Int).Set(req.Shares),
		AmountA:     amountA,
		AmountB:     amountB,
		SlippageBps: slippage,
		MinAmountA:  minA,
		MinAmountB:  minB,
	}, nil
}
