package quoter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/defistate/ammquote-go/chains/ethereum"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2calculator "github.com/defistate/ammquote-go/protocols/uniswapv2/calculator"
)

// route is one evaluated path with its resulting amounts.
type route struct {
	hops         []Hop
	amountIn     *big.Int
	amountOut    *big.Int
	intermediate *big.Int
}

// better orders exact-input routes: more output, then fewer hops, then lower pool IDs.
func (r route) better(other route) bool {
	if c := r.amountOut.Cmp(other.amountOut); c != 0 {
		return c > 0
	}
	if len(r.hops) != len(other.hops) {
		return len(r.hops) < len(other.hops)
	}
	return slices.CompareFunc(r.hops, other.hops, func(a, b Hop) int {
		switch {
		case a.PoolID < b.PoolID:
			return -1
		case a.PoolID > b.PoolID:
			return 1
		}
		return 0
	}) < 0
}

func hop(m market, in, out tokenregistry.Token, amountIn, amountOut *big.Int) Hop {
	return Hop{
		PoolID:    m.meta.ID,
		Pool:      m.meta.Address,
		FeeBps:    m.reserves.FeeBps,
		TokenIn:   in.Address,
		TokenOut:  out.Address,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}
}

// QuoteExactIn finds the route paying the most for req.Amount of req.TokenIn. It evaluates
// every direct pool and every two-hop route through the configured intermediate tokens.
func (s *Service) QuoteExactIn(ctx context.Context, req QuoteRequest) (q Quote, err error) {
	start := time.Now()
	defer func() { s.observe(opExactIn, start, err) }()

	state, err := s.snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	in, out, err := resolvePair(state, req.TokenIn, req.TokenOut)
	if err != nil {
		return Quote{}, err
	}
	if err := validAmount(req.Amount, "amountIn"); err != nil {
		return Quote{}, err
	}
	slippage, err := s.slippage(req.SlippageBps)
	if err != nil {
		return Quote{}, err
	}

	routes, err := s.exactInRoutes(state, in, out, req.Amount)
	if err != nil {
		return Quote{}, err
	}
	if len(routes) == 0 {
		return Quote{}, fmt.Errorf("%w: %s -> %s", ErrNoRoute, in.Symbol, out.Symbol)
	}

	best := routes[0]
	for _, r := range routes[1:] {
		if r.better(best) {
			best = r
		}
	}
	if best.amountOut.Sign() == 0 {
		return Quote{}, fmt.Errorf("%w: every route to %s yields zero", uniswapv2calculator.ErrInsufficientLiquidity, out.Symbol)
	}

	minOut, err := uniswapv2calculator.ApplySlippage(best.amountOut, slippage, uniswapv2calculator.MinOutput)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Block:              blockNumber(state),
		ExactIn:            true,
		TokenIn:            tokenInfo(in),
		TokenOut:           tokenInfo(out),
		AmountIn:           new(big.Int).Set(req.Amount),
		AmountOut:          best.amountOut,
		IntermediateAmount: best.intermediate,
		Route:              best.hops,
		SlippageBps:        slippage,
		MinAmountOut:       minOut,
		RoutesEvaluated:    len(routes),
	}, nil
}

func (s *Service) exactInRoutes(state *ethereum.State, in, out tokenregistry.Token, amountIn *big.Int) ([]route, error) {
	var routes []route

	for _, m := range s.markets(state, in.ID, out.ID) {
		amountOut, err := uniswapv2calculator.GetAmountOut(amountIn, in.ID, out.ID, m.reserves)
		if err != nil {
			if errors.Is(err, uniswapv2calculator.ErrOverflow) {
				return nil, err
			}
			s.logger.Debug("Skipping pool", "pool", m.meta.ID, "error", err)
			continue
		}
		routes = append(routes, route{
			hops:      []Hop{hop(m, in, out, amountIn, amountOut)},
			amountIn:  amountIn,
			amountOut: amountOut,
		})
	}

	intermediates := s.intermediates.ToSlice()
	slices.Sort(intermediates)
	for _, midID := range intermediates {
		if midID == in.ID || midID == out.ID {
			continue
		}
		mid, ok := state.IndexedTokenSystem.GetByID(midID)
		if !ok {
			continue
		}
		firstLegs := s.markets(state, in.ID, mid.ID)
		if len(firstLegs) == 0 {
			continue
		}
		secondLegs := s.markets(state, mid.ID, out.ID)

		for _, first := range firstLegs {
			sourceIn, sourceOut, err := uniswapv2calculator.GetReserves(in.ID, mid.ID, first.reserves)
			if err != nil {
				continue
			}
			for _, second := range secondLegs {
				targetIn, targetOut, err := uniswapv2calculator.GetReserves(mid.ID, out.ID, second.reserves)
				if err != nil {
					continue
				}
				est, err := uniswapv2calculator.EstimateTwoHopOutput(
					amountIn,
					uniswapv2calculator.Reserves{In: sourceIn, Out: sourceOut},
					uniswapv2calculator.Reserves{In: targetIn, Out: targetOut},
					first.reserves.FeeBps,
					second.reserves.FeeBps,
				)
				if err != nil {
					if errors.Is(err, uniswapv2calculator.ErrOverflow) {
						return nil, err
					}
					continue
				}
				routes = append(routes, route{
					hops: []Hop{
						hop(first, in, mid, amountIn, est.IntermediateAmount),
						hop(second, mid, out, est.IntermediateAmount, est.AmountOut),
					},
					amountIn:     amountIn,
					amountOut:    est.AmountOut,
					intermediate: est.IntermediateAmount,
				})
			}
		}
	}
	return routes, nil
}

// QuoteExactOut finds the direct pool that delivers req.Amount of req.TokenOut for the least input.
// Routes through an intermediate token are not quoted.
func (s *Service) QuoteExactOut(ctx context.Context, req QuoteRequest) (q Quote, err error) {
	start := time.Now()
	defer func() { s.observe(opExactOut, start, err) }()

	state, err := s.snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	in, out, err := resolvePair(state, req.TokenIn, req.TokenOut)
	if err != nil {
		return Quote{}, err
	}
	if err := validAmount(req.Amount, "amountOut"); err != nil {
		return Quote{}, err
	}
	slippage, err := s.slippage(req.SlippageBps)
	if err != nil {
		return Quote{}, err
	}

	direct := s.markets(state, in.ID, out.ID)
	if len(direct) == 0 {
		if s.hasTwoHopRoute(state, in, out) {
			return Quote{}, fmt.Errorf("%w: %s -> %s", ErrExactOutputMultiHop, in.Symbol, out.Symbol)
		}
		return Quote{}, fmt.Errorf("%w: %s -> %s", ErrNoRoute, in.Symbol, out.Symbol)
	}

	var (
		best      *route
		evaluated int
		lastErr   error
	)
	for _, m := range direct {
		amountIn, err := uniswapv2calculator.GetAmountIn(req.Amount, in.ID, out.ID, m.reserves)
		if err != nil {
			lastErr = err
			continue
		}
		evaluated++
		if amountIn.Sign() == 0 {
			continue
		}
		if best == nil || amountIn.Cmp(best.amountIn) < 0 {
			best = &route{
				hops:      []Hop{hop(m, in, out, amountIn, req.Amount)},
				amountIn:  amountIn,
				amountOut: req.Amount,
			}
		}
	}
	if best == nil {
		if lastErr != nil {
			return Quote{}, lastErr
		}
		return Quote{}, fmt.Errorf("%w: no pool for %s -> %s has reserves", uniswapv2calculator.ErrInsufficientLiquidity, in.Symbol, out.Symbol)
	}

	maxIn, err := uniswapv2calculator.ApplySlippage(best.amountIn, slippage, uniswapv2calculator.MaxInput)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Block:           blockNumber(state),
		ExactIn:         false,
		TokenIn:         tokenInfo(in),
		TokenOut:        tokenInfo(out),
		AmountIn:        best.amountIn,
		AmountOut:       new(big.Int).Set(req.Amount),
		Route:           best.hops,
		SlippageBps:     slippage,
		MaxAmountIn:     maxIn,
		RoutesEvaluated: evaluated,
	}, nil
}

func (s *Service) hasTwoHopRoute(state *ethereum.State, in, out tokenregistry.Token) bool {
	for _, midID := range s.intermediates.ToSlice() {
		if midID == in.ID || midID == out.ID {
			continue
		}
		if len(s.markets(state, in.ID, midID)) > 0 && len(s.markets(state, midID, out.ID)) > 0 {
			return true
		}
	}
	return false
}
