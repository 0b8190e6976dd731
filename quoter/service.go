package quoter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/defistate/ammquote-go/chains/ethereum"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	uniswapv2calculator "github.com/defistate/ammquote-go/protocols/uniswapv2/calculator"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the dependencies of a Service.
type Config struct {
	Defaults   Defaults
	Logger     Logger
	Registerer prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registerer == nil {
		return errors.New("config: Registerer is required")
	}
	if c.Defaults.SlippageBps > uniswapv2calculator.BasisPointDivisor {
		return fmt.Errorf("config: default slippage %d exceeds 10000 bps", c.Defaults.SlippageBps)
	}
	for _, p := range c.Defaults.SlippagePresets {
		if p > uniswapv2calculator.BasisPointDivisor {
			return fmt.Errorf("config: slippage preset %d exceeds 10000 bps", p)
		}
	}
	if c.Defaults.ZapSplitBps > uniswapv2calculator.BasisPointDivisor {
		return fmt.Errorf("config: zap split %d exceeds 10000 bps", c.Defaults.ZapSplitBps)
	}
	return nil
}

// Service answers quotes and previews against the latest indexed snapshot.
// It is safe for concurrent use; every request reads one consistent snapshot.
type Service struct {
	state         atomic.Pointer[ethereum.State]
	defaults      Defaults
	intermediates mapset.Set[uint64]
	feeTiers      mapset.Set[uint16]
	metrics       *Metrics
	logger        Logger
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Service{
		defaults:      cfg.Defaults,
		intermediates: mapset.NewSet(cfg.Defaults.Intermediates...),
		feeTiers:      mapset.NewSet(cfg.Defaults.FeeTiers...),
		metrics:       NewMetrics(cfg.Registerer),
		logger:        cfg.Logger,
	}, nil
}

// Run installs every state received until ctx is cancelled or states is closed.
func (s *Service) Run(ctx context.Context, states <-chan *ethereum.State) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-states:
			if !ok {
				return nil
			}
			s.SetState(state)
		}
	}
}

// SetState makes state the snapshot subsequent requests are answered from.
func (s *Service) SetState(state *ethereum.State) {
	if state == nil {
		return
	}
	s.state.Store(state)
	if state.Block.Number != nil {
		s.metrics.stateBlock.Set(float64(state.Block.Number.Uint64()))
	}
	s.metrics.stateAge.SetToCurrentTime()
	if len(state.Errors) > 0 {
		s.logger.Warn("Installed snapshot with stale components", "block", state.Block.Number, "errors", state.Errors)
	} else {
		s.logger.Debug("Installed snapshot", "block", state.Block.Number)
	}
}

// State returns the current snapshot, or nil before the first one.
func (s *Service) State() *ethereum.State {
	return s.state.Load()
}

// Defaults returns the configured defaults.
func (s *Service) Defaults() Defaults {
	d := s.defaults
	d.SlippagePresets = slices.Clone(d.SlippagePresets)
	d.FeeTiers = slices.Clone(d.FeeTiers)
	d.Intermediates = slices.Clone(d.Intermediates)
	return d
}

func (s *Service) snapshot(ctx context.Context) (*ethereum.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state := s.state.Load()
	if state == nil {
		return nil, ErrNoState
	}
	return state, nil
}

// observe records one request. It is deferred with the operation's named error.
func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.requests.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		s.logger.Debug("Request failed", "operation", op, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoState):
		return "no_state"
	case errors.Is(err, ErrNoRoute), errors.Is(err, ErrPoolNotFound), errors.Is(err, ErrExactOutputMultiHop):
		return "no_route"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

// IsInvalidInput reports whether err was caused by the request rather than the pool state.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrUnknownToken,
		ErrSameToken,
		ErrInvalidAmount,
		ErrUnknownPriceSource,
		uniswapv2calculator.ErrInvalidSlippage,
		uniswapv2calculator.ErrInvalidSplit,
		uniswapv2calculator.ErrExceedsSupply,
		uniswapv2calculator.ErrOverflow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) slippage(override *uint16) (uint16, error) {
	bps := s.defaults.SlippageBps
	if override != nil {
		bps = *override
	}
	if bps > uniswapv2calculator.BasisPointDivisor {
		return 0, fmt.Errorf("%w: got %d", uniswapv2calculator.ErrInvalidSlippage, bps)
	}
	return bps, nil
}

func validAmount(v *big.Int, name string) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, name)
	}
	return nil
}

// resolveToken looks ref up as an address first and as a symbol otherwise.
func resolveToken(state *ethereum.State, ref string) (tokenregistry.Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		if t, ok := state.IndexedTokenSystem.GetByAddress(common.HexToAddress(ref)); ok {
			return t, nil
		}
		return tokenregistry.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	if t, ok := state.IndexedTokenSystem.GetBySymbol(ref); ok {
		return t, nil
	}
	return tokenregistry.Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, ref)
}

func resolvePair(state *ethereum.State, refA, refB string) (tokenregistry.Token, tokenregistry.Token, error) {
	a, err := resolveToken(state, refA)
	if err != nil {
		return a, tokenregistry.Token{}, err
	}
	b, err := resolveToken(state, refB)
	if err != nil {
		return a, b, err
	}
	if a.ID == b.ID {
		return a, b, fmt.Errorf("%w: %s", ErrSameToken, a.Symbol)
	}
	return a, b, nil
}

func tokenInfo(t tokenregistry.Token) TokenInfo {
	return TokenInfo{ID: t.ID, Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}
}

// market is a registry pool joined with its reserves.
type market struct {
	meta     poolregistry.Pool
	reserves uniswapv2.Pool
}

// markets returns the pools pairing a and b that pass the fee tier filter and have reserves.
func (s *Service) markets(state *ethereum.State, a, b uint64) []market {
	var out []market
	for _, meta := range state.IndexedPoolRegistry.GetByTokens(a, b) {
		if s.feeTiers.Cardinality() > 0 && !s.feeTiers.Contains(meta.FeeBps) {
			continue
		}
		reserves, ok := state.IndexedUniswapV2.GetByID(meta.ID)
		if !ok || reserves.Token0 != meta.Token0 || reserves.Token1 != meta.Token1 {
			continue
		}
		out = append(out, market{meta: meta, reserves: reserves})
	}
	return out
}

// selectMarket returns poolID's market, or the market holding the most of token a.
func (s *Service) selectMarket(state *ethereum.State, a, b tokenregistry.Token, poolID uint64) (market, error) {
	candidates := s.markets(state, a.ID, b.ID)
	if poolID != 0 {
		for _, m := range candidates {
			if m.meta.ID == poolID {
				return m, nil
			}
		}
		return market{}, fmt.Errorf("%w: pool %d does not pair %s/%s", ErrPoolNotFound, poolID, a.Symbol, b.Symbol)
	}
	if len(candidates) == 0 {
		return market{}, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, a.Symbol, b.Symbol)
	}

	best := candidates[0]
	bestReserve, _, _ := uniswapv2calculator.GetReserves(a.ID, b.ID, best.reserves)
	for _, m := range candidates[1:] {
		reserve, _, err := uniswapv2calculator.GetReserves(a.ID, b.ID, m.reserves)
		if err != nil {
			continue
		}
		if bestReserve == nil || reserve.Cmp(bestReserve) > 0 {
			best, bestReserve = m, reserve
		}
	}
	return best, nil
}

func blockNumber(state *ethereum.State) uint64 {
	if state.Block.Number == nil {
		return 0
	}
	return state.Block.Number.Uint64()
}
