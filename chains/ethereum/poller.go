package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/defistate/ammquote-go/chains"
	differ "github.com/defistate/ammquote-go/differ"
	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultPollInterval = 12 * time.Second

// PollerConfig describes what to read and how often.
type PollerConfig struct {
	Chain    ChainReader
	ChainID  uint64
	Tokens   []tokenregistry.Token
	Registry poolregistry.PoolRegistry
	Interval time.Duration
	Logger   chains.Logger
	// Registerer receives the poller and differ collectors.
	Registerer prometheus.Registerer
}

func (c *PollerConfig) validate() error {
	if c.Chain == nil {
		return errors.New("config: Chain is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registerer == nil {
		return errors.New("config: Registerer is required")
	}
	if len(c.Registry.Pools) == 0 {
		return errors.New("config: at least one pool is required")
	}

	known := make(map[uint64]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		known[t.ID] = struct{}{}
	}
	for _, p := range c.Registry.Pools {
		for _, id := range []uint64{p.Token0, p.Token1} {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("config: pool %d references unknown token %d", p.ID, id)
			}
		}
		if p.Address == (common.Address{}) {
			return fmt.Errorf("config: pool %d has no address", p.ID)
		}
	}
	return nil
}

type pollerMetrics struct {
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	block        prometheus.Gauge
	readErrors   *prometheus.CounterVec
}

func newPollerMetrics(reg prometheus.Registerer) *pollerMetrics {
	m := &pollerMetrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ammquote",
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Poll rounds by outcome.",
		}, []string{"outcome"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ammquote",
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Time taken to read one snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		block: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ammquote",
			Subsystem: "poller",
			Name:      "block_number",
			Help:      "Block number of the latest published snapshot.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ammquote",
			Subsystem: "poller",
			Name:      "read_errors_total",
			Help:      "Failed pool or oracle reads, by component.",
		}, []string{"component"}),
	}
	reg.MustRegister(m.polls, m.pollDuration, m.block, m.readErrors)
	return m
}

// Poller is a chains.Client that builds snapshots by reading every registered pool
// at the latest block. Slow consumers only see the most recent snapshot.
type Poller struct {
	reader   *PairReader
	chain    ChainReader
	chainID  uint64
	tokens   []tokenregistry.Token
	registry poolregistry.PoolRegistry
	interval time.Duration
	addrByID map[uint64]common.Address

	differ  *differ.StateDiffer
	metrics *pollerMetrics
	logger  chains.Logger

	last    *engine.State
	stateCh chan *engine.State
	errCh   chan error
}

// NewPoller validates cfg and starts polling until ctx is cancelled. The first
// round runs immediately.
func NewPoller(ctx context.Context, cfg PollerConfig) (*Poller, error) {
	p, err := newPoller(cfg)
	if err != nil {
		return nil, err
	}
	go p.run(ctx)
	return p, nil
}

func newPoller(cfg PollerConfig) (*Poller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	stateDiffer, err := differ.NewStateDiffer(&differ.StateDifferConfig{
		Registry: cfg.Registerer,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create differ: %w", err)
	}

	addrByID := make(map[uint64]common.Address, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		addrByID[t.ID] = t.Address
	}

	p := &Poller{
		reader:   NewPairReader(cfg.Chain),
		chain:    cfg.Chain,
		chainID:  cfg.ChainID,
		tokens:   cfg.Tokens,
		registry: cfg.Registry,
		interval: cfg.Interval,
		addrByID: addrByID,
		differ:   stateDiffer,
		metrics:  newPollerMetrics(cfg.Registerer),
		logger:   cfg.Logger,
		stateCh:  make(chan *engine.State, 1),
		errCh:    make(chan error),
	}
	return p, nil
}

func (p *Poller) State() <-chan *engine.State {
	return p.stateCh
}

// Err is closed when the poller stops. Read failures are logged and retried, never sent.
func (p *Poller) Err() <-chan error {
	return p.errCh
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.errCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	timer := prometheus.NewTimer(p.metrics.pollDuration)
	defer timer.ObserveDuration()

	state, err := p.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("Poll failed", "error", err)
			p.metrics.polls.WithLabelValues("error").Inc()
		}
		return
	}
	if state == nil {
		p.metrics.polls.WithLabelValues("skipped").Inc()
		return
	}

	p.logChanges(state)
	p.last = state
	p.metrics.polls.WithLabelValues("ok").Inc()
	p.metrics.block.Set(float64(state.BlockNumber()))
	p.publish(state)
}

// Snapshot reads the latest block. It returns nil without error when the chain
// has not advanced since the previous snapshot.
func (p *Poller) Snapshot(ctx context.Context) (*engine.State, error) {
	start := time.Now()
	header, err := p.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	if p.last != nil && p.last.Block.Number != nil && header.Number.Cmp(p.last.Block.Number) <= 0 {
		return nil, nil
	}

	state := &engine.State{
		Schema:    engine.StateSchema,
		ChainID:   p.chainID,
		Timestamp: uint64(time.Now().UnixNano()),
		Block: engine.BlockSummary{
			Number:     new(big.Int).Set(header.Number),
			Hash:       header.Hash(),
			Timestamp:  header.Time,
			ReceivedAt: start.UnixNano(),
		},
		Tokens:   p.tokens,
		Registry: p.registry,
	}

	pools, poolErr := p.readPools(ctx, header.Number)
	oracles, oracleErr := p.readOracles(ctx, header.Number)
	state.Pools = pools
	state.Oracles = oracles

	if poolErr != nil || oracleErr != nil {
		state.Errors = make(map[string]string)
		if poolErr != nil {
			state.Errors[engine.ComponentPools] = poolErr.Error()
		}
		if oracleErr != nil {
			state.Errors[engine.ComponentOracles] = oracleErr.Error()
		}
	}
	return state, nil
}

// readPools reads every registered pair concurrently. A pool whose read fails keeps
// its value from the previous snapshot, if any.
func (p *Poller) readPools(ctx context.Context, blockNum *big.Int) ([]uniswapv2.Pool, error) {
	metas := p.registry.Pools
	results := make([]uniswapv2.Pool, len(metas))
	errs := make([]error, len(metas))

	var wg sync.WaitGroup
	for i, meta := range metas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.reader.ReadPool(ctx, meta, p.addrByID[meta.Token0], p.addrByID[meta.Token1], blockNum)
		}()
	}
	wg.Wait()

	previous := make(map[uint64]uniswapv2.Pool)
	if p.last != nil {
		for _, pool := range p.last.Pools {
			previous[pool.ID] = pool
		}
	}

	pools := make([]uniswapv2.Pool, 0, len(metas))
	var failed []error
	for i, meta := range metas {
		if errs[i] != nil {
			p.metrics.readErrors.WithLabelValues(engine.ComponentPools).Inc()
			failed = append(failed, errs[i])
			if prev, ok := previous[meta.ID]; ok {
				pools = append(pools, prev)
			}
			continue
		}
		pools = append(pools, results[i])
	}
	return pools, errors.Join(failed...)
}

// readOracles reads every configured feed. A feed whose read fails keeps its answer
// from the previous snapshot, if any.
func (p *Poller) readOracles(ctx context.Context, blockNum *big.Int) ([]engine.OraclePrice, error) {
	previous := make(map[uint64]engine.OraclePrice)
	if p.last != nil {
		for _, o := range p.last.Oracles {
			previous[o.PoolID] = o
		}
	}

	var (
		oracles []engine.OraclePrice
		failed  []error
	)
	for _, meta := range p.registry.Pools {
		if !meta.HasOracle() {
			continue
		}
		price, err := p.reader.ReadOracle(ctx, meta, blockNum)
		if err != nil {
			p.metrics.readErrors.WithLabelValues(engine.ComponentOracles).Inc()
			failed = append(failed, err)
			if prev, ok := previous[meta.ID]; ok {
				oracles = append(oracles, prev)
			}
			continue
		}
		oracles = append(oracles, price)
	}
	return oracles, errors.Join(failed...)
}

func (p *Poller) logChanges(state *engine.State) {
	if p.last == nil || state.HasErrors() || p.last.HasErrors() {
		p.logger.Info("Snapshot read", "block", state.Block.Number, "pools", len(state.Pools), "errors", len(state.Errors))
		return
	}
	diff, err := p.differ.Diff(p.last, state)
	if err != nil {
		p.logger.Warn("Failed to diff snapshots", "block", state.Block.Number, "error", err)
		return
	}
	p.logger.Info("Snapshot read",
		"block", state.Block.Number,
		"pools_changed", diff.Pools.Changed(),
		"oracles_changed", len(diff.Oracles.Updates)+len(diff.Oracles.Deletions),
	)
}

// publish replaces any snapshot the consumer has not picked up yet.
func (p *Poller) publish(state *engine.State) {
	for {
		select {
		case p.stateCh <- state:
			return
		default:
		}
		select {
		case <-p.stateCh:
		default:
		}
	}
}
