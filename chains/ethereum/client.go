package ethereum

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/defistate/ammquote-go/chains"
	"github.com/defistate/ammquote-go/engine"
	"github.com/defistate/ammquote-go/patcher"
	jsonrpcclient "github.com/defistate/ammquote-go/streams/jsonrpc/client"

	poolregistryindexer "github.com/defistate/ammquote-go/protocols/poolregistry/indexer"
	tokenregistryindexer "github.com/defistate/ammquote-go/protocols/tokenregistry/indexer"
	uniswapv2indexer "github.com/defistate/ammquote-go/protocols/uniswapv2/indexer"
)

const DefaultStreamBufferSize = 100

// Client orchestrates the ingestion and indexing of reserve snapshots.
// Its lifecycle is bound to the context passed during Dial, Poll or NewClient.
type Client struct {
	stream  chains.Client
	logger  chains.Logger
	stateCh chan *State
	errCh   chan error

	// Immutable Indexers (set via Options)
	tokenIndexer        chains.TokenIndexer
	poolRegistryIndexer chains.PoolRegistryIndexer
	uniswapV2Indexer    chains.UniswapV2Indexer

	ctx context.Context
	wg  sync.WaitGroup
}

// Option configures the Client.
// The interface method is unexported to prevent external modification after Dial.
type Option interface {
	apply(*Client)
}

type funcOption func(*Client)

func (f funcOption) apply(p *Client) {
	f(p)
}

func newOption(f func(*Client)) Option {
	return funcOption(f)
}

// Dial subscribes to a snapshot stream at url and starts the processing loop.
// The returned Client will remain active until the provided ctx is cancelled.
func Dial(
	ctx context.Context,
	url string,
	logger chains.Logger,
	opts ...Option,
) (*Client, error) {
	stream, err := jsonrpcclient.NewClient(ctx, jsonrpcclient.Config{
		URL:          url,
		Logger:       logger,
		BufferSize:   DefaultStreamBufferSize,
		StatePatcher: patcher.Patch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial state stream url: %w", err)
	}

	logger.Info("Client started", "mode", "stream", "url", url)
	return NewClient(ctx, stream, logger, opts...), nil
}

// Poll reads pools directly over RPC as described by cfg and starts the processing loop.
func Poll(ctx context.Context, cfg PollerConfig, opts ...Option) (*Client, error) {
	poller, err := NewPoller(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start poller: %w", err)
	}

	cfg.Logger.Info("Client started", "mode", "poll", "pools", len(cfg.Registry.Pools), "interval", cfg.Interval)
	return NewClient(ctx, poller, cfg.Logger, opts...), nil
}

// NewClient indexes every snapshot produced by stream.
func NewClient(ctx context.Context, stream chains.Client, logger chains.Logger, opts ...Option) *Client {
	p := &Client{
		stream:              stream,
		logger:              logger,
		stateCh:             make(chan *State, 1),
		errCh:               make(chan error, 1),
		tokenIndexer:        tokenregistryindexer.New(),
		poolRegistryIndexer: poolregistryindexer.New(),
		uniswapV2Indexer:    uniswapv2indexer.New(),
	}

	for _, opt := range opts {
		opt.apply(p)
	}

	// Bind the Client's lifecycle to the user-provided context
	p.ctx = ctx
	p.wg.Add(1)
	go p.loop()
	return p
}

// State delivers indexed snapshots. If the consumer is slow, older undelivered
// snapshots are replaced by newer ones.
func (p *Client) State() <-chan *State {
	return p.stateCh
}

func (p *Client) Err() <-chan error {
	return p.errCh
}

// Wait blocks until the processing loop has exited.
func (p *Client) Wait() {
	p.wg.Wait()
}

func (p *Client) loop() {
	defer p.wg.Done()
	defer func() {
		close(p.stateCh)
		close(p.errCh)
		p.logger.Info("Client stopped")
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case err, ok := <-p.stream.Err():
			if !ok {
				p.logger.Info("Upstream source stopped")
				return
			}
			p.logger.Error("Fatal client error", "err", err)
			select {
			case p.errCh <- err:
			case <-p.ctx.Done():
			}
			return

		case rawState, ok := <-p.stream.State():
			if !ok {
				p.logger.Error("Upstream state channel closed")
				return
			}
			if rawState == nil {
				continue
			}

			processed, err := p.processState(rawState)
			if err != nil {
				p.logger.Error("Failed to process state", "block", rawState.Block.Number, "err", err)
				continue
			}
			p.publish(processed)
		}
	}
}

func (p *Client) publish(state *State) {
	for {
		select {
		case p.stateCh <- state:
			return
		default:
		}
		select {
		case old := <-p.stateCh:
			p.logger.Warn("State buffer full, replacing undelivered state", "dropped_block", old.Block.Number, "block", state.Block.Number)
		default:
		}
	}
}

// State is an indexed reserve snapshot, ready for quoting.
type State struct {
	ChainID             uint64
	IndexedTokenSystem  tokenregistryindexer.IndexedTokenSystem
	IndexedPoolRegistry poolregistryindexer.IndexedPoolRegistry
	IndexedUniswapV2    uniswapv2indexer.IndexedUniswapV2
	Oracles             map[uint64]engine.OraclePrice
	Block               engine.BlockSummary
	// Errors is copied from the raw snapshot; affected components may be stale.
	Errors            map[string]string
	ProcessedAtUnixNs uint64
}

// Oracle returns the latest feed answer attached to poolID.
func (s *State) Oracle(poolID uint64) (engine.OraclePrice, bool) {
	o, ok := s.Oracles[poolID]
	return o, ok
}

func (p *Client) processState(rawState *engine.State) (*State, error) {
	if rawState.Schema != "" && rawState.Schema != engine.StateSchema {
		return nil, fmt.Errorf("unsupported schema %q", rawState.Schema)
	}
	if rawState.Block.Number == nil {
		return nil, fmt.Errorf("state has no block number")
	}

	indexingStart := time.Now()
	p.logger.Debug("New state received, starting processing", "block", rawState.Block.Number)

	var (
		wg sync.WaitGroup

		indexedTokenSystem  tokenregistryindexer.IndexedTokenSystem
		indexedPoolRegistry poolregistryindexer.IndexedPoolRegistry
		indexedUniswapV2    uniswapv2indexer.IndexedUniswapV2
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		indexedTokenSystem = p.tokenIndexer.Index(rawState.Tokens)
	}()
	go func() {
		defer wg.Done()
		indexedPoolRegistry = p.poolRegistryIndexer.Index(rawState.Registry)
	}()
	go func() {
		defer wg.Done()
		indexedUniswapV2 = p.uniswapV2Indexer.Index(rawState.Pools)
	}()

	oracles := make(map[uint64]engine.OraclePrice, len(rawState.Oracles))
	for _, o := range rawState.Oracles {
		oracles[o.PoolID] = o
	}

	wg.Wait()

	p.logger.Info("Snapshot indexed",
		"block", rawState.Block.Number,
		"tokens", len(rawState.Tokens),
		"pools", indexedUniswapV2.Len(),
		"oracles", len(oracles),
		"duration_ms", time.Since(indexingStart).Milliseconds(),
	)

	return &State{
		ChainID:             rawState.ChainID,
		IndexedTokenSystem:  indexedTokenSystem,
		IndexedPoolRegistry: indexedPoolRegistry,
		IndexedUniswapV2:    indexedUniswapV2,
		Oracles:             oracles,
		Block:               rawState.Block,
		Errors:              maps.Clone(rawState.Errors),
		ProcessedAtUnixNs:   uint64(time.Now().UnixNano()),
	}, nil
}

// Options Constructors for the Client

func WithTokenIndexer(indexer chains.TokenIndexer) Option {
	return newOption(func(p *Client) {
		p.tokenIndexer = indexer
	})
}

func WithPoolRegistryIndexer(indexer chains.PoolRegistryIndexer) Option {
	return newOption(func(p *Client) {
		p.poolRegistryIndexer = indexer
	})
}

func WithUniswapV2Indexer(indexer chains.UniswapV2Indexer) Option {
	return newOption(func(p *Client) {
		p.uniswapV2Indexer = indexer
	})
}
