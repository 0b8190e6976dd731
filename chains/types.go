package chains

import (
	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	poolregistryindexer "github.com/defistate/ammquote-go/protocols/poolregistry/indexer"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	tokenregistryindexer "github.com/defistate/ammquote-go/protocols/tokenregistry/indexer"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	uniswapv2indexer "github.com/defistate/ammquote-go/protocols/uniswapv2/indexer"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client is a source of raw reserve snapshots: a stream subscription or an RPC poller.
type Client interface {
	State() <-chan *engine.State
	Err() <-chan error
}

// TokenIndexer defines the interface for any component that can index tokens.
type TokenIndexer interface {
	Index(tokens []tokenregistry.Token) tokenregistryindexer.IndexedTokenSystem
}

// PoolRegistryIndexer defines the interface for any component that can index pool registries.
type PoolRegistryIndexer interface {
	Index(poolregistry.PoolRegistry) poolregistryindexer.IndexedPoolRegistry
}

// UniswapV2Indexer defines the interface for any component that can index Uniswap V2 pools.
type UniswapV2Indexer interface {
	Index(pools []uniswapv2.Pool) uniswapv2indexer.IndexedUniswapV2
}
