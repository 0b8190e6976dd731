package differ

import (
	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OracleDiff carries feed answers that changed, keyed by pool.
type OracleDiff struct {
	Updates   []engine.OraclePrice `json:"updates,omitempty"`
	Deletions []uint64             `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d OracleDiff) IsEmpty() bool {
	return len(d.Updates) == 0 && len(d.Deletions) == 0
}

// StateDiff represents a summary of changes FromBlock to ToBlock.
type StateDiff struct {
	Schema    string                        `json:"schema"`
	Timestamp uint64                        `json:"timestamp"`
	FromBlock uint64                        `json:"fromBlock"`
	ToBlock   engine.BlockSummary           `json:"toBlock"`
	Tokens    tokenregistry.TokenSystemDiff `json:"tokens"`
	Registry  poolregistry.PoolRegistryDiff `json:"registry"`
	Pools     uniswapv2.UniswapV2SystemDiff `json:"pools"`
	Oracles   OracleDiff                    `json:"oracles"`
	Errors    map[string]string             `json:"errors,omitempty"`
}

// IsEmpty reports whether applying the diff would change anything but the block.
func (d *StateDiff) IsEmpty() bool {
	return d.Tokens.IsEmpty() &&
		d.Registry.IsEmpty() &&
		d.Pools.IsEmpty() &&
		d.Oracles.IsEmpty()
}
