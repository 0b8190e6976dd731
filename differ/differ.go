package differ

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/defistate/ammquote-go/engine"
	poolregistry "github.com/defistate/ammquote-go/protocols/poolregistry"
	tokenregistry "github.com/defistate/ammquote-go/protocols/tokenregistry"
	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/prometheus/client_golang/prometheus"
)

// StateDifferConfig holds the dependencies of a StateDiffer.
type StateDifferConfig struct {
	Registry prometheus.Registerer
	Logger   Logger
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *StateDifferConfig) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// StateDiffer computes block-to-block diffs of snapshots.
type StateDiffer struct {
	metrics *Metrics
	logger  Logger
}

// NewStateDiffer constructs a new differ from a configuration, returning an error if the config is invalid.
func NewStateDiffer(cfg *StateDifferConfig) (*StateDiffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &StateDiffer{
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
	}, nil
}

// Diff computes the changes from old to new. Both snapshots must be free of errors,
// belong to the same chain and share a schema.
func (d *StateDiffer) Diff(old, new *engine.State) (*StateDiff, error) {
	totalTimer := prometheus.NewTimer(d.metrics.diffDuration.WithLabelValues())
	defer totalTimer.ObserveDuration()

	if old == nil || new == nil {
		return nil, errors.New("differ: nil state")
	}
	if old.HasErrors() || new.HasErrors() {
		return nil, errors.New("differ: received state with errors")
	}
	if old.ChainID != new.ChainID {
		return nil, fmt.Errorf("differ: chain mismatch (old=%d, new=%d)", old.ChainID, new.ChainID)
	}
	if old.Schema != new.Schema {
		return nil, fmt.Errorf("differ: schema mismatch (old=%q, new=%q)", old.Schema, new.Schema)
	}

	diff := &StateDiff{
		Schema:    new.Schema,
		Timestamp: uint64(time.Now().UnixNano()),
		FromBlock: old.BlockNumber(),
		ToBlock:   new.Block,
		Tokens:    tokenregistry.Differ(old.Tokens, new.Tokens),
		Registry:  poolregistry.Differ(old.Registry, new.Registry),
		Pools:     uniswapv2.Differ(old.Pools, new.Pools),
		Oracles:   diffOracles(old.Oracles, new.Oracles),
	}

	d.metrics.changes.WithLabelValues("tokens").Add(float64(len(diff.Tokens.Additions) + len(diff.Tokens.Updates) + len(diff.Tokens.Deletions)))
	d.metrics.changes.WithLabelValues("registry").Add(float64(len(diff.Registry.Additions) + len(diff.Registry.Updates) + len(diff.Registry.Deletions)))
	d.metrics.changes.WithLabelValues(engine.ComponentPools).Add(float64(diff.Pools.Changed()))
	d.metrics.changes.WithLabelValues(engine.ComponentOracles).Add(float64(len(diff.Oracles.Updates) + len(diff.Oracles.Deletions)))

	d.logger.Debug("Computed state diff",
		"from_block", diff.FromBlock,
		"to_block", diff.ToBlock.Number,
		"pools_changed", diff.Pools.Changed(),
		"oracles_changed", len(diff.Oracles.Updates)+len(diff.Oracles.Deletions),
	)

	return diff, nil
}

func diffOracles(old, new []engine.OraclePrice) OracleDiff {
	oldByPool := make(map[uint64]engine.OraclePrice, len(old))
	for _, o := range old {
		oldByPool[o.PoolID] = o
	}
	newByPool := make(map[uint64]struct{}, len(new))

	var diff OracleDiff
	for _, o := range new {
		newByPool[o.PoolID] = struct{}{}
		if prev, ok := oldByPool[o.PoolID]; !ok || !prev.Equal(o) {
			diff.Updates = append(diff.Updates, o)
		}
	}
	for _, o := range old {
		if _, ok := newByPool[o.PoolID]; !ok {
			diff.Deletions = append(diff.Deletions, o.PoolID)
		}
	}
	slices.SortFunc(diff.Updates, func(a, b engine.OraclePrice) int { return cmp.Compare(a.PoolID, b.PoolID) })
	slices.Sort(diff.Deletions)
	return diff
}
