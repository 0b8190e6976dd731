package quoter

import "errors"

var (
	// ErrNoState is returned before the first snapshot has arrived.
	ErrNoState = errors.New("no reserve snapshot available yet")
	// ErrUnknownToken is returned when a token reference matches no address or symbol.
	ErrUnknownToken = errors.New("unknown token")
	// ErrSameToken is returned when both sides of a request are the same token.
	ErrSameToken = errors.New("input and output token are the same")
	// ErrInvalidAmount is returned for a missing or non-positive amount.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrPoolNotFound is returned when no pool pairs the requested tokens.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrNoRoute is returned when neither a direct pool nor a two-hop route connects the tokens.
	ErrNoRoute = errors.New("no route between tokens")
	// ErrExactOutputMultiHop is returned when an exact-output quote would need more than one hop.
	ErrExactOutputMultiHop = errors.New("exact-output quotes are only supported through a direct pool")
	// ErrNoOracle is returned for an oracle-priced zap on a pool without a feed answer.
	ErrNoOracle = errors.New("pool has no oracle price")
	// ErrUnknownPriceSource is returned for a price source other than pool or oracle.
	ErrUnknownPriceSource = errors.New("unknown price source")
)
