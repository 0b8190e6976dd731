package client

import "encoding/json"

// Event types carried by SubscriptionEvent.Type.
const (
	EventFull = "full"
	EventDiff = "diff"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SubscriptionEvent is one notification of the state stream. Payload is an engine.State
// for full events and a differ.StateDiff for diff events.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"` // Unix nanoseconds
}
