// Package outbox defines the append-only queue of actions performed while
// offline, replayed against the remote API once connectivity and
// authentication are restored.
package outbox

import (
	"encoding/json"
	"time"
)

type ActionType string

const (
	ActionAddStory       ActionType = "addStory"
	ActionToggleFavorite ActionType = "toggleFavorite"
)

// Action is a single queued operation. Timestamp doubles as the primary key
// and the replay order; it is never mutated after creation except for the
// Synced flag, which flips to true exactly once after a successful replay.
type Action struct {
	Timestamp int64           `json:"timestamp"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Synced    bool            `json:"synced"`
}

// NewAction builds an action keyed by the current time. Callers creating
// several actions in the same millisecond must bump the timestamp themselves;
// the store rejects duplicate keys.
func NewAction(t ActionType, payload any, now time.Time) (*Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Action{
		Timestamp: now.UnixMilli(),
		Type:      t,
		Payload:   raw,
	}, nil
}
