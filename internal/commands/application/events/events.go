package events

import (
	"encoding/json"
	"time"
)

// CommandIssued is published after a new command is queued.
type CommandIssued struct {
	CommandID  string          `json:"command_id"`
	DeviceID   string          `json:"device_id"`
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters"`
	Priority   string          `json:"priority"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// CommandAcknowledged is published after a device reports an outcome.
type CommandAcknowledged struct {
	CommandID  string    `json:"command_id"`
	DeviceID   string    `json:"device_id"`
	Outcome    string    `json:"outcome"`
	OccurredAt time.Time `json:"occurred_at"`
}
