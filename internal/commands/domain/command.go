package commands

import (
	"context"
	"encoding/json"
	"time"
)

// Command statuses. A command only moves forward:
// pending -> sent -> executed|failed, and pending|sent -> expired.
const (
	StatusPending  = "pending"
	StatusSent     = "sent"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusExpired  = "expired"
)

// Command priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

var priorityRanks = map[string]int{
	PriorityLow:    1,
	PriorityNormal: 2,
	PriorityHigh:   3,
}

// NormalizePriority validates a priority value; empty defaults to normal.
func NormalizePriority(value string) (string, bool) {
	if value == "" {
		return PriorityNormal, true
	}
	if _, ok := priorityRanks[value]; !ok {
		return "", false
	}
	return value, true
}

// PriorityRank orders priorities for delivery (high first).
func PriorityRank(value string) int {
	return priorityRanks[value]
}

// Command is a unit of work addressed to one device.
type Command struct {
	CommandID  string          `json:"commandId"`
	DeviceID   string          `json:"deviceId"`
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters"`
	Priority   string          `json:"priority"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	SentAt     time.Time       `json:"sentAt,omitempty"`
	ExecutedAt time.Time       `json:"executedAt,omitempty"`
	ExpiresAt  time.Time       `json:"expiresAt"`
}

// ExpiredBy reports whether the command's validity window has passed while
// it was still deliverable. Expiry is derived at read time, never swept.
func (c *Command) ExpiredBy(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.Status != StatusPending && c.Status != StatusSent {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Repository persists commands. The queue service is the sole writer of
// status, sent_at and executed_at.
type Repository interface {
	Create(ctx context.Context, cmd *Command) error
	GetByID(ctx context.Context, commandID string) (*Command, error)
	// ListPending returns pending commands for the device whose expiry is
	// still in the future, ordered priority desc, created_at asc.
	ListPending(ctx context.Context, deviceID string, now time.Time) ([]Command, error)
	// MarkSent transitions pending commands to sent; already-sent ids are
	// left untouched.
	MarkSent(ctx context.Context, commandIDs []string, sentAt time.Time) error
	// ExpireDue flips pending/sent commands past their expiry to expired
	// and reports how many rows changed.
	ExpireDue(ctx context.Context, deviceID string, now time.Time) (int, error)
	// MarkOutcome transitions a deliverable command to executed or failed.
	// It must only touch rows still in pending/sent state and report
	// whether a row changed.
	MarkOutcome(ctx context.Context, commandID, deviceID, status string, result json.RawMessage, executedAt time.Time) (bool, error)
	// ListByDeviceAndTime lists commands for audit/export.
	ListByDeviceAndTime(ctx context.Context, deviceID string, from, to time.Time) ([]Command, error)
}

// Clock abstracts time for expiry decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
