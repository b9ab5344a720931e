package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	commands "hydrofarm-cloud/internal/commands/domain"
)

// CommandRepository is an in-memory command store used by tests.
type CommandRepository struct {
	mu   sync.RWMutex
	rows map[string]commands.Command
}

// NewCommandRepository constructs an empty repository.
func NewCommandRepository() *CommandRepository {
	return &CommandRepository{rows: make(map[string]commands.Command)}
}

// Create inserts a command.
func (r *CommandRepository) Create(_ context.Context, cmd *commands.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[cmd.CommandID] = *cmd
	return nil
}

// GetByID fetches a command by id.
func (r *CommandRepository) GetByID(_ context.Context, commandID string) (*commands.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.rows[commandID]
	if !ok {
		return nil, commands.ErrNotFound
	}
	return &cmd, nil
}

// ListPending returns deliverable commands ordered by priority then age.
func (r *CommandRepository) ListPending(_ context.Context, deviceID string, now time.Time) ([]commands.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []commands.Command
	for _, cmd := range r.rows {
		if cmd.DeviceID == deviceID && cmd.Status == commands.StatusPending && cmd.ExpiresAt.After(now) {
			result = append(result, cmd)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		ri, rj := commands.PriorityRank(result[i].Priority), commands.PriorityRank(result[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// MarkSent transitions pending commands to sent.
func (r *CommandRepository) MarkSent(_ context.Context, commandIDs []string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range commandIDs {
		cmd, ok := r.rows[id]
		if !ok || cmd.Status != commands.StatusPending {
			continue
		}
		cmd.Status = commands.StatusSent
		cmd.SentAt = sentAt
		r.rows[id] = cmd
	}
	return nil
}

// ExpireDue flips deliverable commands past their expiry to expired.
func (r *CommandRepository) ExpireDue(_ context.Context, deviceID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, cmd := range r.rows {
		if cmd.DeviceID != deviceID {
			continue
		}
		if (cmd.Status == commands.StatusPending || cmd.Status == commands.StatusSent) && !now.Before(cmd.ExpiresAt) {
			cmd.Status = commands.StatusExpired
			r.rows[id] = cmd
			count++
		}
	}
	return count, nil
}

// MarkOutcome records an outcome for a deliverable command.
func (r *CommandRepository) MarkOutcome(_ context.Context, commandID, deviceID, status string, result json.RawMessage, executedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.rows[commandID]
	if !ok || cmd.DeviceID != deviceID {
		return false, nil
	}
	if cmd.Status != commands.StatusPending && cmd.Status != commands.StatusSent {
		return false, nil
	}
	cmd.Status = status
	cmd.Result = result
	cmd.ExecutedAt = executedAt
	r.rows[commandID] = cmd
	return true, nil
}

// ListByDeviceAndTime lists commands for a device in a time range.
func (r *CommandRepository) ListByDeviceAndTime(_ context.Context, deviceID string, from, to time.Time) ([]commands.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []commands.Command
	for _, cmd := range r.rows {
		if cmd.DeviceID != deviceID {
			continue
		}
		if cmd.CreatedAt.Before(from) || !cmd.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
