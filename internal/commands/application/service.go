package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	commandsevents "hydrofarm-cloud/internal/commands/application/events"
	commands "hydrofarm-cloud/internal/commands/domain"
	"hydrofarm-cloud/internal/devices"
	"hydrofarm-cloud/internal/eventing"
	"hydrofarm-cloud/internal/observability/metrics"
)

const defaultCommandTTL = 5 * time.Minute

// CreateRequest describes an operator-issued command.
type CreateRequest struct {
	DeviceID   string          `json:"deviceId"`
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters"`
	Priority   string          `json:"priority"`
	ExpiresAt  *time.Time      `json:"expiresAt"`
}

// AckRequest describes a device acknowledgment.
type AckRequest struct {
	CommandID string          `json:"commandId"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
}

// Service owns the command lifecycle.
type Service struct {
	repo       commands.Repository
	deviceRepo devices.Repository
	bus        eventing.EventBus
	clock      commands.Clock
	defaultTTL time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the clock, for tests.
func WithClock(clock commands.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDefaultTTL overrides the default expiry horizon.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// NewService constructs a command service.
func NewService(repo commands.Repository, deviceRepo devices.Repository, bus eventing.EventBus, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("commands: nil repo")
	}
	if deviceRepo == nil {
		return nil, errors.New("commands: nil device repo")
	}
	s := &Service{
		repo:       repo,
		deviceRepo: deviceRepo,
		bus:        bus,
		clock:      commands.SystemClock{},
		defaultTTL: defaultCommandTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates and queues a new command in pending state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*commands.Command, error) {
	if req.DeviceID == "" {
		return nil, fmt.Errorf("%w: deviceId is required", commands.ErrInvalidArgument)
	}
	if req.Action == "" {
		return nil, fmt.Errorf("%w: action is required", commands.ErrInvalidArgument)
	}
	priority, ok := commands.NormalizePriority(req.Priority)
	if !ok {
		return nil, fmt.Errorf("%w: priority %q", commands.ErrInvalidArgument, req.Priority)
	}
	parameters := req.Parameters
	if len(parameters) == 0 {
		parameters = json.RawMessage("{}")
	}
	if !json.Valid(parameters) {
		return nil, fmt.Errorf("%w: parameters must be valid JSON", commands.ErrInvalidArgument)
	}

	if _, err := s.deviceRepo.GetByID(ctx, req.DeviceID); err != nil {
		if errors.Is(err, devices.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", commands.ErrUnknownDevice, req.DeviceID)
		}
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.defaultTTL)
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiresAt must be in the future", commands.ErrInvalidArgument)
	}

	cmd := &commands.Command{
		CommandID:  "cmd-" + uuid.NewString(),
		DeviceID:   req.DeviceID,
		Action:     req.Action,
		Parameters: parameters,
		Priority:   priority,
		Status:     commands.StatusPending,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}
	metrics.IncCommandIssued()

	s.publish(ctx, commandsevents.CommandIssued{
		CommandID:  cmd.CommandID,
		DeviceID:   cmd.DeviceID,
		Action:     cmd.Action,
		Parameters: cmd.Parameters,
		Priority:   cmd.Priority,
		OccurredAt: now,
	})
	return cmd, nil
}

// PollPending returns the deliverable batch for a device and marks it sent
// within the same logical request, so a retried poll does not re-deliver.
// Due commands are lazily flipped to expired as a side effect of this read.
func (s *Service) PollPending(ctx context.Context, deviceID string) ([]commands.Command, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: deviceId is required", commands.ErrInvalidArgument)
	}
	now := s.clock.Now()

	expired, err := s.repo.ExpireDue(ctx, deviceID, now)
	if err != nil {
		return nil, err
	}
	if expired > 0 {
		metrics.AddCommandsExpired(expired)
	}

	batch, err := s.repo.ListPending(ctx, deviceID, now)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return batch, nil
	}

	ids := make([]string, len(batch))
	for i := range batch {
		ids[i] = batch[i].CommandID
	}
	if err := s.repo.MarkSent(ctx, ids, now); err != nil {
		return nil, err
	}
	for i := range batch {
		batch[i].Status = commands.StatusSent
		batch[i].SentAt = now
	}
	metrics.AddCommandsDelivered(len(batch))

	_ = s.deviceRepo.TouchLastSeen(ctx, deviceID, now)
	return batch, nil
}

// Acknowledge records a device-reported outcome for a sent command.
func (s *Service) Acknowledge(ctx context.Context, deviceID, commandID, outcome string, result json.RawMessage) (*commands.Command, error) {
	if commandID == "" {
		return nil, fmt.Errorf("%w: commandId is required", commands.ErrInvalidArgument)
	}
	if outcome != commands.StatusExecuted && outcome != commands.StatusFailed {
		return nil, fmt.Errorf("%w: status must be %q or %q", commands.ErrInvalidArgument, commands.StatusExecuted, commands.StatusFailed)
	}
	if len(result) > 0 && !json.Valid(result) {
		return nil, fmt.Errorf("%w: result must be valid JSON", commands.ErrInvalidArgument)
	}

	cmd, err := s.repo.GetByID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	if cmd.DeviceID != deviceID {
		return nil, commands.ErrNotOwned
	}

	now := s.clock.Now()
	if cmd.ExpiredBy(now) {
		if _, err := s.repo.ExpireDue(ctx, deviceID, now); err == nil {
			metrics.AddCommandsExpired(1)
		}
		return nil, commands.ErrExpired
	}
	if cmd.Status != commands.StatusPending && cmd.Status != commands.StatusSent {
		return nil, commands.ErrInvalidTransition
	}

	changed, err := s.repo.MarkOutcome(ctx, commandID, deviceID, outcome, result, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race against another transition; re-derive the verdict.
		return nil, commands.ErrInvalidTransition
	}

	cmd.Status = outcome
	cmd.Result = result
	cmd.ExecutedAt = now
	metrics.IncCommandAcked(outcome)

	_ = s.deviceRepo.TouchLastSeen(ctx, deviceID, now)
	s.publish(ctx, commandsevents.CommandAcknowledged{
		CommandID:  commandID,
		DeviceID:   deviceID,
		Outcome:    outcome,
		OccurredAt: now,
	})
	return cmd, nil
}

// Get returns a command with its expiry derived against the current time.
func (s *Service) Get(ctx context.Context, commandID string) (*commands.Command, error) {
	cmd, err := s.repo.GetByID(ctx, commandID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if cmd.ExpiredBy(now) {
		if _, err := s.repo.ExpireDue(ctx, cmd.DeviceID, now); err == nil {
			metrics.AddCommandsExpired(1)
		}
		cmd.Status = commands.StatusExpired
	}
	return cmd, nil
}

// ListByDevice lists commands for audit and export.
func (s *Service) ListByDevice(ctx context.Context, deviceID string, from, to time.Time) ([]commands.Command, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: deviceId is required", commands.ErrInvalidArgument)
	}
	return s.repo.ListByDeviceAndTime(ctx, deviceID, from.UTC(), to.UTC())
}

func (s *Service) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, event)
}
