package commands

import "errors"

var (
	// ErrNotFound indicates an unknown command id.
	ErrNotFound = errors.New("commands: not found")
	// ErrNotOwned indicates the command belongs to another device.
	ErrNotOwned = errors.New("commands: owned by another device")
	// ErrExpired indicates the command's validity window has passed.
	ErrExpired = errors.New("commands: expired")
	// ErrInvalidTransition indicates the command already reached a
	// terminal state.
	ErrInvalidTransition = errors.New("commands: invalid transition")
	// ErrInvalidArgument indicates a malformed request.
	ErrInvalidArgument = errors.New("commands: invalid argument")
	// ErrUnknownDevice indicates the target device is not registered.
	ErrUnknownDevice = errors.New("commands: unknown device")
)
