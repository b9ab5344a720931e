package auth

import "errors"

var (
	// ErrUnauthenticated indicates a bad, missing or expired credential.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden indicates the caller's role or ownership is insufficient.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrDeviceMismatch indicates the credential resolves to another device.
	ErrDeviceMismatch = errors.New("auth: device mismatch")
)
