// Package common provides shared constants, errors, and utilities
// used throughout ovpn3ctl.
package common

import "errors"

// Sentinel errors for VPN operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.

	// ErrBackendNotReady is transient: the session manager accepted the
	// session but its backend process has not settled yet. Operations
	// failing with this kind are retried with backoff; everything else
	// propagates immediately.
	ErrBackendNotReady = errors.New("vpn backend not ready")
	// ErrRetryExhausted wraps the last transient error once the retry
	// budget for an operation is spent.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	// ErrAuthFailed reports that the server rejected the credentials
	// during the connection handshake.
	ErrAuthFailed = errors.New("authentication rejected by server")
	// ErrTimeout reports that a connection attempt neither succeeded
	// nor failed within the polling budget.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotConnected reports that no session exists for the profile.
	ErrNotConnected = errors.New("no active session")

	// Credential errors.

	// ErrCredentialsMissing is fatal: the session requires credentials
	// that are not stored. Never retried.
	ErrCredentialsMissing = errors.New("missing user credentials")
	// ErrMalformedSession is fatal: the session demanded credentials
	// but exposed no input slots to fill.
	ErrMalformedSession = errors.New("session exposed no input slots")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration file")
	ErrDuplicateName   = errors.New("profile name already exists")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
