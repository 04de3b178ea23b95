// Package common provides shared constants, errors, and utilities
// used throughout ovpn3ctl.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "ovpn3ctl"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "ovpn3ctl"
)

// File names used by the application.
const (
	ProfilesFileName = "profiles.yaml"
	HistoryFileName  = "history.db"
	LogFileName      = "ovpn3ctl.log"
)

// Retry defaults. The VPN backend may report "not ready" for a while
// after a session is created; every operation that tolerates this uses
// the same bounded exponential backoff.
const (
	// DefaultRetryAttempts is the maximum number of tries per operation.
	DefaultRetryAttempts = 8
	// DefaultRetryDelay is the wait before the second attempt; it
	// doubles on each subsequent attempt.
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultRetryMaxDelay caps the per-attempt wait.
	DefaultRetryMaxDelay = 8 * time.Second
)

// RedactedSecret is the placeholder logged in place of any secret value.
const RedactedSecret = "***"
