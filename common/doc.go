// Package common provides shared constants, errors, and utilities
// used throughout ovpn3ctl.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: application-wide constants like retry defaults and file names
//   - Errors: sentinel errors for consistent error handling across packages
//   - Logger: leveled logging with optional file output and rotation
//   - Utils: helpers for locating the application's config and data directories
//
// # Usage
//
//	import "github.com/ovpn3-tools/ovpn3ctl/common"
//
//	common.LogInfo("Connecting profile %s", name)
//
//	if errors.Is(err, common.ErrCredentialsMissing) {
//	    // run setup first
//	}
package common
