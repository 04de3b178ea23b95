// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file defines the tunnel service abstraction the rest of
// the package is written against.
package vpn

// StatusMajor is the coarse phase a session reports.
type StatusMajor uint32

// Major status phases published by the session manager.
const (
	MajorUnset      StatusMajor = 0
	MajorConfig     StatusMajor = 1
	MajorConnection StatusMajor = 2
	MajorSession    StatusMajor = 3
	MajorPKCS11     StatusMajor = 4
	MajorProcess    StatusMajor = 5
)

// String returns a human-readable representation of the major status.
func (m StatusMajor) String() string {
	switch m {
	case MajorConfig:
		return "Configuration"
	case MajorConnection:
		return "Connection"
	case MajorSession:
		return "Session"
	case MajorPKCS11:
		return "PKCS#11"
	case MajorProcess:
		return "Process"
	default:
		return "Unknown"
	}
}

// StatusMinor is the detailed reason code within a major phase.
type StatusMinor uint32

// Minor status codes the orchestrator cares about. The enumeration
// follows the OpenVPN 3 Linux client's status model; codes not listed
// here are treated as "still pending" during connection polling.
const (
	MinorUnset             StatusMinor = 0
	MinorCfgOK             StatusMinor = 2
	MinorCfgRequireUser    StatusMinor = 4
	MinorConnInit          StatusMinor = 5
	MinorConnConnecting    StatusMinor = 6
	MinorConnConnected     StatusMinor = 7
	MinorConnDisconnecting StatusMinor = 8
	MinorConnDisconnected  StatusMinor = 9
	MinorConnFailed        StatusMinor = 10
	MinorConnAuthFailed    StatusMinor = 11
	MinorConnReconnecting  StatusMinor = 12
	MinorConnDone          StatusMinor = 16
	MinorSessNew           StatusMinor = 17
	MinorSessAuthUserPass  StatusMinor = 20
	MinorSessAuthChallenge StatusMinor = 21
)

// String returns a human-readable representation of the minor status.
func (m StatusMinor) String() string {
	switch m {
	case MinorCfgOK:
		return "Configuration OK"
	case MinorCfgRequireUser:
		return "Configuration requires user input"
	case MinorConnInit:
		return "Initializing"
	case MinorConnConnecting:
		return "Connecting..."
	case MinorConnConnected:
		return "Connected"
	case MinorConnDisconnecting:
		return "Disconnecting..."
	case MinorConnDisconnected:
		return "Disconnected"
	case MinorConnFailed:
		return "Connection failed"
	case MinorConnAuthFailed:
		return "Authentication failed"
	case MinorConnReconnecting:
		return "Reconnecting..."
	case MinorConnDone:
		return "Done"
	case MinorSessNew:
		return "New session"
	case MinorSessAuthUserPass:
		return "Awaiting credentials"
	case MinorSessAuthChallenge:
		return "Awaiting challenge response"
	default:
		return "Unknown"
	}
}

// Status is a session's externally observed state: a major phase, a
// minor reason code, and an optional backend message.
type Status struct {
	Major   StatusMajor
	Minor   StatusMinor
	Message string
}

// String formats the status for logs and the status command.
func (s Status) String() string {
	if s.Message == "" {
		return s.Major.String() + " / " + s.Minor.String()
	}
	return s.Major.String() + " / " + s.Minor.String() + " (" + s.Message + ")"
}

// SlotRole identifies what value a pending input slot expects.
type SlotRole int

const (
	// RoleUnknown means the slot's variable name was not recognized;
	// the slot's label is used to prompt interactively instead.
	RoleUnknown SlotRole = iota
	RoleUsername
	RolePassword
	// RoleChallenge covers second-factor challenge inputs such as
	// static_challenge responses.
	RoleChallenge
)

// String returns a human-readable representation of the slot role.
func (r SlotRole) String() string {
	switch r {
	case RoleUsername:
		return "username"
	case RolePassword:
		return "password"
	case RoleChallenge:
		return "challenge"
	default:
		return "unknown"
	}
}

// ConfigRef is a handle to an imported VPN configuration owned by the
// tunnel service.
type ConfigRef interface {
	// Path returns the service-side object path of the configuration.
	Path() string
}

// InputSlot is a backend-exposed request for one credential value.
// A slot is consumed by providing a value exactly once.
type InputSlot interface {
	// Role reports what kind of value the slot expects, derived from
	// the slot's declared variable name.
	Role() SlotRole
	// Label returns the slot's human-readable prompt text.
	Label() string
	// Provide submits the value for this slot.
	Provide(value string) error
}

// Session is a handle to one tunnel attempt owned by the tunnel
// service. The orchestrator reads and commands the session but never
// owns or destroys the underlying tunnel resource.
type Session interface {
	// Path returns the service-side object path of the session.
	Path() string
	// GetStatus reports the session's current status. It fails with an
	// error matching common.ErrBackendNotReady while the backend
	// process is still settling.
	GetStatus() (Status, error)
	// Ready asks the backend whether the session can proceed. It fails
	// with an error matching common.ErrCredentialsMissing when user
	// credentials are required first.
	Ready() error
	// Connect starts or resumes the tunnel handshake.
	Connect() error
	// Disconnect tears the session down.
	Disconnect() error
	// FetchInputSlots returns the pending credential requests, in the
	// order the backend wants them filled.
	FetchInputSlots() ([]InputSlot, error)
}

// Service is the tunnel-management service the orchestrator drives.
// Implementations own configuration import, session creation and
// lookup, and the tunnel itself.
type Service interface {
	// LookupConfig finds an already imported configuration by profile
	// name. The boolean reports whether one was found.
	LookupConfig(name string) (ConfigRef, bool, error)
	// ImportConfig imports a configuration under the profile name.
	ImportConfig(name, body string) (ConfigRef, error)
	// LookupSession finds an existing session by profile name.
	LookupSession(name string) (Session, bool, error)
	// NewSession starts a new tunnel session for the configuration.
	NewSession(cfg ConfigRef) (Session, error)
}
