// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file contains the connection orchestrator: the state
// machine that sequences readiness checks, authentication, the second
// factor, and connect requests.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// State is the orchestrator's position in the connection sequence.
type State int

const (
	StateCreated State = iota
	StateAwaitingReadiness
	StateAwaitingCredentials
	StateAuthenticated
	StateConnecting
	StateAwaitingMFA
	StateConnected
	StateDisconnected
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateAwaitingReadiness:
		return "Awaiting readiness"
	case StateAwaitingCredentials:
		return "Awaiting credentials"
	case StateAuthenticated:
		return "Authenticated"
	case StateConnecting:
		return "Connecting..."
	case StateAwaitingMFA:
		return "Awaiting second factor"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PromptFunc asks the user for one value, using the given label as the
// prompt text, and returns the typed string verbatim.
type PromptFunc func(label string) (string, error)

// Orchestrator drives one profile's connection attempt at a time. The
// tunnel service, credential resolver, and prompt are injected so the
// machine can run against test doubles; no two orchestration runs may
// share a session concurrently.
type Orchestrator struct {
	// Name is the profile name, which keys both the service-side
	// configuration and the session lookup.
	Name string
	// ConfigPath is the local configuration file imported when the
	// service does not know the profile yet.
	ConfigPath string

	Service     Service
	Credentials CredentialResolver
	Prompt      PromptFunc
	Retry       RetryPolicy

	state   State
	onState func(State)
}

// NewOrchestrator creates an orchestrator with the default retry
// policy.
func NewOrchestrator(name, configPath string, svc Service, creds CredentialResolver, prompt PromptFunc) *Orchestrator {
	return &Orchestrator{
		Name:        name,
		ConfigPath:  configPath,
		Service:     svc,
		Credentials: creds,
		Prompt:      prompt,
		Retry:       DefaultRetryPolicy(),
	}
}

// SetOnStateChange sets a callback invoked on every state transition.
func (o *Orchestrator) SetOnStateChange(handler func(State)) {
	o.onState = handler
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	common.LogDebug("State: %s", s)
	if o.onState != nil {
		o.onState(s)
	}
}

func (o *Orchestrator) poller() StatusPoller {
	return StatusPoller{Retry: o.Retry}
}

// fail records the terminal failure state and returns err unchanged.
func (o *Orchestrator) fail(err error) error {
	o.setState(StateFailed)
	return err
}

// Connect takes the session from creation to a connected tunnel. On
// any failure the caller should invoke Disconnect as best-effort
// cleanup before surfacing the error.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.setState(StateCreated)

	session, err := o.obtainSession()
	if err != nil {
		return o.fail(err)
	}

	o.setState(StateAwaitingReadiness)
	if _, err := o.poller().Wait(ctx, session); err != nil {
		return o.fail(err)
	}

	// A cached session passes Ready() without credentials; otherwise
	// the session manager demands them before anything else.
	switch err := session.Ready(); {
	case err == nil:
	case errors.Is(err, common.ErrCredentialsMissing):
		o.setState(StateAwaitingCredentials)
		if err := o.authenticate(ctx, session); err != nil {
			return o.fail(err)
		}
	default:
		return o.fail(err)
	}
	o.setState(StateAuthenticated)

	o.setState(StateConnecting)
	if err := session.Connect(); err != nil {
		return o.fail(err)
	}

	if err := o.submitSecondFactor(ctx, session); err != nil {
		return o.fail(err)
	}

	o.setState(StateConnecting)
	return o.awaitConnected(ctx, session)
}

// Disconnect looks up the profile's session, confirms the backend is
// responsive, and tears the session down. The disconnect call itself
// is not retried; a failure propagates directly.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	session, found, err := o.Service.LookupSession(o.Name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w for profile %s", common.ErrNotConnected, o.Name)
	}

	if _, err := o.poller().Wait(ctx, session); err != nil {
		return err
	}

	if err := session.Disconnect(); err != nil {
		return err
	}
	o.setState(StateDisconnected)
	common.LogInfo("Disconnected profile %s", o.Name)
	return nil
}

// obtainSession reuses the profile's existing session when the service
// has one, otherwise starts a new tunnel, importing the configuration
// first if the service does not know it.
func (o *Orchestrator) obtainSession() (Session, error) {
	session, found, err := o.Service.LookupSession(o.Name)
	if err != nil {
		return nil, err
	}
	if found {
		common.LogDebug("Reusing session %s", session.Path())
		return session, nil
	}

	cfg, found, err := o.Service.LookupConfig(o.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		body, err := os.ReadFile(o.ConfigPath)
		if err != nil {
			return nil, common.WrapError(err, "failed to read configuration file")
		}
		cfg, err = o.Service.ImportConfig(o.Name, string(body))
		if err != nil {
			return nil, err
		}
	}

	return o.Service.NewSession(cfg)
}

// authenticate fills the session's pending input slots by role and
// re-arms the session. A second Ready() failure here is fatal; there
// is no credential retry.
func (o *Orchestrator) authenticate(ctx context.Context, session Session) error {
	// The backend may need to settle again after the Ready probe.
	if _, err := o.poller().Wait(ctx, session); err != nil {
		return err
	}

	slots, err := session.FetchInputSlots()
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("%w: credentials required for profile %s", common.ErrMalformedSession, o.Name)
	}

	for _, slot := range slots {
		var value string
		switch slot.Role() {
		case RoleUsername:
			value = o.Credentials.Username()
			common.LogInfo("Sending username: %s", value)
		case RolePassword:
			value, err = o.Credentials.Password()
			if err != nil {
				return err
			}
			common.LogInfo("Sending password: %s", common.RedactedSecret)
		default:
			value, err = o.Prompt(slot.Label())
			if err != nil {
				return err
			}
		}
		if err := slot.Provide(value); err != nil {
			return err
		}
	}

	return session.Ready()
}

// submitSecondFactor waits for the session to request a second factor
// after the first connect, answers it, and resumes the handshake. The
// prompt may take a few polls to appear; a prompt that never appears
// is a hard failure rather than a silent pass.
func (o *Orchestrator) submitSecondFactor(ctx context.Context, session Session) error {
	o.setState(StateAwaitingMFA)

	appeared, err := o.Retry.Until(ctx, func() (bool, error) {
		if _, err := o.poller().Wait(ctx, session); err != nil {
			return false, err
		}

		slots, err := session.FetchInputSlots()
		if err != nil {
			return false, err
		}
		if len(slots) == 0 {
			return false, nil
		}

		slot := slots[0]
		code, generated, err := o.Credentials.MFACode()
		if err != nil {
			return false, err
		}
		if generated {
			common.LogInfo("Sending generated one-time code: %s", common.RedactedSecret)
		} else {
			code, err = o.Prompt(slot.Label())
			if err != nil {
				return false, err
			}
		}
		return true, slot.Provide(code)
	})
	if err != nil {
		return err
	}
	if !appeared {
		return fmt.Errorf("%w: second factor prompt never appeared", common.ErrRetryExhausted)
	}

	if err := session.Ready(); err != nil {
		return err
	}
	return session.Connect()
}

// awaitConnected polls until the session reports connected or auth
// failure. Auth failure triggers an automatic disconnect before the
// error surfaces. Any other status counts as pending; when the budget
// runs out the attempt fails with a timeout, assuming neither
// connected nor disconnected state.
func (o *Orchestrator) awaitConnected(ctx context.Context, session Session) error {
	var authFailed bool

	settled, err := o.Retry.Until(ctx, func() (bool, error) {
		status, err := o.poller().Wait(ctx, session)
		if err != nil {
			return false, err
		}

		switch status.Minor {
		case MinorConnAuthFailed:
			authFailed = true
			if derr := session.Disconnect(); derr != nil {
				common.LogWarn("Disconnect after auth failure: %v", derr)
			}
			return true, nil
		case MinorConnConnected:
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return o.fail(err)
	}
	if !settled {
		return o.fail(fmt.Errorf("%w: profile %s did not reach connected state", common.ErrTimeout, o.Name))
	}
	if authFailed {
		o.setState(StateDisconnected)
		return fmt.Errorf("%w for profile %s", common.ErrAuthFailed, o.Name)
	}

	o.setState(StateConnected)
	common.LogInfo("Connected profile %s", o.Name)
	return nil
}
