// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file contains the status poller that waits out the
// backend's startup window.
package vpn

import (
	"context"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// StatusPoller stabilizes on a session's status. Right after a session
// is created, and again right after a connect request, the session
// manager may report the backend as not ready; the poller retries that
// case and nothing else.
type StatusPoller struct {
	Retry RetryPolicy
}

// Wait polls the session's status until the backend settles or the
// retry budget is exhausted. On exhaustion the service's last error is
// returned (wrapped with common.ErrRetryExhausted) rather than a
// fabricated status: if the backend never settles the caller must not
// pretend success.
func (p StatusPoller) Wait(ctx context.Context, s Session) (Status, error) {
	var status Status
	err := p.Retry.Transient(ctx, func() error {
		var err error
		status, err = s.GetStatus()
		return err
	})
	if err != nil {
		return Status{}, err
	}
	common.LogDebug("Session %s status: %s", s.Path(), status)
	return status, nil
}
