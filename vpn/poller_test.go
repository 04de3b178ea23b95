package vpn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

func TestStatusPoller_Wait_SettlesAfterBackendStartup(t *testing.T) {
	notReady := fmt.Errorf("%w: backend starting", common.ErrBackendNotReady)
	session := &fakeSession{
		statusErrs: []error{notReady, notReady, nil},
		statuses:   []Status{{Major: MajorConnection, Minor: MinorConnConnecting}},
	}

	poller := StatusPoller{Retry: testPolicy(5)}
	status, err := poller.Wait(context.Background(), session)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if status.Minor != MinorConnConnecting {
		t.Errorf("status.Minor = %v, want Connecting", status.Minor)
	}
	if session.statusCalls != 3 {
		t.Errorf("statusCalls = %d, want 3", session.statusCalls)
	}
}

func TestStatusPoller_Wait_Exhaustion(t *testing.T) {
	notReady := fmt.Errorf("%w: backend starting", common.ErrBackendNotReady)
	session := &fakeSession{
		statusErrs: []error{notReady, notReady, notReady},
	}

	poller := StatusPoller{Retry: testPolicy(3)}
	_, err := poller.Wait(context.Background(), session)

	if !errors.Is(err, common.ErrRetryExhausted) {
		t.Errorf("Wait() error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, common.ErrBackendNotReady) {
		t.Errorf("Wait() error = %v, want the backend error preserved", err)
	}
	if session.statusCalls != 3 {
		t.Errorf("statusCalls = %d, want 3", session.statusCalls)
	}
}

func TestStatusPoller_Wait_UnexpectedErrorNotRetried(t *testing.T) {
	boom := errors.New("access denied")
	session := &fakeSession{
		statusErrs: []error{boom},
	}

	poller := StatusPoller{Retry: testPolicy(5)}
	_, err := poller.Wait(context.Background(), session)

	if !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want %v", err, boom)
	}
	if session.statusCalls != 1 {
		t.Errorf("statusCalls = %d, want 1 (no retry on unexpected errors)", session.statusCalls)
	}
}
