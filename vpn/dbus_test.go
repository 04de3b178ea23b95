package vpn

import (
	"errors"
	"testing"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

func TestRoleForVariable(t *testing.T) {
	tests := []struct {
		variable string
		expected SlotRole
	}{
		{"username", RoleUsername},
		{"password", RolePassword},
		{"static_challenge", RoleChallenge},
		{"auth_pending", RoleChallenge},
		{"pk_passphrase", RoleUnknown},
		{"", RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			if got := roleForVariable(tt.variable); got != tt.expected {
				t.Errorf("roleForVariable(%q) = %v, want %v", tt.variable, got, tt.expected)
			}
		})
	}
}

func TestMapSessionError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		if err := mapSessionError(nil); err != nil {
			t.Errorf("mapSessionError(nil) = %v", err)
		}
	})

	t.Run("credentials suffix is translated", func(t *testing.T) {
		err := mapSessionError(errors.New("net.openvpn.v3.sessions.error: Missing user credentials"))
		if !errors.Is(err, common.ErrCredentialsMissing) {
			t.Errorf("mapSessionError() = %v, want ErrCredentialsMissing", err)
		}
	})

	t.Run("trailing whitespace is tolerated", func(t *testing.T) {
		err := mapSessionError(errors.New("Missing user credentials \n"))
		if !errors.Is(err, common.ErrCredentialsMissing) {
			t.Errorf("mapSessionError() = %v, want ErrCredentialsMissing", err)
		}
	})

	t.Run("other errors pass through unchanged", func(t *testing.T) {
		original := errors.New("backend process exited")
		err := mapSessionError(original)
		if err != original {
			t.Errorf("mapSessionError() = %v, want the original error", err)
		}
		if errors.Is(err, common.ErrCredentialsMissing) {
			t.Error("unrelated errors must not be classified as missing credentials")
		}
	})
}
