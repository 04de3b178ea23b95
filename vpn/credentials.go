// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file resolves credential requests without the
// orchestrator knowing how secrets are stored.
package vpn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/ovpn3-tools/ovpn3ctl/common"
	"github.com/ovpn3-tools/ovpn3ctl/keyring"
)

// CredentialResolver answers "what value goes in this input slot".
type CredentialResolver interface {
	// Username returns the configured username. Always available.
	Username() string
	// Password returns the stored password. Fails with an error
	// matching common.ErrCredentialsMissing when none is stored.
	Password() (string, error)
	// MFACode generates a one-time code from the stored TOTP seed.
	// The boolean is false when no seed is configured, signaling the
	// caller to fall back to interactive input.
	MFACode() (string, bool, error)
}

// KeyringResolver resolves credentials from the system keyring, keyed
// by (profile, username). A TOTP seed stored under the profile's
// dedicated account enables local code generation.
type KeyringResolver struct {
	Profile string
	User    string

	// Now is the clock used for TOTP generation. Defaults to time.Now.
	Now func() time.Time
}

// Username returns the configured username for the profile.
func (r *KeyringResolver) Username() string {
	return r.User
}

// Password fetches the stored password for (profile, username).
func (r *KeyringResolver) Password() (string, error) {
	secret, err := keyring.Get(keyring.ServiceFor(r.Profile), r.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: no password stored for %s/%s (run setup)",
				common.ErrCredentialsMissing, r.Profile, r.User)
		}
		return "", err
	}
	return secret, nil
}

// MFACode generates a one-time code from the profile's stored TOTP
// seed. Returns false when no seed is configured.
func (r *KeyringResolver) MFACode() (string, bool, error) {
	seed, err := keyring.Get(keyring.ServiceFor(r.Profile), keyring.TOTPAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	code, err := GenerateTOTP(seed, now())
	if err != nil {
		return "", false, fmt.Errorf("stored TOTP seed is unusable: %w", err)
	}
	return code, true, nil
}

// GenerateTOTP derives a 6-digit one-time code from a base32 seed and
// a point in time, using 30-second steps and SHA-1 HMAC (RFC 6238).
// The seed is accepted case-insensitively, with or without padding.
func GenerateTOTP(seed string, at time.Time) (string, error) {
	return totp.GenerateCode(normalizeSeed(seed), at)
}

// normalizeSeed uppercases a base32 seed, strips whitespace, and
// restores the padding base32 decoding expects.
func normalizeSeed(seed string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(seed), ""))
	s = strings.TrimRight(s, "=")
	if rem := len(s) % 8; rem != 0 {
		s += strings.Repeat("=", 8-rem)
	}
	return s
}
