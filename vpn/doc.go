// Package vpn drives OpenVPN 3 sessions for ovpn3ctl.
//
// The package is organized around four pieces:
//
//   - Service / Session / InputSlot: the tunnel-management abstraction,
//     implemented against the OpenVPN 3 Linux D-Bus services
//   - RetryPolicy: bounded exponential backoff shared by everything
//     that has to wait out a backend that is not ready yet
//   - CredentialResolver: answers credential requests from the keyring,
//     generating TOTP codes locally when a seed is stored
//   - Orchestrator: the state machine sequencing readiness checks,
//     authentication, the second factor, and connect requests
//
// # Connection Flow
//
// A connect attempt proceeds strictly sequentially:
//
//  1. Look up or create the session for the profile
//  2. Poll status until the backend settles
//  3. Probe Ready(); fill credential slots if the session demands them
//  4. Connect, then wait for the second-factor prompt and answer it
//  5. Ready() and Connect() again to resume the handshake
//  6. Poll status until connected, auth-failed, or the budget runs out
//
// The tunnel itself, its teardown, and the configuration lifetime
// belong to the session manager; the orchestrator only reads status
// and issues control requests.
//
// # Concurrency
//
// An Orchestrator is single-threaded: one operation completes,
// including all of its internal retries, before the next begins. It is
// not safe to drive one session from two orchestrators concurrently.
// Cancellation is threaded through every retry loop via context.
package vpn
