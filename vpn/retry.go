// Package vpn drives an OpenVPN 3 session from creation to a connected
// tunnel. This file contains the bounded backoff policy shared by every
// operation that must tolerate a backend that is not ready yet.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// RetryPolicy is a bounded exponential backoff: the wait starts at
// Delay, doubles on every attempt, and is capped at MaxDelay. After
// Attempts tries the operation fails permanently.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used for all backend polling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: common.DefaultRetryAttempts,
		Delay:    common.DefaultRetryDelay,
		MaxDelay: common.DefaultRetryMaxDelay,
	}
}

// errCondNotMet marks a predicate attempt that observed "not yet".
var errCondNotMet = errors.New("condition not met")

// Transient runs op, retrying only while it fails with
// common.ErrBackendNotReady. Any other error propagates immediately
// without further attempts. When the attempt budget is exhausted the
// returned error matches both common.ErrRetryExhausted and the last
// transient error.
func (p RetryPolicy) Transient(ctx context.Context, op func() error) error {
	err := retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, common.ErrBackendNotReady)
		}),
		retry.OnRetry(func(n uint, err error) {
			common.LogDebug("Backend not settled (attempt %d/%d): %v", n+1, p.Attempts, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil && errors.Is(err, common.ErrBackendNotReady) {
		return fmt.Errorf("%w after %d attempts: %w", common.ErrRetryExhausted, p.Attempts, err)
	}
	return err
}

// Until runs cond until it reports true, retrying with the same backoff
// while it reports (false, nil). A cond error stops the loop and
// propagates immediately. When the attempt budget is exhausted Until
// returns (false, nil); callers must treat that as a hard failure for
// the step, never as success.
func (p RetryPolicy) Until(ctx context.Context, cond func() (bool, error)) (bool, error) {
	err := retry.Do(
		func() error {
			ok, err := cond()
			if err != nil {
				return err
			}
			if !ok {
				return errCondNotMet
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errCondNotMet)
		}),
		retry.OnRetry(func(n uint, err error) {
			common.LogDebug("Waiting (attempt %d/%d)", n+1, p.Attempts)
		}),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errCondNotMet) {
		return false, nil
	}
	return false, err
}
