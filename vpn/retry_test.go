package vpn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// testPolicy keeps backoff waits small so tests stay fast.
func testPolicy(attempts uint) RetryPolicy {
	return RetryPolicy{
		Attempts: attempts,
		Delay:    time.Millisecond,
		MaxDelay: 5 * time.Millisecond,
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.Attempts != common.DefaultRetryAttempts {
		t.Errorf("Attempts = %d, want %d", p.Attempts, common.DefaultRetryAttempts)
	}
	if p.Delay != common.DefaultRetryDelay {
		t.Errorf("Delay = %v, want %v", p.Delay, common.DefaultRetryDelay)
	}
	if p.MaxDelay != common.DefaultRetryMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", p.MaxDelay, common.DefaultRetryMaxDelay)
	}
}

func TestRetryPolicy_Transient_SucceedsAfterTransients(t *testing.T) {
	calls := 0
	err := testPolicy(5).Transient(context.Background(), func() error {
		calls++
		if calls < 3 {
			return common.ErrBackendNotReady
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Transient() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_Transient_NonTransientPropagatesImmediately(t *testing.T) {
	fatal := errors.New("backend exploded")
	calls := 0
	err := testPolicy(5).Transient(context.Background(), func() error {
		calls++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("Transient() error = %v, want %v", err, fatal)
	}
	if errors.Is(err, common.ErrRetryExhausted) {
		t.Error("non-transient failure must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-transient errors)", calls)
	}
}

func TestRetryPolicy_Transient_Exhaustion(t *testing.T) {
	calls := 0
	err := testPolicy(4).Transient(context.Background(), func() error {
		calls++
		return common.ErrBackendNotReady
	})

	if calls != 4 {
		t.Errorf("calls = %d, want 4 (attempt cap)", calls)
	}
	if !errors.Is(err, common.ErrRetryExhausted) {
		t.Errorf("Transient() error = %v, want ErrRetryExhausted", err)
	}
	// The last transient error stays reachable through the chain.
	if !errors.Is(err, common.ErrBackendNotReady) {
		t.Errorf("Transient() error = %v, want it to wrap ErrBackendNotReady", err)
	}
}

func TestRetryPolicy_Transient_BackoffGrows(t *testing.T) {
	p := RetryPolicy{Attempts: 4, Delay: 10 * time.Millisecond, MaxDelay: time.Second}

	start := time.Now()
	_ = p.Transient(context.Background(), func() error {
		return common.ErrBackendNotReady
	})
	elapsed := time.Since(start)

	// Waits double per attempt: 10ms + 20ms + 40ms between 4 attempts.
	if elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 60ms of backoff", elapsed)
	}
}

func TestRetryPolicy_Until_StopsOnFirstTrue(t *testing.T) {
	calls := 0
	ok, err := testPolicy(5).Until(context.Background(), func() (bool, error) {
		calls++
		return calls == 2, nil
	})

	if err != nil {
		t.Fatalf("Until() error = %v, want nil", err)
	}
	if !ok {
		t.Error("Until() = false, want true")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (stop on first true)", calls)
	}
}

func TestRetryPolicy_Until_Exhaustion(t *testing.T) {
	calls := 0
	ok, err := testPolicy(3).Until(context.Background(), func() (bool, error) {
		calls++
		return false, nil
	})

	if err != nil {
		t.Fatalf("Until() error = %v, want nil", err)
	}
	if ok {
		t.Error("Until() = true after exhaustion, want false")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (attempt cap)", calls)
	}
}

func TestRetryPolicy_Until_ErrorPropagatesImmediately(t *testing.T) {
	boom := errors.New("poll failed")
	calls := 0
	ok, err := testPolicy(5).Until(context.Background(), func() (bool, error) {
		calls++
		return false, boom
	})

	if ok {
		t.Error("Until() = true, want false on error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Until() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on condition errors)", calls)
	}
}

func TestRetryPolicy_Until_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	ok, err := testPolicy(100).Until(ctx, func() (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})

	if ok {
		t.Error("Until() = true after cancellation, want false")
	}
	if err == nil {
		t.Error("Until() error = nil, want context error")
	}
	if calls > 3 {
		t.Errorf("calls = %d, want the loop to stop promptly after cancel", calls)
	}
}
