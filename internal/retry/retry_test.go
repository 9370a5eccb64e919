package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("quota exceeded")

func transient(err error) bool { return errors.Is(err, errTransient) }

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{Retryable: transient}
	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := Policy{Retryable: transient}
	fatal := errors.New("bad credentials")
	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonorsMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 2, Retryable: transient}
	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want %v", err, errTransient)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoReportsWaits(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: time.Millisecond, Retryable: transient}
	var waits []time.Duration
	_ = p.Do(context.Background(), func(d time.Duration) { waits = append(waits, d) }, func() error {
		return errTransient
	})
	if len(waits) != 2 {
		t.Fatalf("waits = %d, want 2", len(waits))
	}
	if waits[0] != time.Millisecond {
		t.Errorf("wait = %v", waits[0])
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Backoff: time.Hour, Retryable: transient}
	err := p.Do(ctx, nil, func() error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestZeroPolicyNeverRetries(t *testing.T) {
	var p Policy
	calls := 0
	err := p.Do(context.Background(), nil, func() error {
		calls++
		return errTransient
	})
	if err == nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
