// Package retry provides a small retry policy for quota-limited remote calls.
package retry

import (
	"context"
	"time"
)

// Policy retries an operation while its error is retryable. The zero value
// never retries. Both the ingestion pipeline and the query service receive a
// policy from configuration, so tests can use a zero-delay one.
type Policy struct {
	// MaxAttempts bounds the total attempts; 0 means retry until the error
	// stops being retryable or ctx is cancelled.
	MaxAttempts int
	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
	// Retryable reports whether an error is transient. nil means no error is.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is done. onWait, when non-nil, is invoked with the
// backoff duration before each wait so callers can surface it as progress.
func (p Policy) Do(ctx context.Context, onWait func(time.Duration), fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return err
		}
		if onWait != nil {
			onWait(p.Backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
}
