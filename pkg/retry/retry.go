// Package retry provides the retry policy shared by every component that
// talks to the network.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by Do when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy describes how often and how long to retry a call.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean one attempt.
	MaxAttempts int
	// Schedule gives the wait before each retry. The last entry repeats.
	// When empty, waits grow exponentially from BaseDelay up to MaxDelay.
	Schedule  []time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// IsRetryable decides whether an error is worth another attempt. Nil
	// retries every error except context cancellation.
	IsRetryable func(error) bool
	// Hint returns a wait requested by the failed call itself, such as a
	// Retry-After header. A hint longer than the scheduled delay replaces
	// it, up to MaxDelay.
	Hint func(error) time.Duration
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Config is the serialisable part of a Policy.
type Config struct {
	MaxAttempts int             `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration   `mapstructure:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration   `mapstructure:"max_delay" json:"max_delay"`
	Schedule    []time.Duration `mapstructure:"schedule" json:"schedule,omitempty"`
}

// Policy builds a Policy from c.
func (c Config) Policy() Policy {
	return Policy{
		MaxAttempts: c.MaxAttempts,
		Schedule:    c.Schedule,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
	}
}

// Default returns a policy with exponential backoff.
func Default() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Delay returns the wait before retry number n, counted from 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	if len(p.Schedule) > 0 {
		if n > len(p.Schedule) {
			return p.Schedule[len(p.Schedule)-1]
		}
		return p.Schedule[n-1]
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. attempt starts at 0. A non-retryable error is returned
// as is; exhaustion wraps both ErrExhausted and the last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := p.wait(attempt, lastErr)
			if p.OnRetry != nil {
				p.OnRetry(attempt, wait, lastErr)
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func (p Policy) wait(n int, err error) time.Duration {
	d := p.Delay(n)
	if p.Hint == nil {
		return d
	}
	if h := p.Hint(err); h > d {
		d = h
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
		}
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.IsRetryable == nil {
		return true
	}
	return p.IsRetryable(err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
