package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy defines a bounded exponential backoff schedule.
// Every upstream call site shares this abstraction instead of rolling
// its own retry loop.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff cap
	Multiplier  float64       // growth factor between attempts
	Jitter      float64       // fraction of the delay randomized, 0..1
}

// DefaultPolicy mirrors the upstream client defaults: 3 attempts,
// 500ms base, doubling, capped at 10s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Permanent wraps an error to signal that retrying cannot help.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }

func (p *Permanent) Unwrap() error { return p.Err }

// Stop marks err as non-retryable for Do.
func Stop(err error) error {
	return &Permanent{Err: err}
}

// Do runs fn until it succeeds, the policy is exhausted, fn returns a
// Permanent error, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(delay, p.Jitter)):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}

// jittered spreads the delay by +/- frac/2 to avoid retry alignment
// across workers hitting the same rate-limited source.
func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	span := float64(d) * frac
	offset := (rand.Float64() - 0.5) * span
	return time.Duration(float64(d) + offset)
}
