// Package retry provides a bounded exponential-backoff retry policy.
//
// The policy is fully parameterized so tests can run with zero intervals
// instead of sleeping through a real backoff schedule.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded retry schedule: at most MaxAttempts total
// attempts, with intervals growing from InitialInterval by Multiplier up
// to MaxInterval.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultPolicy returns the standard backend-call policy: 3 attempts with
// 1s, 2s, 4s... intervals.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		Multiplier:      2.0,
		MaxInterval:     30 * time.Second,
	}
}

// Do runs op under the policy. The operation is retried until it succeeds,
// returns a Permanent error, the context is cancelled, or MaxAttempts is
// exhausted; the last error is returned.
func (p Policy) Do(ctx context.Context, op backoff.Operation) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
