// Package retrier retries idempotent calls with capped exponential backoff.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

// Retrier doubles the wait after every failed attempt up to maxWait.
// Each wait is spread by ±jitter of its length.
type Retrier struct {
	firstWait time.Duration
	maxWait   time.Duration
	retries   int
	jitter    float64
	retryable func(error) bool
	notify    func(attempt int, err error, wait time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the wait before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.firstWait = d }
}

// WithMaxInterval caps the wait between attempts.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxWait = d }
}

// WithMaxRetries sets how many times a failed call is repeated.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.retries = n }
}

// WithJitter sets the jitter factor, 0 disables it.
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// WithRetryIf retries only errors the predicate accepts; others are returned at once.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryable = fn }
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) { r.notify = fn }
}

// New creates a Retrier: 5 retries starting at 1s, capped at 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		firstWait: time.Second,
		maxWait:   30 * time.Second,
		retries:   5,
		jitter:    0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, returns a non-retryable error, retries run out
// or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= r.retries; attempt++ {
		if r.retryable != nil && !r.retryable(err) {
			return err
		}

		wait := r.wait(attempt)
		if r.notify != nil {
			r.notify(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
	}

	return err
}

// wait returns the pause before retry attempt (1-based).
func (r *Retrier) wait(attempt int) time.Duration {
	d := r.firstWait
	for i := 1; i < attempt && d < r.maxWait; i++ {
		d *= 2
	}
	if d > r.maxWait {
		d = r.maxWait
	}

	d += time.Duration((rand.Float64()*2 - 1) * r.jitter * float64(d))
	if d < 0 {
		return 0
	}
	return d
}
