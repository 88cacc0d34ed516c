package providers

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retry defaults.
const (
	DefaultMaxAttempts      = 3
	DefaultTransportDelay   = 10 * time.Second
	DefaultServerErrorDelay = 5 * time.Second

	// MaxRetryAfter caps how long a provider's Retry-After can stall a call.
	MaxRetryAfter = time.Minute
)

// RetryPolicy is a sequential attempt loop for remote calls.
//
// Transport errors wait TransportDelay before the next attempt, 5xx
// responses wait ServerErrorDelay, or the response's Retry-After when
// that is longer (capped at MaxRetryAfter). Everything else (4xx, malformed
// bodies, context cancellation) is returned after the attempt that
// produced it. When every attempt fails with a retryable error the
// result is a *RetriesExhaustedError.
type RetryPolicy struct {
	MaxAttempts      int
	TransportDelay   time.Duration
	ServerErrorDelay time.Duration
}

// DefaultRetryPolicy returns the stock 3 attempts / 10s / 5s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      DefaultMaxAttempts,
		TransportDelay:   DefaultTransportDelay,
		ServerErrorDelay: DefaultServerErrorDelay,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.TransportDelay < 0 {
		p.TransportDelay = 0
	}
	if p.ServerErrorDelay < 0 {
		p.ServerErrorDelay = 0
	}
	return p
}

// delayFor picks the wait before the next attempt.
func (p RetryPolicy) delayFor(err error) time.Duration {
	var te *TransportError
	if errors.As(err, &te) {
		return p.TransportDelay
	}
	delay := p.ServerErrorDelay
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > delay {
		delay = max(delay, min(se.RetryAfter, MaxRetryAfter))
	}
	return delay
}

// Do runs op under the policy.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry runs op under the policy and returns its value.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	v, _, err := RetryCount(ctx, p, op)
	return v, err
}

// RetryCount is Retry that also reports the number of attempts made.
func RetryCount[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.withDefaults()

	var (
		zero     T
		attempts int
		lastErr  error
	)
	if err := ctx.Err(); err != nil {
		return zero, 0, err
	}

	v, err := retry.DoWithData(
		func() (T, error) {
			attempts++
			v, err := op(ctx)
			lastErr = err
			return v, err
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.MaxAttempts)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && IsRetryable(err)
		}),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			return p.delayFor(err)
		}),
	)
	if err == nil {
		return v, attempts, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, attempts, ctxErr
	}
	if lastErr == nil {
		lastErr = err
	}
	if IsRetryable(lastErr) && attempts >= p.MaxAttempts {
		return zero, attempts, &RetriesExhaustedError{Attempts: attempts, Last: lastErr}
	}
	return zero, attempts, lastErr
}
