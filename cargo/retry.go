package cargo

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

// Retrier runs a submission and decides whether and when to repeat it.
// It returns the number of attempts made.
type Retrier interface {
	Do(ctx context.Context, fn func(context.Context) error) (int, error)
}

type noRetry struct{}

// NoRetry submits each batch exactly once.
func NoRetry() Retrier { return noRetry{} }

func (noRetry) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	return 1, fn(ctx)
}

type retrier struct {
	attempts uint
	opts     []retry.Option
}

// FixedRetry makes up to attempts tries, waiting delay between them.
func FixedRetry(attempts uint, delay time.Duration) Retrier {
	return &retrier{
		attempts: attempts,
		opts: []retry.Option{
			retry.Delay(delay),
			retry.DelayType(retry.FixedDelay),
		},
	}
}

// BackoffRetry makes up to attempts tries, doubling the wait from base up to max.
func BackoffRetry(attempts uint, base, max time.Duration) Retrier {
	opts := []retry.Option{
		retry.Delay(base),
		retry.DelayType(retry.BackOffDelay),
	}
	if max > 0 {
		opts = append(opts, retry.MaxDelay(max))
	}
	return &retrier{attempts: attempts, opts: opts}
}

func (r *retrier) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	if r.attempts <= 1 {
		return noRetry{}.Do(ctx, fn)
	}

	n := 0
	opts := append([]retry.Option{
		retry.Attempts(r.attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	}, r.opts...)

	err := retry.Do(func() error {
		n++
		return fn(ctx)
	}, opts...)
	return n, err
}

// NewRetrier builds a strategy from its configuration name. retries is the
// number of extra attempts after the first.
func NewRetrier(kind string, retries int, delay, max time.Duration) (Retrier, error) {
	if retries <= 0 {
		return NoRetry(), nil
	}
	attempts := uint(retries + 1)
	switch strings.ToLower(kind) {
	case "", "fixed":
		return FixedRetry(attempts, delay), nil
	case "exponential":
		return BackoffRetry(attempts, delay, max), nil
	}
	return nil, errors.Errorf("unknown backoff strategy %q", kind)
}
