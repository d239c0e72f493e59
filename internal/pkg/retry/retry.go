package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults follow the Google Photos API guidance: a 429 requires at
// least 30s before the next request.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxDelay    = 120 * time.Second
	DefaultJitter      = 0.2
)

// Policy describes an exponential backoff schedule. Delay for attempt n
// (n starting at 1) is BaseDelay*2^(n-1), capped at MaxDelay, then
// randomized by ±Jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		// Randomize within ±Jitter so concurrently failing items
		// don't retry in lockstep.
		f := 1 + p.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * f)
	}
	return d
}

// Do runs op, retrying errors marked Transient according to the policy.
// Permanent and unclassified errors are returned as-is on the first
// failure. Exhausting MaxAttempts returns an *ExhaustedError wrapping
// the last transient error.
func Do(ctx context.Context, p Policy, name string, op func(context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			d := p.delay(attempt - 1)
			log.Warn().
				Str("op", name).
				Int("attempt", attempt).
				Int("max_attempts", p.MaxAttempts).
				Dur("delay", d).
				Err(lastErr).
				Msg("Retrying after transient error")
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, name, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}
