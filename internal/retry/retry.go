// Package retry runs operations with bounded attempts, exponential backoff
// and jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/errs"
)

type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     bool
	// RetryIf decides whether a failure is worth another attempt. Defaults
	// to the network-class test: validation errors are never retried.
	RetryIf func(error) bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.RetryIf == nil {
		o.RetryIf = errs.IsNetwork
	}
	return o
}

// Do runs op until it succeeds, the retry condition rejects the failure, or
// attempts are exhausted. Waits grow exponentially (x2) with 0.85-1.15x
// jitter and respect context cancellation.
func Do(ctx context.Context, log zerolog.Logger, name string, opts Options, op func(context.Context) error) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				log.Info().Str("op", name).Int("attempts", attempt).Msg("succeeded after retry")
			}
			return nil
		}

		if attempt == opts.MaxAttempts || !opts.RetryIf(lastErr) {
			log.Error().Err(lastErr).Str("op", name).Int("attempts", attempt).Msg("giving up")
			return lastErr
		}

		wait := opts.BaseDelay
		if opts.Backoff {
			wait = time.Duration(float64(opts.BaseDelay) * math.Pow(2, float64(attempt-1)))
		}
		jitter := 0.85 + rand.Float64()*0.3
		wait = time.Duration(float64(wait) * jitter)
		if wait < 200*time.Millisecond {
			wait = 200 * time.Millisecond
		}
		log.Warn().Err(lastErr).Str("op", name).Int("attempt", attempt).Dur("wait", wait).Msg("retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
