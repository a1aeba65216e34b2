package archiver

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fetch runs fn until it succeeds, waiting out rate limits and retrying other
// failures with exponential backoff. Rate limit waits don't count as attempts.
// Errors that retrying can't fix are returned as is, exhausted retries as
// *TransportError.
func (a *Archiver) fetch(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.InitialBackoff
	b.MaxInterval = a.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempts := 0
	err := backoff.RetryNotify(func() error {
		for {
			err := fn(ctx)
			var rl *RateLimitedError
			if errors.As(err, &rl) {
				a.logger.Debugf("Rate limited on %s, waiting %s.", op, rl.RetryAfter)
				if err := sleep(ctx, rl.RetryAfter); err != nil {
					return backoff.Permanent(err)
				}
				continue
			}
			if err == nil {
				return nil
			}
			attempts++
			if inaccessible(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.cfg.MaxRetries)), ctx), func(err error, d time.Duration) {
		a.logger.Warnf("Failed to %s, retrying in %s: %s.", op, d, err)
	})

	switch {
	case err == nil:
		return nil
	case inaccessible(err), ctx.Err() != nil:
		return err
	default:
		return &TransportError{Op: op, Attempts: attempts, Err: err}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
