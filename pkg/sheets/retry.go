package sheets

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = time.Second
)

// RetryPolicy bounds the attempts made for a single spreadsheet call.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	base := p.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
}

// Do runs fn, retrying classified auth and transient failures with exponential
// backoff. Auth failures trigger auth.Reauthenticate before the next attempt.
// Unclassified errors are returned immediately.
func Do(ctx context.Context, policy RetryPolicy, auth Reauthenticator, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		err := Classify(fn(ctx))
		switch {
		case err == nil:
			return nil
		case IsAuthError(err):
			if auth != nil {
				if authErr := auth.Reauthenticate(ctx); authErr != nil {
					return retry.RetryableError(multierr.Append(err, authErr))
				}
			}
			return retry.RetryableError(err)
		case IsTransient(err):
			return retry.RetryableError(err)
		default:
			return err
		}
	})
}
