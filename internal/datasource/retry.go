package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/tickersent/internal/config"
	"github.com/seenimoa/tickersent/internal/logger"
)

// FetchError is returned once every retry attempt has failed.
type FetchError struct {
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RetryPolicy retries a failing operation with exponential backoff.
//
// After failed attempt i (counting from 0, except the last) it sleeps
// BaseDelay << i. An HTTP 429 gets one immediate extra try of the same
// attempt after RateLimitDelay, separate from the backoff schedule.
type RetryPolicy struct {
	Attempts       int
	BaseDelay      time.Duration
	RateLimitDelay time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Log   logrus.FieldLogger
}

// DefaultRetryPolicy is three attempts with 1s, 2s backoff and a 1s
// rate-limit pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second, RateLimitDelay: time.Second}
}

// RetryPolicyFromConfig builds a policy from the fetch settings.
func RetryPolicyFromConfig(cfg config.FetchConfig, log logrus.FieldLogger) RetryPolicy {
	return RetryPolicy{
		Attempts:       cfg.Attempts,
		BaseDelay:      cfg.BaseDelay,
		RateLimitDelay: cfg.RateLimitDelay,
		Log:            log,
	}
}

// Do runs op until it succeeds or the attempts are used up. Context
// cancellation stops immediately and returns the context error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := logger.OrDiscard(p.Log)

	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if IsRateLimited(err) {
			log.WithField("attempt", i+1).Warnf("rate limited, retrying in %s", p.RateLimitDelay)
			if serr := p.sleep(ctx, p.RateLimitDelay); serr != nil {
				return serr
			}
			if err = op(ctx); err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		last = err
		if i == attempts-1 {
			break
		}
		delay := p.BaseDelay << i
		log.WithFields(logrus.Fields{"attempt": i + 1, "delay": delay}).Debugf("fetch failed: %v", err)
		if serr := p.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return &FetchError{Attempts: attempts, Err: last}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
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
