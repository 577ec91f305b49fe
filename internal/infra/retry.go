package infra

import (
	"context"
	"log/slog"
	"time"

	"quote_notifier/internal/domain"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 10 * time.Second
)

// RetryPolicy is a bounded retry strategy: a classifier deciding which errors
// are worth another attempt and a delay schedule between attempts.
// It knows nothing about the call it wraps.
type RetryPolicy struct {
	MaxRetries int                                               // Retries after the first attempt
	Delay      time.Duration                                     // Base delay between attempts
	Classify   func(err error) bool                              // Reports whether err is retriable
	Schedule   func(retry int, base time.Duration) time.Duration // Delay before retry n (1-based)
	Sleep      func(ctx context.Context, d time.Duration) error
	OnRetry    func(retry int, delay time.Duration, err error)
}

// DefaultRetryPolicy retries throttled quote requests 3 times, 10 seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		Delay:      defaultRetryDelay,
		Classify:   domain.IsRetriable,
		Schedule:   FixedBackoff,
		Sleep:      SleepContext,
	}
}

// FixedBackoff waits the same delay before every retry.
func FixedBackoff(_ int, base time.Duration) time.Duration {
	return base
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// Do runs fn, retrying while Classify accepts the error and retries remain.
// The last error is returned when the policy is exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	classify := p.Classify
	if classify == nil {
		classify = domain.IsRetriable
	}
	schedule := p.Schedule
	if schedule == nil {
		schedule = FixedBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var err error
	for retry := 0; ; retry++ {
		if retry > 0 {
			delay := schedule(retry, p.Delay)
			if p.OnRetry != nil {
				p.OnRetry(retry, delay, err)
			}
			slog.Debug("Retrying after retriable error",
				slog.Int("retry", retry),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
			if serr := sleep(ctx, delay); serr != nil {
				return err
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err) || retry >= p.MaxRetries {
			return err
		}
	}
}
