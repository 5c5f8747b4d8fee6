package retry

import (
	"context"
	"time"

	"tradepipe/pkg/exception"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

// Policy bounds how often and how fast an operation is attempted again.
// Retries apply to establishing a connection, never to individual messages.
type Policy struct {
	MaxAttempts int           // e.g. 5
	Delay       time.Duration // wait after the first failure, e.g. 1s
	Factor      float64       // growth per attempt, <= 1 keeps the delay fixed
	MaxDelay    time.Duration // cap when Factor > 1

	// Classify decides whether an error is retryable.
	// If nil, every non-nil error is retried.
	Classify func(error) Class

	// OnRetry is an optional hook for logging.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Fixed returns a policy of attempts tries separated by a constant delay.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Delay: delay}
}

// Wait returns the delay after the given failed attempt (1-based).
func (p Policy) Wait(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	wait := p.Delay
	if p.Factor <= 1 {
		return wait
	}
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * p.Factor)
		if p.MaxDelay > 0 && wait > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return wait
}

// Do calls fn until it succeeds, returns a fatal error, the attempts are
// exhausted or ctx is done. The last error of fn is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if fn == nil {
		return exception.ErrInvalidArgument
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}

	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal || attempt == p.MaxAttempts {
			break
		}

		wait := p.Wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
