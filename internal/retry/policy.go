package retry

import (
	"errors"
	"time"

	"coinsignal/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

const DefaultMaxAttempts = 5

// Policy decides how many attempts a pipeline pass gets, how long to wait
// between them and which errors are worth another attempt.
type Policy struct {
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff   func(attempt int) time.Duration
	Retryable func(err error) bool
}

// DefaultPolicy retries rate limits only, up to five attempts, with no delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     NoBackoff,
		Retryable:   IsRateLimited,
	}
}

func NoBackoff(int) time.Duration { return 0 }

func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

// ExponentialBackoff doubles the wait from initial up to max, without jitter.
func ExponentialBackoff(initial, maxInterval time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 || initial <= 0 {
			return 0
		}
		b := &backoff.ExponentialBackOff{
			InitialInterval:     initial,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxInterval,
		}
		b.Reset()
		var d time.Duration
		for i := 0; i < attempt; i++ {
			d = b.NextBackOff()
		}
		return d
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = NoBackoff
	}
	if p.Retryable == nil {
		p.Retryable = IsRateLimited
	}
	return p
}
