// Package retry drives one fetch-and-assemble pass through bounded attempts and
// falls back to the last cached list when the pass fails.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinsignal/internal/cache"
	"coinsignal/internal/domain"
	"coinsignal/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State int

const (
	StateIdle State = iota
	StateFetching
	StateSucceeded
	StateRateLimited
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateSucceeded:
		return "succeeded"
	case StateRateLimited:
		return "rate_limited"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Transition struct {
	Key     string
	Attempt int
	From    State
	To      State
	Err     error
}

type Observer func(Transition)

// Attempt runs one full pipeline pass.
type Attempt func(ctx context.Context) ([]domain.Signal, error)

// CacheReader is the part of the result cache the controller falls back to.
type CacheReader interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
}

type Controller struct {
	tracer   trace.Tracer
	cache    CacheReader
	policy   Policy
	observer Observer
}

func NewController(tracer trace.Tracer, c CacheReader, policy Policy, observer Observer) *Controller {
	if observer == nil {
		observer = logTransition
	}
	return &Controller{
		tracer:   tracer,
		cache:    c,
		policy:   policy.normalized(),
		observer: observer,
	}
}

// Run executes attempt until it succeeds, hits a non-retryable error or
// exhausts the policy. On failure the cached list for key is returned, stale
// or not, when one exists; otherwise the last error is.
func (c *Controller) Run(ctx context.Context, key string, attempt Attempt) ([]domain.Signal, error) {
	ctx, span := c.tracer.Start(ctx, "retry.run")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", key))

	state := StateIdle
	move := func(n int, to State, err error) {
		c.observer(Transition{Key: key, Attempt: n, From: state, To: to, Err: err})
		state = to
	}

	var lastErr error
	n := 0
	move(n, StateFetching, nil)
	for {
		n++
		metrics.ObserveAttempt()
		signals, err := attempt(ctx)
		if err == nil {
			move(n, StateSucceeded, nil)
			metrics.ObserveOutcome(StateSucceeded.String(), false)
			span.SetAttributes(attribute.Int("retry.attempts", n))
			return signals, nil
		}
		lastErr = err

		if !c.policy.Retryable(err) {
			break
		}
		move(n, StateRateLimited, err)
		if n >= c.policy.MaxAttempts {
			break
		}
		if werr := wait(ctx, c.policy.Backoff(n)); werr != nil {
			lastErr = fmt.Errorf("waiting to retry: %w", werr)
			break
		}
		move(n, StateFetching, nil)
	}

	move(n, StateFailed, lastErr)
	span.SetAttributes(attribute.Int("retry.attempts", n))
	span.RecordError(lastErr)

	if c.cache != nil {
		entry, err := c.cache.Get(context.WithoutCancel(ctx), key)
		switch {
		case err == nil && entry != nil:
			log.Warn().Err(lastErr).Str("key", key).Int("attempts", n).
				Time("stored_at", entry.StoredAt).Msg("signal pipeline failed, serving cached signals")
			metrics.ObserveOutcome(StateFailed.String(), true)
			return entry.Signals, nil
		case err != nil && !errors.Is(err, cache.ErrCacheMiss):
			log.Warn().Err(err).Str("key", key).Msg("cache fallback lookup failed")
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	log.Error().Err(lastErr).Str("key", key).Int("attempts", n).Msg("signal pipeline failed")
	metrics.ObserveOutcome(StateFailed.String(), false)
	return nil, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func logTransition(t Transition) {
	ev := log.Debug()
	if t.Err != nil {
		ev = ev.Err(t.Err)
	}
	ev.Str("key", t.Key).Int("attempt", t.Attempt).
		Str("from", t.From.String()).Str("to", t.To.String()).Msg("retry transition")
}
