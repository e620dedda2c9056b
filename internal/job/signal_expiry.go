package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const defaultExpiryTick = 15 * time.Minute

type SignalExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// SignalExpiry periodically cancels generated signals older than a day.
type SignalExpiry struct {
	tracer trace.Tracer
	expire SignalExpirer
	tick   time.Duration
}

func NewSignalExpiry(tracer trace.Tracer, expire SignalExpirer) *SignalExpiry {
	return &SignalExpiry{
		tracer: tracer,
		expire: expire,
		tick:   defaultExpiryTick,
	}
}

func (j *SignalExpiry) Start(ctx context.Context) {
	if j == nil || j.expire == nil {
		<-ctx.Done()
		return
	}

	log.Info().Dur("tick", j.tick).Msg("signal expiry starting")
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("signal expiry stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *SignalExpiry) run(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "signal-expiry.run")
		defer span.End()
	}
	n, err := j.expire.ExpireStale(ctx)
	if err != nil {
		log.Error().Err(err).Msg("signal expiry failed")
		return
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("expired stale signals")
	}
}
