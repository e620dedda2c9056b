package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/service"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SignalLister interface {
	List(ctx context.Context, opts service.ListOptions) ([]domain.Signal, error)
}

// SignalNotifier receives signals the poller has not seen before.
type SignalNotifier interface {
	NotifySignals(ctx context.Context, signals []domain.Signal) error
}

// Notifiers fans signals out to several notifiers. Every notifier is called
// even when an earlier one fails.
type Notifiers []SignalNotifier

func (n Notifiers) NotifySignals(ctx context.Context, signals []domain.Signal) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifySignals(ctx, signals); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefreshPoller keeps the default signal list warm and forwards new or flipped
// generated signals to the notifier.
type RefreshPoller struct {
	tracer   trace.Tracer
	lister   SignalLister
	notifier SignalNotifier
	interval time.Duration

	mu     sync.Mutex
	seen   map[string]domain.SignalType
	seeded bool
}

func NewRefreshPoller(tracer trace.Tracer, lister SignalLister, notifier SignalNotifier, interval time.Duration) *RefreshPoller {
	return &RefreshPoller{
		tracer:   tracer,
		lister:   lister,
		notifier: notifier,
		interval: interval,
		seen:     make(map[string]domain.SignalType),
	}
}

// Start polls until ctx is cancelled. A non-positive interval disables it.
func (p *RefreshPoller) Start(ctx context.Context) {
	if p == nil || p.lister == nil || p.interval <= 0 {
		log.Info().Msg("refresh poller disabled")
		<-ctx.Done()
		return
	}

	log.Info().Dur("interval", p.interval).Msg("refresh poller starting")
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresh poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RefreshPoller) poll(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "refresh-poller.poll")
	defer span.End()

	signals, err := p.lister.List(ctx, service.ListOptions{})
	if err != nil {
		log.Error().Err(err).Msg("signal refresh failed")
		return
	}

	fresh := p.diff(signals)
	span.SetAttributes(attribute.Int("signals.listed", len(signals)), attribute.Int("signals.new", len(fresh)))
	if len(fresh) == 0 || p.notifier == nil {
		return
	}
	if err := p.notifier.NotifySignals(ctx, fresh); err != nil {
		log.Warn().Err(err).Int("signals", len(fresh)).Msg("signal alert delivery failed")
	}
}

// diff records the listed signals and returns the active generated ones that
// are new or changed direction. The first call only seeds the state.
func (p *RefreshPoller) diff(signals []domain.Signal) []domain.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh []domain.Signal
	for _, sig := range signals {
		prev, known := p.seen[sig.ID]
		p.seen[sig.ID] = sig.SignalType
		if !p.seeded || sig.Source != domain.SourceGenerated || sig.Status != domain.SignalActive {
			continue
		}
		if !known || prev != sig.SignalType {
			fresh = append(fresh, sig)
		}
	}
	p.seeded = true
	return fresh
}
