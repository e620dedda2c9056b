package repository

import (
	"context"
	"fmt"
	"sync"

	"coinsignal/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// SignalRepository keeps every signal seen during the process lifetime.
// Signals are never removed; cancelling is a status change.
type SignalRepository struct {
	tracer trace.Tracer

	mu    sync.RWMutex
	byID  map[string]domain.Signal
	order []string
	// latest generated signal id per symbol+timeframe
	generated map[string]string
}

func NewSignalRepository(tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{
		tracer:    tracer,
		byID:      make(map[string]domain.Signal),
		generated: make(map[string]string),
	}
}

func generatedKey(s domain.Signal) string {
	return s.Symbol + "|" + string(s.Timeframe)
}

// SaveGenerated stores freshly assembled signals. A still-active generated
// signal for the same symbol and timeframe is refreshed in place and keeps
// its ID and creation time; a cancelled one is left alone.
func (r *SignalRepository) SaveGenerated(ctx context.Context, signals []domain.Signal) ([]domain.Signal, error) {
	if len(signals) == 0 {
		return nil, nil
	}

	_, span := r.tracer.Start(ctx, "signal-repo.save-generated")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if s.ID == "" {
			return nil, fmt.Errorf("generated signal for %s has no id", s.Symbol)
		}
		key := generatedKey(s)
		if prevID, ok := r.generated[key]; ok {
			prev := r.byID[prevID]
			if prev.Status == domain.SignalActive {
				s.ID = prev.ID
				s.CreatedAt = prev.CreatedAt
				if s.UpdatedAt.Before(s.CreatedAt) {
					s.UpdatedAt = s.CreatedAt
				}
				r.byID[s.ID] = s.Clone()
				out = append(out, s.Clone())
				continue
			}
		}
		if _, exists := r.byID[s.ID]; !exists {
			r.order = append(r.order, s.ID)
		}
		r.byID[s.ID] = s.Clone()
		r.generated[key] = s.ID
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *SignalRepository) Insert(ctx context.Context, s domain.Signal) (domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.insert")
	defer span.End()

	if s.ID == "" {
		return domain.Signal{}, fmt.Errorf("signal has no id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID]; exists {
		return domain.Signal{}, fmt.Errorf("signal %s already exists", s.ID)
	}
	r.byID[s.ID] = s.Clone()
	r.order = append(r.order, s.ID)
	return s.Clone(), nil
}

func (r *SignalRepository) Get(ctx context.Context, id string) (domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.get")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return domain.Signal{}, fmt.Errorf("signal %s: %w", id, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// Update applies fn to a copy of the stored signal and saves the copy only if
// fn succeeds.
func (r *SignalRepository) Update(ctx context.Context, id string, fn func(*domain.Signal) error) (domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.update")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return domain.Signal{}, fmt.Errorf("signal %s: %w", id, domain.ErrNotFound)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return domain.Signal{}, err
	}
	next.ID = current.ID
	r.byID[id] = next.Clone()
	return next, nil
}

// List returns matching signals in insertion order.
func (r *SignalRepository) List(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.list")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Signal, 0, len(r.order))
	for _, id := range r.order {
		s := r.byID[id]
		if filter.Match(s) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}
