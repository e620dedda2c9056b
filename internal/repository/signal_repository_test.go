package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinsignal/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func newTestRepo() *SignalRepository {
	return NewSignalRepository(trace.NewNoopTracerProvider().Tracer("test"))
}

func generatedSignal(id, symbol string, at time.Time) domain.Signal {
	return domain.Signal{
		ID:         id,
		Symbol:     symbol,
		SignalType: domain.SignalBuy,
		Strength:   55,
		EntryPrice: 100,
		Timeframe:  domain.Timeframe4h,
		Status:     domain.SignalActive,
		Source:     domain.SourceGenerated,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestSaveGeneratedRefreshesActiveSignal(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()
	t1 := t0.Add(time.Minute)

	if _, err := repo.SaveGenerated(ctx, []domain.Signal{generatedSignal("a", "BTCUSDT", t0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed := generatedSignal("b", "BTCUSDT", t1)
	refreshed.Strength = 70
	saved, err := repo.SaveGenerated(ctx, []domain.Signal{refreshed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved[0].ID != "a" || !saved[0].CreatedAt.Equal(t0) || !saved[0].UpdatedAt.Equal(t1) {
		t.Fatalf("expected refresh in place, got %+v", saved[0])
	}

	all, _ := repo.List(ctx, domain.SignalFilter{})
	if len(all) != 1 || all[0].Strength != 70 {
		t.Fatalf("expected one refreshed signal, got %+v", all)
	}
}

func TestSaveGeneratedKeepsCancelledSignal(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()

	if _, err := repo.SaveGenerated(ctx, []domain.Signal{generatedSignal("a", "ETHUSDT", t0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Update(ctx, "a", func(s *domain.Signal) error {
		s.Status = domain.SignalCancelled
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.SaveGenerated(ctx, []domain.Signal{generatedSignal("b", "ETHUSDT", t0.Add(time.Hour))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved[0].ID != "b" {
		t.Fatalf("expected a new signal after cancellation, got %s", saved[0].ID)
	}

	cancelled, err := repo.Get(ctx, "a")
	if err != nil || cancelled.Status != domain.SignalCancelled {
		t.Fatalf("cancelled signal must survive, got %+v, %v", cancelled, err)
	}
	all, _ := repo.List(ctx, domain.SignalFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(all))
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	s := generatedSignal("m1", "SOLUSDT", time.Unix(0, 0))
	if _, err := repo.Insert(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Insert(ctx, s); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := repo.Insert(ctx, domain.Signal{}); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestGetAndUpdateNotFound(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := repo.Update(ctx, "missing", func(*domain.Signal) error { return nil })
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFailureLeavesSignalUntouched(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	if _, err := repo.Insert(ctx, generatedSignal("x", "ADAUSDT", time.Unix(0, 0))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "x", func(s *domain.Signal) error {
		s.Strength = 99
		s.ID = "hijack"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := repo.Get(ctx, "x")
	if got.Strength != 55 {
		t.Fatalf("failed update leaked: %+v", got)
	}

	updated, err := repo.Update(ctx, "x", func(s *domain.Signal) error {
		s.ID = "hijack"
		s.Strength = 80
		return nil
	})
	if err != nil || updated.ID != "x" || updated.Strength != 80 {
		t.Fatalf("unexpected update result: %+v, %v", updated, err)
	}
}

func TestListFiltersAndCopies(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()
	sell := generatedSignal("s", "DOTUSDT", time.Unix(0, 0))
	sell.SignalType = domain.SignalSell
	sell.Indicators = []domain.IndicatorResult{{Name: domain.IndicatorRSI, Value: 20}}
	if _, err := repo.SaveGenerated(ctx, []domain.Signal{generatedSignal("b", "BTCUSDT", time.Unix(0, 0)), sell}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sells, _ := repo.List(ctx, domain.SignalFilter{SignalType: domain.SignalSell})
	if len(sells) != 1 || sells[0].ID != "s" {
		t.Fatalf("unexpected filter result: %+v", sells)
	}
	sells[0].Indicators[0].Value = 99

	again, _ := repo.Get(ctx, "s")
	if again.Indicators[0].Value != 20 {
		t.Fatal("list returned shared indicator slice")
	}
}
