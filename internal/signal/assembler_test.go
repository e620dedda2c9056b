package signal

import (
	"errors"
	"math"
	"testing"
	"time"

	"coinsignal/internal/domain"
	"coinsignal/internal/indicator"
)

func fixedAssembler() *Assembler {
	return NewAssembler(
		indicator.NewEngine(indicator.DefaultConfig()),
		func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
		func() string { return "sig-1" },
	)
}

func testSeries(n int) domain.OHLCSeries {
	base := time.Unix(0, 0).UTC()
	s := domain.OHLCSeries{AssetID: "bitcoin"}
	for i := 0; i < n; i++ {
		c := 43000 + float64(i)*10
		s.Points = append(s.Points, domain.OHLCPoint{
			Time:  base.Add(time.Duration(i) * 4 * time.Hour),
			Open:  c - 5,
			High:  c + 20,
			Low:   c - 20,
			Close: c,
		})
	}
	return s
}

func btcSnapshot(price, change float64) domain.CoinSnapshot {
	return domain.CoinSnapshot{
		ID:                       "bitcoin",
		Symbol:                   "btc",
		CurrentPrice:             price,
		PriceChangePercentage24h: change,
		TotalVolume:              2.5e10,
		MarketCap:                8.5e11,
	}
}

func TestAssembleBuyScenario(t *testing.T) {
	sig, err := fixedAssembler().Assemble(btcSnapshot(43250.50, 2.45), testSeries(30), domain.Timeframe4h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sig.SignalType != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s", sig.SignalType)
	}
	if sig.Strength != 52 {
		t.Fatalf("expected strength 52, got %d", sig.Strength)
	}
	if sig.EntryPrice != 43250.50 {
		t.Fatalf("expected entry 43250.50, got %v", sig.EntryPrice)
	}
	if sig.TargetPrice != 45413.025 {
		t.Fatalf("expected target 45413.025, got %v", sig.TargetPrice)
	}
	if sig.StopLoss != 41952.985 {
		t.Fatalf("expected stop 41952.985, got %v", sig.StopLoss)
	}
	if sig.ConfidenceScore != 0.245 {
		t.Fatalf("expected confidence 0.245, got %v", sig.ConfidenceScore)
	}
	if sig.Symbol != "BTCUSDT" || sig.ID != "sig-1" {
		t.Fatalf("unexpected identity: %s %s", sig.Symbol, sig.ID)
	}
	if sig.Status != domain.SignalActive || sig.Source != domain.SourceGenerated {
		t.Fatalf("unexpected status/source: %s %s", sig.Status, sig.Source)
	}
	if len(sig.Indicators) != len(indicator.DefaultOrder) {
		t.Fatalf("expected %d indicators, got %d", len(indicator.DefaultOrder), len(sig.Indicators))
	}
	if sig.OverallSignal != indicator.Overall(sig.Indicators) {
		t.Fatalf("overall signal does not match indicators: %s", sig.OverallSignal)
	}
	if !sig.CreatedAt.Equal(sig.UpdatedAt) {
		t.Fatal("expected equal created/updated timestamps on a new signal")
	}
}

func TestAssembleZeroChangeIsSell(t *testing.T) {
	sig, err := fixedAssembler().Assemble(btcSnapshot(100, 0), testSeries(14), domain.Timeframe1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.SignalType != domain.SignalSell || sig.Strength != 50 {
		t.Fatalf("expected SELL/50, got %s/%d", sig.SignalType, sig.Strength)
	}
	if sig.TargetPrice != 95 || sig.StopLoss != 103 {
		t.Fatalf("expected target 95 stop 103, got %v %v", sig.TargetPrice, sig.StopLoss)
	}
	if sig.ConfidenceScore != 0 {
		t.Fatalf("expected zero confidence, got %v", sig.ConfidenceScore)
	}
}

func TestAssembleCapsStrengthAndConfidence(t *testing.T) {
	sig, err := fixedAssembler().Assemble(btcSnapshot(10, -75.5), testSeries(14), domain.Timeframe1d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.SignalType != domain.SignalSell || sig.Strength != 100 || sig.ConfidenceScore != 1 {
		t.Fatalf("expected capped SELL, got %s/%d/%v", sig.SignalType, sig.Strength, sig.ConfidenceScore)
	}
}

func TestAssembleRoundsHalfAwayFromZero(t *testing.T) {
	sig, err := fixedAssembler().Assemble(btcSnapshot(1, -2.5), testSeries(14), domain.Timeframe1d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.Strength != 53 {
		t.Fatalf("expected 52.5 to round to 53, got %d", sig.Strength)
	}
}

func TestAssembleInvariants(t *testing.T) {
	asm := fixedAssembler()
	changes := []float64{-120, -10, -3.33, -0.0001, 0, 0.0001, 1.5, 9.99, 10, 42, 300}
	prices := []float64{0.00000123, 0.5, 1, 43250.5, 1e6}
	for _, chg := range changes {
		for _, price := range prices {
			sig, err := asm.Assemble(btcSnapshot(price, chg), testSeries(20), domain.Timeframe15m)
			if err != nil {
				t.Fatalf("price %v change %v: unexpected error: %v", price, chg, err)
			}
			if sig.Strength < 1 || sig.Strength > 100 {
				t.Fatalf("strength out of range: %d", sig.Strength)
			}
			if sig.ConfidenceScore < 0 || sig.ConfidenceScore > 1 {
				t.Fatalf("confidence out of range: %v", sig.ConfidenceScore)
			}
			if sig.SignalType != domain.SignalBuy && sig.SignalType != domain.SignalSell {
				t.Fatalf("unexpected signal type %s", sig.SignalType)
			}
			if sig.TargetPrice <= 0 || sig.StopLoss <= 0 {
				t.Fatalf("price %v change %v: non-positive target/stop %v/%v", price, chg, sig.TargetPrice, sig.StopLoss)
			}
			if (sig.SignalType == domain.SignalBuy) != (chg > 0) {
				t.Fatalf("change %v classified as %s", chg, sig.SignalType)
			}
		}
	}
}

func TestAssembleRejectsNonFiniteInput(t *testing.T) {
	cases := map[string]domain.CoinSnapshot{
		"nan price":      btcSnapshot(math.NaN(), 1),
		"inf price":      btcSnapshot(math.Inf(1), 1),
		"zero price":     btcSnapshot(0, 1),
		"negative price": btcSnapshot(-3, 1),
		"nan change":     btcSnapshot(100, math.NaN()),
	}
	missingVolume := btcSnapshot(100, 1)
	missingVolume.TotalVolume = math.NaN()
	cases["nan volume"] = missingVolume
	missingCap := btcSnapshot(100, 1)
	missingCap.MarketCap = math.Inf(-1)
	cases["inf market cap"] = missingCap

	for name, snap := range cases {
		_, err := fixedAssembler().Assemble(snap, testSeries(14), domain.Timeframe4h)
		var integrity *domain.DataIntegrityError
		if !errors.As(err, &integrity) || !errors.Is(err, domain.ErrDataIntegrity) {
			t.Fatalf("%s: expected DataIntegrityError, got %v", name, err)
		}
	}
}

func TestAssembleRejectsUnknownTimeframe(t *testing.T) {
	_, err := fixedAssembler().Assemble(btcSnapshot(100, 1), testSeries(14), domain.Timeframe("2h"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewAssemblerDefaults(t *testing.T) {
	asm := NewAssembler(nil, nil, nil)
	a, err := asm.Assemble(btcSnapshot(100, 1), testSeries(14), domain.Timeframe4h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := asm.Assemble(btcSnapshot(100, 1), testSeries(14), domain.Timeframe4h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", a.ID, b.ID)
	}
}
