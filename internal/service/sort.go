package service

import (
	"fmt"
	"sort"
	"strings"

	"coinsignal/internal/domain"
)

// DefaultSort is most recent first.
const DefaultSort = "-created_date"

type signalLess func(a, b domain.Signal) bool

var sortFields = map[string]signalLess{
	"created_date":     func(a, b domain.Signal) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updated_date":     func(a, b domain.Signal) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	"strength":         func(a, b domain.Signal) bool { return a.Strength < b.Strength },
	"confidence_score": func(a, b domain.Signal) bool { return a.ConfidenceScore < b.ConfidenceScore },
	"symbol":           func(a, b domain.Signal) bool { return a.Symbol < b.Symbol },
	"price_change_24h": func(a, b domain.Signal) bool { return a.PriceChange24h < b.PriceChange24h },
}

// parseSort splits "-field" into its comparator and direction.
func parseSort(spec string) (signalLess, bool, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	desc := strings.HasPrefix(spec, "-")
	field := strings.TrimPrefix(spec, "-")
	less, ok := sortFields[field]
	if !ok {
		return nil, false, &domain.ValidationError{Fields: []domain.FieldError{{
			Field:   "sort",
			Message: fmt.Sprintf("cannot sort by %q", field),
		}}}
	}
	return less, desc, nil
}

// sortSignals orders in place. Ties fall back to id so the order is stable
// across passes.
func sortSignals(signals []domain.Signal, spec string) error {
	less, desc, err := parseSort(spec)
	if err != nil {
		return err
	}
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return signals[i].ID < signals[j].ID
	})
	return nil
}
