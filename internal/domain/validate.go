package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the signal invariants. It never corrects a field; every
// violation is reported in the returned *ValidationError.
func (s Signal) Validate() error {
	var fields []FieldError

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}

	numeric := []struct {
		name  string
		value float64
	}{
		{"entry_price", s.EntryPrice},
		{"target_price", s.TargetPrice},
		{"stop_loss", s.StopLoss},
		{"market_cap", s.MarketCap},
		{"volume_24h", s.Volume24h},
		{"price_change_24h", s.PriceChange24h},
		{"confidence_score", s.ConfidenceScore},
	}
	for _, n := range numeric {
		if !isFinite(n.value) {
			fields = append(fields, FieldError{Field: n.name, Message: n.name + " must be a finite number"})
		}
	}

	if s.Source == SourceGenerated && s.SignalType == SignalHold {
		fields = append(fields, FieldError{Field: "signal_type", Message: "signal_type HOLD is reserved for manual signals"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
