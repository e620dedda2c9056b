package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// Kind sentinels; every typed error below matches one of these via errors.Is.
	ErrUpstream         = errors.New("upstream error")
	ErrRateLimited      = errors.New("rate limited")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataIntegrity    = errors.New("data integrity")
	ErrValidation       = errors.New("validation failed")
)

// UpstreamError is a transport failure or non-2xx response from the market data provider.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// RateLimitError is an HTTP 429 from the provider. RetryAfter is zero when the
// response carried no usable Retry-After header.
type RateLimitError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Op, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Op)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

type InsufficientDataError struct {
	AssetID string
	Got     int
	Min     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("ohlc series for %s has %d points, need at least %d", e.AssetID, e.Got, e.Min)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DataIntegrityError reports a missing or non-finite numeric field in upstream data.
type DataIntegrityError struct {
	AssetID string
	Field   string
	Value   float64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s: field %s has invalid value %v", e.AssetID, e.Field, e.Value)
}

func (e *DataIntegrityError) Is(target error) bool { return target == ErrDataIntegrity }

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field of a Signal that broke its invariants.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid signal: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
