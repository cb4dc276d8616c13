// Package resilience wraps calls to public upstream APIs with circuit
// breaking, retries and per-provider health tracking.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker for logging.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open. Default: 1.
	MaxRequests uint32

	// Interval clears the counts periodically while closed. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open. Default: 30s.
	Timeout time.Duration

	// ReadyToTrip decides when to open. Default: DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)

	// IsExcluded marks errors that count neither as success nor failure.
	// Default: IsCallerCancellation.
	IsExcluded func(err error) bool
}

// DefaultCircuitBreakerConfig returns the breaker used for public data APIs.
// The dashboard refreshes at most every ten seconds, so counts are cleared
// every two minutes to keep a single bad minute from pinning it open.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
		IsExcluded:  IsCallerCancellation,
	}
}

// DefaultReadyToTrip opens after at least 5 requests with a failure ratio of
// 50% or more.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// IsCallerCancellation reports errors caused by the caller abandoning the
// request rather than by the upstream.
func IsCallerCancellation(err error) bool {
	return errors.Is(err, ErrRequestCancelled) || errors.Is(err, context.Canceled)
}

// NewCircuitBreaker creates a typed circuit breaker.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.IsExcluded == nil {
		cfg.IsExcluded = IsCallerCancellation
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		IsExcluded:    cfg.IsExcluded,
	})
}
