package metacache

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-metacache/metacache/meta"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps circuit breaker functionality.
// This allows users to provide their own implementation.
type CircuitBreaker interface {
	// Execute runs the given function if the circuit breaker is closed.
	// Returns error if circuit is open or if the function fails.
	Execute(func() (*meta.Response, error)) (*meta.Response, error)

	// State returns the current state of the circuit breaker.
	State() CircuitBreakerState
}

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitStateClosed CircuitBreakerState = iota
	CircuitStateHalfOpen
	CircuitStateOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitStateClosed:
		return "closed"
	case CircuitStateHalfOpen:
		return "half-open"
	case CircuitStateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen wraps gobreaker's open/too-many-requests sentinels into a
// typed error carrying the server address, the same way ConnectionError
// wraps a dial/write/read failure. This lets IsServerError classify a
// tripped breaker as a server-side failure like any other, so raise/silence
// (Router's RaiseOnServerError) and the gutter fallback (Router.Execute)
// both treat it consistently with a mark-down.
type ErrCircuitOpen struct {
	Addr string
	Err  error
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("metacache: circuit open for %s: %v", e.Addr, e.Err)
}

func (e *ErrCircuitOpen) Unwrap() error { return e.Err }

// ShouldCloseConnection reports false: a tripped breaker says nothing about
// the state of any one connection, so there's nothing to close here.
func (e *ErrCircuitOpen) ShouldCloseConnection() bool { return false }

// GoBreakerWrapper adapts gobreaker.CircuitBreaker to our interface
type GoBreakerWrapper struct {
	addr string
	cb   *gobreaker.CircuitBreaker[*meta.Response]
}

func (w *GoBreakerWrapper) Execute(fn func() (*meta.Response, error)) (*meta.Response, error) {
	resp, err := w.cb.Execute(fn)
	if err != nil && (errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)) {
		return nil, &ErrCircuitOpen{Addr: w.addr, Err: err}
	}
	return resp, err
}

func (w *GoBreakerWrapper) State() CircuitBreakerState {
	switch w.cb.State() {
	case gobreaker.StateClosed:
		return CircuitStateClosed
	case gobreaker.StateHalfOpen:
		return CircuitStateHalfOpen
	case gobreaker.StateOpen:
		return CircuitStateOpen
	default:
		return CircuitStateClosed
	}
}

// NewGoBreaker creates a new circuit breaker using gobreaker
func NewGoBreaker(settings gobreaker.Settings) CircuitBreaker {
	return &GoBreakerWrapper{
		addr: settings.Name,
		cb:   gobreaker.NewCircuitBreaker[*meta.Response](settings),
	}
}

// NewGobreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
func NewGobreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(serverAddr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return NewGoBreaker(settings)
	}
}
