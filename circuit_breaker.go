package memcache

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker wraps a Client.WithConnection lease+execute cycle so
// repeated ConnectionUnavailable/ProtocolError bursts trip it open instead
// of letting every caller queue up against a server that's already down.
// Implementations may be swapped in for testing.
type CircuitBreaker interface {
	// Execute runs fn if the breaker is closed (or half-open and
	// probing). Returns gobreaker's own error if the breaker is open.
	Execute(fn func() error) error

	State() CircuitBreakerState
}

// CircuitBreakerState mirrors gobreaker's three states without leaking the
// dependency into the Client API.
type CircuitBreakerState int

const (
	CircuitStateClosed CircuitBreakerState = iota
	CircuitStateHalfOpen
	CircuitStateOpen
)

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

// goBreaker adapts gobreaker.CircuitBreaker[struct{}] to CircuitBreaker.
// The generic result type is a bare struct{} because WithConnection's
// closures return only an error — there's no response value for the
// breaker to thread through a lease+execute cycle the way there would be
// for a single synchronous request.
type goBreaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func (w *goBreaker) Execute(fn func() error) error {
	_, err := w.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (w *goBreaker) State() CircuitBreakerState {
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

// NewCircuitBreaker builds a CircuitBreaker with a custom trip rule in place
// of gobreaker's default: trip after at least 3 requests with a >=60%
// failure ratio.
func NewCircuitBreaker(name string, maxRequests uint32, interval, timeout time.Duration) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return &goBreaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}
