// breaker.go - circuit breaker guarding the object-store backend so an
// unreachable MinIO fails requests fast instead of tying up workers.
package storage

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"photo-explorer/internal/logging"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker opens after maxFailures consecutive failures and lets a
// single trial call through once timeout has elapsed.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func NewCircuitBreaker(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fields := map[string]any{"name": name, "from": from.String(), "to": to.String()}
			if to == gobreaker.StateOpen {
				fields["timeout"] = timeout.String()
				logging.Warn("circuit_breaker_opened", fields)
				return
			}
			logging.Info("circuit_breaker_"+stateEvent(to), fields)
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[struct{}](st)}
}

func stateEvent(s gobreaker.State) string {
	if s == gobreaker.StateHalfOpen {
		return "half_open"
	}
	return s.String()
}

// Execute runs fn unless the circuit is open. Any error returned by fn
// counts as a failure, so callers must map expected outcomes such as a
// missing object to nil before returning.
func (b *CircuitBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}
