package backend

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for resume starts. First
// starts stay fail-fast: spawn errors there are configuration problems
// the operator must see immediately. Resume restarts can hit transient
// conditions (fd pressure, a binary mid-update) worth retrying.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages per-binary circuit breakers so a binary that
// repeatedly fails to spawn stops being hammered.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given binary name, creating
// it on first use.
func (r *BreakerRegistry) Get(binary string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[binary]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        binary,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
	})

	r.breakers[binary] = cb
	return cb
}

// StartWithRetry starts a process with exponential backoff and circuit
// breaker protection. Used for resume restarts; an open circuit or
// exhausted backoff surfaces the last start error.
func StartWithRetry(s *Supervisor, opts StartOptions, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig) (*Handle, error) {
	var handle *Handle

	operation := func() error {
		result, err := cb.Execute(func() (interface{}, error) {
			return s.Start(opts)
		})
		if err != nil {
			// Circuit open - don't keep retrying.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}

		handle = result.(*Handle)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return handle, nil
}
