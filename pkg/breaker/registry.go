// Package breaker gates per-source calls behind circuit breakers so that a
// failing provider is not hammered with further requests.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"tc.com/price-oracle/pkg/logging"
	"tc.com/price-oracle/pkg/metrics"
)

// ErrNotRegistered indicates the source has no breaker in the registry.
var ErrNotRegistered = errors.New("source not registered")

// Config holds circuit breaker settings shared by all sources.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips a
	// breaker from closed to open.
	FailureThreshold uint32
	// OpenDuration is how long a breaker stays open before the next call
	// attempt is allowed through as a half-open trial.
	OpenDuration time.Duration
}

// Registry holds one circuit breaker per registered source. A new breaker
// starts closed with zero failures; the open-to-half-open transition is
// evaluated lazily on the next Allow or State call, not by a timer.
type Registry struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.RWMutex
	breakers map[string]*gobreaker.TwoStepCircuitBreaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(cfg Config, logger *logging.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.TwoStepCircuitBreaker),
	}
}

// Register creates a closed breaker for the source. Registering an existing
// name is a no-op so breaker history survives repeated registration attempts.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breakers[name]; ok {
		return
	}
	r.breakers[name] = r.newBreaker(name)
}

// Remove destroys the breaker state for the source.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}

// Allow reports whether the source may be called. When allowed it returns a
// done callback that must be invoked with the call outcome; when the breaker
// is open (or the half-open trial slot is taken) it returns an error and the
// source must be skipped without being invoked.
func (r *Registry) Allow(name string) (func(success bool), error) {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotRegistered
	}

	done, err := cb.Allow()
	if err != nil {
		return nil, err
	}
	return done, nil
}

// State returns the breaker state for the source.
func (r *Registry) State(name string) (gobreaker.State, error) {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed, ErrNotRegistered
	}
	return cb.State(), nil
}

// Health returns a snapshot of queryability per source: true for closed and
// half-open breakers, false for open ones.
func (r *Registry) Health() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make(map[string]bool, len(r.breakers))
	for name, cb := range r.breakers {
		health[name] = cb.State() != gobreaker.StateOpen
	}
	return health
}

// newBreaker builds a breaker wired to this registry's config.
func (r *Registry) newBreaker(name string) *gobreaker.TwoStepCircuitBreaker {
	threshold := r.cfg.FailureThreshold
	return gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // exactly one trial call in half-open
		Timeout:     r.cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Info("Circuit breaker state change",
				"source", name,
				"from", from.String(),
				"to", to.String())
			metrics.RecordBreakerState(name, stateValue(to))
			if to == gobreaker.StateOpen {
				metrics.RecordBreakerTrip(name)
			}
		},
	})
}

// stateValue maps a breaker state to its gauge value.
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
