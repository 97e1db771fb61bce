package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kbukum/mediaflow/logger"
)

// State is the position of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned without calling the service while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded service in logs.
	Name string
	// MaxFailures consecutive failures open the breaker. Default 5.
	MaxFailures int
	// Timeout is how long the breaker stays open before probing. Default 30s.
	Timeout time.Duration
	// HalfOpenMaxCalls probes must succeed to close the breaker. Default 1.
	HalfOpenMaxCalls int
	// IsFailure decides whether an error counts against the breaker.
	// Default: every error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange replaces the default warning log on transitions.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns the defaults for a named service.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// CircuitBreaker stops calling an external service after MaxFailures
// consecutive failures. After Timeout it lets HalfOpenMaxCalls probes
// through; their success closes the breaker, a failure reopens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	// probes started and probes succeeded while half-open.
	probes, passed int
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = countsAsFailure
	}
	if cfg.OnStateChange == nil {
		log := logger.Get("resilience")
		cfg.OnStateChange = func(name string, from, to State) {
			log.Warn("circuit breaker state changed", logger.Fields(
				"breaker", name, "from", from.String(), "to", to.String(),
			))
		}
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute calls fn unless the breaker is open, in which case it returns
// ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err != nil && cb.cfg.IsFailure(err))
	return err
}

// State returns the current state, moving an expired open breaker to
// half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.refresh()
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.refresh() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probes < cb.cfg.HalfOpenMaxCalls {
			cb.probes++
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state := cb.refresh()
	if !failed {
		if state == StateHalfOpen {
			cb.passed++
			if cb.passed >= cb.cfg.HalfOpenMaxCalls {
				cb.transition(StateClosed)
			}
		}
		cb.failures = 0
		return
	}
	cb.failures++
	if state == StateHalfOpen || (state == StateClosed && cb.failures >= cb.cfg.MaxFailures) {
		cb.openedAt = time.Now()
		cb.transition(StateOpen)
	}
}

// refresh must be called with mu held.
func (cb *CircuitBreaker) refresh() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Timeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.probes, cb.passed = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
	cb.cfg.OnStateChange(cb.cfg.Name, from, to)
}
