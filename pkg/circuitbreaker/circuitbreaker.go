// Package circuitbreaker stops calls to a failing dependency for a cooling
// period and lets a few trial calls through before resuming normal traffic.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooling period ends.
	StateOpen
	// StateHalfOpen lets a limited number of trial calls through.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling fn while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTrialLimit is returned when every half-open trial slot is taken.
	ErrTrialLimit = errors.New("circuit breaker trial limit reached")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrTrialLimit)
}

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int

	// SuccessThreshold consecutive trial successes close a half-open breaker.
	SuccessThreshold int

	// CoolDown is how long the breaker stays open.
	CoolDown time.Duration

	// MaxTrials bounds concurrent calls while half-open.
	MaxTrials int

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count against the dependency.
	// Nil counts every non-nil error.
	IsFailure func(err error) bool

	now func() time.Time
}

// DefaultConfig returns the settings used when no option overrides them.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
		MaxTrials:        1,
		now:              time.Now,
	}
}

// Option configures a breaker.
type Option func(*Config)

// WithFailureThreshold sets the failures needed to open the breaker.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the trial successes needed to close the breaker.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithCoolDown sets how long the breaker stays open.
func WithCoolDown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CoolDown = d
		}
	}
}

// WithMaxTrials sets the number of concurrent half-open calls.
func WithMaxTrials(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxTrials = n
		}
	}
}

// WithOnStateChange registers a state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// WithIsFailure sets the failure classifier.
func WithIsFailure(fn func(err error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(c *Config) { c.now = now }
}

// Counts are the breaker's running totals.
type Counts struct {
	Requests             int
	Rejected             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	config Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute calls fn unless the breaker rejects it, then records the outcome.
// A context error from the caller never counts as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(trial, err, ctx.Err() != nil)
	return err
}

func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.config.now().Sub(cb.openedAt) >= cb.config.CoolDown {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		cb.counts.Requests++
		return false, nil
	case StateHalfOpen:
		if cb.trials >= cb.config.MaxTrials {
			cb.counts.Rejected++
			return false, ErrTrialLimit
		}
		cb.trials++
		cb.counts.Requests++
		return true, nil
	default:
		cb.counts.Rejected++
		return false, ErrOpen
	}
}

func (cb *CircuitBreaker) record(trial bool, err error, cancelled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial && cb.trials > 0 {
		cb.trials--
	}

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}
	if failed && cancelled {
		return
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.trials = 0
	if to == StateOpen {
		cb.openedAt = cb.config.now()
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooling period has
// ended still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the running totals.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset closes the breaker and clears its counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.trials = 0
}

// CacheBreaker returns a breaker tuned for a cache: it trips fast and
// retries soon, since every rejected call just falls back to the store.
func CacheBreaker(onStateChange func(name string, from, to State), isFailure func(error) bool) *CircuitBreaker {
	return New(
		"cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCoolDown(10*time.Second),
		WithOnStateChange(onStateChange),
		WithIsFailure(isFailure),
	)
}
