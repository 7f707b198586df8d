package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do when the breaker rejects the call.
var ErrOpen = errors.New("circuit breaker is open")

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "half-open"
	}
}

// Config for a Breaker.
type Config struct {
	// FailureThreshold consecutive failures trip the breaker open.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenMaxCalls limits concurrent probes while half-open.
	HalfOpenMaxCalls int
}

// Breaker is a three-state circuit breaker protecting an external
// collaborator. Closed passes calls through; enough consecutive failures
// open it; after ResetTimeout a limited number of probe calls decide
// whether it closes again.
type Breaker struct {
	mu            sync.Mutex
	cfg           Config
	state         State
	failures      int
	halfOpenCalls int
	changedAt     time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &Breaker{cfg: cfg, state: StateClosed, changedAt: time.Now()}
}

// Allow reports whether a call may proceed, advancing open -> half-open
// once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.changedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.halfOpenCalls = 1
		return true
	default: // half-open
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenCalls++
		return true
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// Do runs fn under the breaker, returning ErrOpen without calling it when
// the breaker rejects the call.
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		b.Failure()
		return err
	}

	b.Success()
	return nil
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a snapshot for the admin API.
func (b *Breaker) Metrics() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"state":             b.state.String(),
		"failure_count":     b.failures,
		"failure_threshold": b.cfg.FailureThreshold,
		"reset_timeout":     b.cfg.ResetTimeout.String(),
		"last_state_change": b.changedAt,
		"time_in_state":     time.Since(b.changedAt).String(),
	}
}

func (b *Breaker) transition(to State) {
	b.state = to
	b.changedAt = time.Now()
	if to != StateHalfOpen {
		b.halfOpenCalls = 0
	}
	if to == StateClosed {
		b.failures = 0
	}
}
