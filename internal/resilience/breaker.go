// Package resilience provides the circuit breaker guarding audio calls and
// the backoff used while acquiring devices at startup.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // Normal operation
	Open                  // Failing fast
	HalfOpen              // Testing recovery
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// MarshalText renders the state name for status payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrOpen is returned by Allow while the breaker is failing fast.
var ErrOpen = errors.New("circuit breaker open")

// Stats is a snapshot of a breaker for status reporting.
type Stats struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	Trips    uint64    `json:"trips"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

// Breaker fails fast after Threshold consecutive failures and tries again
// once ResetTimeout has passed since it opened.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	trips     uint64
	openedAt  time.Time
}

// New creates a breaker with config
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// Name returns the configured breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow returns ErrOpen while the breaker is open and the reset timeout has
// not yet elapsed. The first call after the timeout moves it to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		return ErrOpen
	}
	b.setState(HalfOpen)
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.setState(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case HalfOpen:
		b.setState(Open)
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.setState(Open)
		}
	}
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Name: b.cfg.Name, State: b.state, Failures: b.failures, Trips: b.trips}
	if b.state != Closed {
		s.OpenedAt = b.openedAt
	}
	return s
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(Closed)
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0

	switch to {
	case Closed:
		b.failures = 0
		slog.Info("circuit breaker closed", "breaker", b.cfg.Name)
	case Open:
		b.openedAt = b.now()
		b.trips++
		slog.Warn("circuit breaker opened", "breaker", b.cfg.Name, "failures", b.failures, "retry_in", b.cfg.ResetTimeout)
	case HalfOpen:
		slog.Info("circuit breaker half-open", "breaker", b.cfg.Name)
	}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(fn func() error) error {
	_, err := ExecuteWithResult(b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// ExecuteWithResult runs fn returning value and error with circuit protection
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return result, nil
}
