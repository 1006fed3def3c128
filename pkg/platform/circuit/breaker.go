// Package circuit guards calls to a flaky dependency with a three-state
// circuit breaker.
package circuit

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do without running the call while the circuit is open.
var ErrOpen = errors.New("circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen lets trial calls through after the cooldown.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Settings tune a Breaker. Zero fields take the defaults of New.
type Settings struct {
	// FailureThreshold consecutive failures open a closed circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close the circuit.
	SuccessThreshold int
	Cooldown         time.Duration
	// IsFailure decides whether an error counts against the dependency.
	// Errors it rejects are returned without touching the counters.
	IsFailure func(error) bool
	// OnTransition is called, outside the lock, after each state change.
	OnTransition func(name string, from, to State)
	Now          func() time.Time
}

// Breaker opens after FailureThreshold consecutive failures and rejects
// calls for Cooldown. It then half-opens: one failed trial reopens it and
// SuccessThreshold successes close it.
type Breaker struct {
	name string
	cfg  Settings

	mu       sync.Mutex
	state    State
	fails    int
	passes   int
	openedAt time.Time
}

func New(name string, cfg Settings) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg}
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return b.state
}

// Do runs fn unless the circuit is open and records its outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil && !b.cfg.IsFailure(err) {
		return err
	}
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cool()
	return b.state != StateOpen
}

// cool half-opens an open circuit whose cooldown has passed. Caller holds mu.
func (b *Breaker) cool() {
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.passes = 0
	}
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	b.cool()
	from := b.state
	if ok {
		b.fails = 0
		if b.state == StateHalfOpen {
			b.passes++
			if b.passes >= b.cfg.SuccessThreshold {
				b.state = StateClosed
			}
		}
	} else {
		b.fails++
		b.passes = 0
		if b.state == StateHalfOpen || b.fails >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = b.cfg.Now()
		}
	}
	to := b.state
	b.mu.Unlock()

	// half-open is entered lazily by cool, so only report open and close
	if from != to && b.cfg.OnTransition != nil {
		b.cfg.OnTransition(b.name, from, to)
	}
}
