package infra

import (
	"errors"
	"sync"
	"time"
)

// ── Storage breaker ───────────────────────────────────────────────────────────
// Guards batch writes against a database that keeps failing. After
// FailureThreshold consecutive failures the breaker opens and every call
// fails fast with ErrBreakerOpen until OpenTimeout elapses. Half-open lets a
// single probe call through and rejects the others while it runs; a
// successful probe closes the breaker again.

// ErrBreakerOpen is returned by Do while the breaker is open.
var ErrBreakerOpen = errors.New("storage breaker is open")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probing   bool
	threshold int
	timeout   time.Duration
	now       func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{threshold: cfg.FailureThreshold, timeout: cfg.OpenTimeout, now: cfg.Now}
}

// State reports the current state, moving open → half-open once the timeout
// has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.timeout {
		b.state = BreakerHalfOpen
	}
	return b.state
}

// Do runs fn unless the breaker is open, or half-open with a probe already in
// flight. fn's error is returned unchanged.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	state := b.stateLocked()
	if state == BreakerOpen || (state == BreakerHalfOpen && b.probing) {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	probe := state == BreakerHalfOpen
	if probe {
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	if err == nil {
		b.state = BreakerClosed
		b.failures = 0
		return nil
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.failures = 0
	}
	return err
}
