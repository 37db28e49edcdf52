// Package resilience provides a circuit breaker for outbound service calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Breaker states.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripping, reject calls
	StateHalfOpen              // allowing a probe call
)

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

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// Opts configures a Breaker.
type Opts struct {
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// DefaultOpts are sensible defaults for a single flaky upstream.
var DefaultOpts = Opts{FailThreshold: 5, Timeout: 30 * time.Second}

// Breaker rejects calls after FailThreshold consecutive failures, probing
// again once Timeout has elapsed. It wraps a call, never retries one.
type Breaker struct {
	mu       sync.Mutex
	opts     Opts
	state    State
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time // for testing
}

// NewBreaker creates a circuit breaker.
func NewBreaker(opts Opts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOpts.Timeout
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState transitions open to half-open after Timeout. Must hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probing = false
	}
	return b.state
}

// Call executes f unless the breaker is open. In half-open state a single
// probe is let through; its outcome closes or re-opens the breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	switch b.currentState() {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := f(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The caller went away; that says nothing about upstream
			// health, so it neither counts as a failure nor consumes
			// the half-open probe.
			if b.state == StateHalfOpen {
				b.probing = false
			}
			return err
		}
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
		}
		return err
	}

	b.state = StateClosed
	b.failures = 0
	return nil
}
