// Package circuitbreaker sheds load from an unhealthy remote endpoint:
// after enough consecutive failures calls fail fast until a trial call
// succeeds again. The reconciliation loop's Solana RPC client is the one
// consumer; its transient-error handling turns a rejected call into a
// retry on the next cycle.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State identifies the breaker position.
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
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           // consecutive failures before the breaker opens (default 5)
	SuccessThreshold int           // half-open successes required to close again (default 2)
	OpenTimeout      time.Duration // wait before letting a trial call through (default 30s)
	OnStateChange    func(from, to State)
}

// Breaker tracks the failure streak of one endpoint.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	trialWins int // successes while half-open
	openedAt  time.Time

	now func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker admits calls
// again once OpenTimeout has passed, entering the half-open trial phase.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) <= b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

// RecordSuccess clears the failure streak. In the half-open phase enough
// consecutive successes close the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateHalfOpen {
		return
	}
	b.trialWins++
	if b.trialWins >= b.cfg.SuccessThreshold {
		b.transition(StateClosed)
	}
}

// RecordFailure extends the failure streak. At the threshold, or on any
// half-open failure, the breaker opens and the timeout restarts.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.trialWins = 0
	switch {
	case b.state == StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	case b.state == StateOpen:
		// In-flight calls finishing after the trip keep the window open.
		b.openedAt = b.now()
	case b.failures >= b.cfg.FailureThreshold:
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.trialWins = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
