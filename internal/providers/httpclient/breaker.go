package httpclient

import (
	"errors"
	"sync"
	"time"
)

type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit_open")

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe is allowed.
	OpenTimeout time.Duration
	// HalfOpenProbes bounds concurrent probes while half-open.
	HalfOpenProbes uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:    5,
		OpenTimeout:    30 * time.Second,
		HalfOpenProbes: 1,
	}
}

// Breaker guards a single collaborator. Only downstream failures count;
// callers decide what a failure is via Record.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	now      func() time.Time
	state    BreakerState
	failures uint32
	probes   uint32
	changed  time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	return &Breaker{cfg: cfg, now: time.Now, changed: time.Now()}
}

// Allow reports whether a call may proceed, moving open to half-open once
// the open timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.changed) < b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.probes++
		return nil
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenProbes {
			return ErrCircuitOpen
		}
		b.probes++
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
		b.failures = 0
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.MaxFailures {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(next BreakerState) {
	if b.state == next {
		return
	}
	b.state = next
	b.changed = b.now()
	b.probes = 0
	if next != StateOpen {
		b.failures = 0
	}
}
