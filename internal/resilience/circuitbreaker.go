// Package resilience provides the failover primitives used to keep the
// transcription path alive when a backend degrades.
//
// [Breaker] is a classic three-state circuit breaker (closed → open →
// half-open). [Chain] composes multiple instances of any backend type with a
// per-entry breaker so that a failing primary is bypassed in favour of
// healthy fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] when the breaker is open and the
// cooldown has not yet elapsed.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls immediately with [ErrBreakerOpen] until the
	// cooldown elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through; success
	// closes the breaker, failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
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

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// Trip is the number of consecutive failures in the closed state before
	// the breaker opens. Default: 5.
	Trip int

	// Cooldown is how long the breaker stays open before transitioning to
	// half-open. Default: 30s.
	Cooldown time.Duration

	// Probes is the maximum number of calls allowed in the half-open state
	// before the breaker decides whether to close or re-open. Default: 3.
	Probes int
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probes   int

	mu          sync.Mutex
	state       State
	failStreak  int
	lastFailure time.Time
	probeCalls  int
	probeFails  int
}

// NewBreaker creates a [Breaker] with the supplied configuration. Zero-value
// config fields are replaced with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	return &Breaker{
		name:     cfg.Name,
		trip:     cfg.Trip,
		cooldown: cfg.Cooldown,
		probes:   cfg.Probes,
		state:    StateClosed,
	}
}

// Do runs fn if the breaker allows it. In the open state it returns
// [ErrBreakerOpen] without calling fn. In the half-open state a limited
// number of probe calls are permitted.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) >= b.cooldown {
			b.state = StateHalfOpen
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("circuit breaker transitioning to half-open", "name", b.name)
		} else {
			b.mu.Unlock()
			return ErrBreakerOpen
		}

	case StateHalfOpen:
		if b.probeCalls >= b.probes {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}

	probing := b.state == StateHalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.noteFailure(probing)
	} else {
		b.noteSuccess(probing)
	}
	return err
}

// noteFailure updates failure accounting. Caller holds b.mu.
func (b *Breaker) noteFailure(probing bool) {
	b.lastFailure = time.Now()

	if probing {
		b.probeFails++
		// Any probe failure immediately re-opens.
		b.state = StateOpen
		b.failStreak = b.trip
		slog.Warn("circuit breaker re-opened from half-open", "name", b.name)
		return
	}

	b.failStreak++
	if b.failStreak >= b.trip {
		b.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.failStreak)
	}
}

// noteSuccess updates success accounting. Caller holds b.mu.
func (b *Breaker) noteSuccess(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = StateClosed
			b.failStreak = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("circuit breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failStreak = 0
}

// State returns the current [State]. If the breaker is open and the cooldown
// has elapsed, [StateHalfOpen] is reported (the actual transition happens on
// the next [Breaker.Do] call).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failStreak = 0
	b.probeCalls = 0
	b.probeFails = 0
	slog.Info("circuit breaker manually reset", "name", b.name)
}
