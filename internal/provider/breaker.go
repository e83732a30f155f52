package provider

import (
	"sync"
	"time"

	"github.com/kvachev/fx-rate-service/internal/model"
)

// BreakerState is the circuit breaker state for one provider.
type BreakerState int32

const (
	// BreakerClosed lets calls through and counts consecutive failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails fast until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen lets exactly one probe call through.
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
	}
	return "unknown"
}

// Breaker is a per-provider circuit breaker. It sees only fully-retried
// outcomes: the resilience wrapper records one success or failure per call,
// after the retry policy has run its course.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	// now is swappable for tests.
	now func() time.Time

	// onTransition observes state changes; it must not block.
	onTransition func(name string, from, to BreakerState)
}

// NewBreaker creates a closed breaker for the named provider.
func NewBreaker(name string, threshold int, cooldown time.Duration, onTransition func(name string, from, to BreakerState)) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		name:         name,
		threshold:    threshold,
		cooldown:     cooldown,
		state:        BreakerClosed,
		now:          time.Now,
		onTransition: onTransition,
	}
}

// Allow reports whether a call may proceed. While open it fails fast with a
// CircuitOpen error; once the cool-down elapses it moves to half-open and
// admits a single probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return model.NewError(model.KindCircuitOpen, "provider %s: circuit open", b.name)
		}
		b.transition(BreakerHalfOpen)
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return model.NewError(model.KindCircuitOpen, "provider %s: probe in flight", b.name)
		}
		b.probing = true
		return nil
	}
	return nil
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// RecordFailure counts a post-retry transient failure. The threshold trips
// the circuit; a failed half-open probe reopens it and restarts the
// cool-down.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.probing = false
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	case BreakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	case BreakerOpen:
		// Late failure from a call admitted before the trip; nothing to do.
	}
}

// ReleaseProbe frees the half-open probe slot for outcomes that say nothing
// about upstream health (cancellation, permanent errors).
func (b *Breaker) ReleaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.onTransition != nil {
		b.onTransition(b.name, from, to)
	}
}
