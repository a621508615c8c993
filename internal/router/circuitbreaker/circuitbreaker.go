// Package circuitbreaker tracks connector health and stops routing to
// connectors that keep failing at the transport or server level.
package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
)

// Config zero values fall back to the defaults above.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

type connectorState struct {
	state     State
	failures  int
	openUntil time.Time
}

// CircuitBreaker is safe for concurrent use. State is kept per connector name.
type CircuitBreaker struct {
	mu         sync.Mutex
	connectors map[string]*connectorState
	cfg        Config
}

func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{connectors: make(map[string]*connectorState), cfg: cfg}
}

// stateFor must be called with mu held.
func (cb *CircuitBreaker) stateFor(connector string) *connectorState {
	cs, ok := cb.connectors[connector]
	if !ok {
		cs = &connectorState{state: StateClosed}
		cb.connectors[connector] = cs
	}
	return cs
}

// AllowRequest reports whether a call to connector may go out. An open
// circuit whose timeout has elapsed moves to half-open and lets one through.
func (cb *CircuitBreaker) AllowRequest(connector string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cs := cb.stateFor(connector)
	switch cs.state {
	case StateOpen:
		if cb.cfg.Now().Before(cs.openUntil) {
			return false
		}
		cs.state = StateHalfOpen
		cs.failures = 0
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordFailure(connector string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cs := cb.stateFor(connector)
	switch cs.state {
	case StateClosed:
		cs.failures++
		if cs.failures >= cb.cfg.FailureThreshold {
			cb.trip(cs)
		}
	case StateHalfOpen:
		cb.trip(cs)
	case StateOpen:
	}
}

func (cb *CircuitBreaker) trip(cs *connectorState) {
	cs.state = StateOpen
	cs.failures = cb.cfg.FailureThreshold
	cs.openUntil = cb.cfg.Now().Add(cb.cfg.ResetTimeout)
}

func (cb *CircuitBreaker) RecordSuccess(connector string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cs := cb.stateFor(connector)
	switch cs.state {
	case StateClosed, StateHalfOpen:
		cs.state = StateClosed
		cs.failures = 0
	case StateOpen:
	}
}

// IsHealthy reports whether AllowRequest would currently let a call through,
// without changing any state.
func (cb *CircuitBreaker) IsHealthy(connector string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cs, ok := cb.connectors[connector]
	if !ok || cs.state != StateOpen {
		return true
	}
	return !cb.cfg.Now().Before(cs.openUntil)
}

// GetConnectorStatus returns the state and consecutive failure count without
// moving an open circuit to half-open.
func (cb *CircuitBreaker) GetConnectorStatus(connector string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cs := cb.stateFor(connector)
	return cs.state, cs.failures
}

// Snapshot returns the state of every connector seen so far.
func (cb *CircuitBreaker) Snapshot() map[string]State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make(map[string]State, len(cb.connectors))
	for name, cs := range cb.connectors {
		out[name] = cs.state
	}
	return out
}
