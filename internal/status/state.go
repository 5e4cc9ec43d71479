package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/feiralink/chat/internal/bus"
)

// State represents an engine runtime state.
type State string

const (
	// Uninitialized is the state before an identity is attached.
	Uninitialized State = "UNINITIALIZED"
	// Connecting means the push channel handshake is in flight. Fallback
	// fetches run regardless of this state.
	Connecting State = "CONNECTING"
	// Connected means the push channel is live and delivering events.
	Connected State = "CONNECTED"
	// Degraded means the channel is absent or lost; sends go through the
	// fallback path and inbound updates stop until reconnect.
	Degraded State = "DEGRADED"
	// Unauthenticated is the terminal logout state. A fresh login may
	// re-enter Connecting.
	Unauthenticated State = "UNAUTHENTICATED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Uninitialized:   {Connecting, Unauthenticated},
	Connecting:      {Connected, Degraded, Unauthenticated},
	Connected:       {Degraded, Unauthenticated},
	Degraded:        {Connecting, Connected, Unauthenticated},
	Unauthenticated: {Connecting},
}

// Machine tracks and enforces engine runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Uninitialized state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Uninitialized,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
