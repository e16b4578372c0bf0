package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/luispaiva/chatsync/internal/bus"
)

// State is the live-channel connection state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
)

// validTransitions defines allowed state transitions. Closed is
// terminal: once a session tears the channel down nothing revives it.
var validTransitions = map[State][]State{
	Disconnected: {Connecting, Closed},
	Connecting:   {Connected, Reconnecting, Disconnected, Closed},
	Connected:    {Reconnecting, Disconnected, Closed},
	Reconnecting: {Connecting, Disconnected, Closed},
	Closed:       {},
}

// Machine tracks and enforces live-channel state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Disconnected.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Disconnected, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindChannelStatus,
			Timestamp: time.Now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for channel status change events.
type StatusChange struct {
	From State
	To   State
}
