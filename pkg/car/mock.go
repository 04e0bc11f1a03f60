package car

import "sync"

// Event is one recorded emission.
type Event struct {
	Name  string
	Value any
}

// MockEmitter implements Emitter for testing. It records every emitted
// event in order.
type MockEmitter struct {
	// EmitFunc, if set, decides the result of each Emit. Events are only
	// recorded when it returns nil.
	EmitFunc func(event string, args ...any) error

	mu           sync.Mutex
	disconnected bool
	closed       bool
	events       []Event
}

// Ensure MockEmitter implements Emitter
var _ Emitter = (*MockEmitter)(nil)

// Emit records the event.
func (m *MockEmitter) Emit(event string, args ...any) error {
	if m.EmitFunc != nil {
		if err := m.EmitFunc(event, args...); err != nil {
			return err
		}
	}
	var v any
	if len(args) > 0 {
		v = args[0]
	}
	m.mu.Lock()
	m.events = append(m.events, Event{Name: event, Value: v})
	m.mu.Unlock()
	return nil
}

// Connected reports the simulated link state.
func (m *MockEmitter) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disconnected && !m.closed
}

// SetConnected simulates a link drop or recovery.
func (m *MockEmitter) SetConnected(up bool) {
	m.mu.Lock()
	m.disconnected = !up
	m.mu.Unlock()
}

// Close marks the emitter closed.
func (m *MockEmitter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *MockEmitter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Events returns a copy of the recorded events.
func (m *MockEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
