package state

import (
	"slices"
	"sync"
)

// Result is the outcome of the last switch
type Result string

const (
	ResultNone        Result = ""
	ResultAssociated  Result = "associated"
	ResultTimeout     Result = "timeout"
	ResultInterrupted Result = "interrupted"
	ResultNotFound    Result = "not-found"
	ResultFailed      Result = "failed"
)

// State holds what the service exposes as properties
type State struct {
	// Interfaces the profile tools operate on
	Interfaces []string

	// Switch in progress
	Switching        bool
	SwitchingProfile string

	// Last completed switch
	LastProfile string
	LastResult  Result

	// Error reporting
	LastError string // Last error message for UI feedback
}

// Manager manages state with thread-safe access
type Manager struct {
	mu       sync.RWMutex
	state    State
	onChange func(*State) // Callback when state changes
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{}
}

// SetOnChange sets the callback for state changes
func (m *Manager) SetOnChange(fn func(*State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Get returns a copy of current state
func (m *Manager) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Update atomically updates state and triggers callback
func (m *Manager) Update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	stateCopy := m.state.clone()
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(&stateCopy)
	}
}

func (s State) clone() State {
	s.Interfaces = slices.Clone(s.Interfaces)
	return s
}
