package device

import "sync"

// Marker holds the id of the most recently locally commanded device.
// It is a single overwritten slot, not a history.
type Marker struct {
	mu sync.RWMutex
	id string
}

// Set records id as the last locally updated device.
func (m *Marker) Set(id string) {
	m.mu.Lock()
	m.id = id
	m.mu.Unlock()
}

// Get returns the last locally updated device id.
func (m *Marker) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Is reports whether id is the last locally updated device.
func (m *Marker) Is(id string) bool {
	return id != "" && m.Get() == id
}
