package device

import (
	"slices"
	"strings"
	"sync"
)

// Registry is the in-memory catalogue of device models keyed by device id.
//
// Models are added once at discovery and never removed while the bridge
// runs; accessory removal belongs to the hosts.
//
// All public methods are thread-safe.
type Registry struct {
	models map[string]Model
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Put adds m, replacing any model with the same id.
func (r *Registry) Put(m Model) {
	r.mu.Lock()
	r.models[m.ID()] = m
	r.mu.Unlock()
}

// Get returns the model for id.
func (r *Registry) Get(id string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// List returns every model ordered by id.
func (r *Registry) List() []Model {
	r.mu.RLock()
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Model) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// States returns a state snapshot of every model ordered by id.
func (r *Registry) States() []State {
	models := r.List()
	out := make([]State, 0, len(models))
	for _, m := range models {
		out = append(out, m.State())
	}
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
