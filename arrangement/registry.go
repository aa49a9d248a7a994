package arrangement

import (
	"fmt"
	"sync"
)

// Registry is the name -> trace-handle mapping described in spec.md §4.2.
type Registry struct {
	mu     sync.RWMutex
	traces map[string]*Trace
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{traces: make(map[string]*Trace)}
}

// Register records a handle under name and calls distinguish_since(∅) on
// the new trace (implemented as the zero frontier, so no Handle may
// subset state until it explicitly opts in via Handle.DistinguishSince).
// Re-registering an existing name returns the existing trace unchanged;
// callers that need a fresh backing should unregister first.
func (r *Registry) Register(name string, backing Backing) *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.traces[name]; ok {
		return existing
	}
	t := &Trace{name: name, backing: backing}
	r.traces[name] = t
	return t
}

// Global looks up a registered arrangement by name.
func (r *Registry) Global(name string) (*Trace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traces[name]
	return t, ok
}

// Unregister drops the name -> trace mapping. It does not force-release
// outstanding handles; the backing is only released once every handle
// derived from the trace calls Release.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, name)
}

// MustGlobal is Global, returning an error instead of a bool. The error
// is a plain one, so wire.Classify reports it under the fault category.
func (r *Registry) MustGlobal(name string) (*Trace, error) {
	t, ok := r.Global(name)
	if !ok {
		return nil, fmt.Errorf("arrangement: no arrangement registered for %q", name)
	}
	return t, nil
}
