package awaitcall

import (
	"sort"
	"sync"
)

// Registry maps call names to the single handler serving each name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// Register stores h under name, silently replacing any previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[string]Handler{}
	}
	r.handlers[name] = h
}

// Unregister removes the handler for name, if any.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.handlers, name)
	r.mu.Unlock()
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
