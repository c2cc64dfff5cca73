package server

import (
	"sort"
	"sync"
)

// Registry maps method and path to a Handler. It is safe for concurrent
// use; registering the same pair twice replaces the earlier handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]map[string]Handler{}}
}

func (r *Registry) Register(method, path string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.handlers[method]
	if !ok {
		table = map[string]Handler{}
		r.handlers[method] = table
	}
	table[path] = h
}

func (r *Registry) Lookup(method, path string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[method][path]
	return h, ok
}

// HasMethod reports whether any handler is registered for method.
func (r *Registry) HasMethod(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[method]
	return ok
}

// Routes returns every registered "METHOD path" pair in order.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var routes []string
	for method, table := range r.handlers {
		for path := range table {
			routes = append(routes, method+" "+path)
		}
	}
	sort.Strings(routes)
	return routes
}
