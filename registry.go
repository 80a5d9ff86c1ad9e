package goplug

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps names to plugs so pipelines can reference stages by string,
// the form configuration files produce. Registration normally happens from
// init functions; lookups happen at build time.
type Registry struct {
	mu    sync.RWMutex
	plugs map[string]Plug
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugs: make(map[string]Plug)}
}

// Register adds a named plug. It panics on an empty name, a nil plug, or a
// duplicate registration; all three are programming errors in the caller's
// init path.
func (r *Registry) Register(name string, p Plug) {
	if name == "" {
		panic("goplug: Register: empty name")
	}
	if p == nil {
		panic("goplug: Register: nil plug")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.plugs[name]; dup {
		panic(fmt.Sprintf("goplug: Register: duplicate plug %q", name))
	}
	r.plugs[name] = p
}

// Lookup returns the named plug and whether it is registered.
func (r *Registry) Lookup(name string) (Plug, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugs[name]
	return p, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugs))
	for name := range r.plugs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds a named plug to the default registry.
func Register(name string, p Plug) {
	defaultRegistry.Register(name, p)
}

// Lookup returns a plug from the default registry.
func Lookup(name string) (Plug, bool) {
	return defaultRegistry.Lookup(name)
}

// DefaultRegistry returns the registry builders use unless WithRegistry
// overrides it. The built-in plug package populates it on import.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
