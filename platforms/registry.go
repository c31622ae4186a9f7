package platforms

import (
	"fmt"
	"sort"
)

// Registry maps ecosystem identifiers to their adapter. It is built once at
// startup from a fixed set of adapters; unknown ecosystems fail at
// Validate/Lookup rather than being resolved dynamically per call.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters, keyed by
// Adapter.Name.
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Lookup returns the adapter for an ecosystem.
func (r *Registry) Lookup(platform string) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("unknown ecosystem: %s", platform)
	}
	return a, nil
}

// Validate fails fast when any of the given ecosystems has no adapter.
// Run it at process start before accepting work.
func (r *Registry) Validate(platforms []string) error {
	for _, p := range platforms {
		if _, ok := r.adapters[p]; !ok {
			return fmt.Errorf("unknown ecosystem: %s", p)
		}
	}
	return nil
}

// Names returns the registered ecosystem identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
