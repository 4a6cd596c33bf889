package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the import targets known to a Service.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// Register adds a target.
// Panics if the key is empty, the target has no Job, or the key is taken.
func (r *Registry) Register(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Info.Key == "" {
		panic("import target registered without a key")
	}
	if t.Job == nil {
		panic(fmt.Sprintf("import target %s registered without a job", t.Info.Key))
	}
	if _, exists := r.targets[t.Info.Key]; exists {
		panic(fmt.Sprintf("import target already registered: %s", t.Info.Key))
	}
	if t.Info.Label == "" {
		t.Info.Label = t.Info.Key
	}

	r.targets[t.Info.Key] = t
}

// Get returns a target by key.
func (r *Registry) Get(key string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[key]
	return t, ok
}

// All returns all targets sorted by key.
func (r *Registry) All() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})
	return result
}
