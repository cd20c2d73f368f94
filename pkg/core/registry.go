package core

import (
	"strings"
	"sync"
)

// Factory constructs an empty Object for a type tag.
type Factory func() Object

type typeEntry struct {
	parent  string
	factory Factory
}

// Registry maps canonical wire type names to constructors and enum constants.
// Generated code populates it once at startup; lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]typeEntry
	enums map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]typeEntry),
		enums: make(map[string][]string),
	}
}

// Register installs a type. parent names the type it extends, or "".
func (r *Registry) Register(name, parent string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[canonicalName(name)] = typeEntry{parent: canonicalName(parent), factory: factory}
}

// RegisterEnum installs the declared constant values of an enum type.
func (r *Registry) RegisterEnum(name string, values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[canonicalName(name)] = append([]string(nil), values...)
}

// Resolve returns the constructor for a type tag.
func (r *Registry) Resolve(name string) (Factory, bool) {
	if r == nil || name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[canonicalName(name)]
	if !ok || entry.factory == nil {
		return nil, false
	}
	return entry.factory, true
}

// IsA reports whether typ is ancestor or extends it.
func (r *Registry) IsA(typ, ancestor string) bool {
	typ, ancestor = canonicalName(typ), canonicalName(ancestor)
	if r == nil {
		return typ == ancestor
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for typ != "" && !seen[typ] {
		if typ == ancestor {
			return true
		}
		seen[typ] = true
		entry, ok := r.types[typ]
		if !ok {
			return false
		}
		typ = entry.parent
	}
	return false
}

// EnumValues returns the declared values of an enum type.
func (r *Registry) EnumValues(name string) ([]string, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	values, ok := r.enums[canonicalName(name)]
	return values, ok
}

// canonicalName drops the vendor prefix the server puts on type tags.
func canonicalName(name string) string {
	if trimmed := strings.TrimPrefix(name, "Kaltura"); trimmed != "" {
		return trimmed
	}
	return name
}
