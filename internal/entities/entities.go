// Package entities defines the boundary between the rule engine and the host
// data layer: the entity instances that scoped conditions and actions receive,
// the registry of types available as rule targets, and the source the periodic
// scan uses to enumerate instances.
package entities

import (
	"context"
	"sort"
	"sync"
)

// Entity is a concrete instance of a host domain type. Scoped conditions and
// actions receive it as their sole runtime argument.
type Entity interface {
	EntityType() string
	EntityID() string
	Attributes() map[string]any
}

// Record is a map-backed Entity implementation, convenient for hosts that
// publish lifecycle events from generic storage rows and for tests.
type Record struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Attrs map[string]any `json:"attributes,omitempty"`
}

func (r Record) EntityType() string {
	return r.Type
}

func (r Record) EntityID() string {
	return r.ID
}

func (r Record) Attributes() map[string]any {
	return r.Attrs
}

// Registry tracks the entity types that may be used as rule targets. Only
// host-registered domain types are present, so the engine's own record types
// are never candidates.
type Registry struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

// NewRegistry creates a registry pre-populated with the given type names.
func NewRegistry(types ...string) *Registry {
	r := &Registry{types: make(map[string]struct{}, len(types))}
	for _, t := range types {
		if t != "" {
			r.types[t] = struct{}{}
		}
	}
	return r
}

// Register adds an entity type name. Registering an existing name is a no-op.
func (r *Registry) Register(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.types[name] = struct{}{}
	r.mu.Unlock()
}

// IsEntityType reports whether name is a registered target entity type.
func (r *Registry) IsEntityType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Source enumerates existing instances of an entity type. The host data layer
// implements it; the periodic scan walks it for entity-scoped conditions.
type Source interface {
	List(ctx context.Context, entityType string) ([]Entity, error)
}

// MemorySource is an in-memory Source for tests and single-process hosts.
type MemorySource struct {
	mu      sync.RWMutex
	records map[string][]Entity
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{records: make(map[string][]Entity)}
}

// Add appends an instance under its entity type.
func (s *MemorySource) Add(e Entity) {
	s.mu.Lock()
	s.records[e.EntityType()] = append(s.records[e.EntityType()], e)
	s.mu.Unlock()
}

// List returns the instances of the given type. The slice is a copy; mutating
// it does not affect the source.
func (s *MemorySource) List(_ context.Context, entityType string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, len(s.records[entityType]))
	copy(out, s.records[entityType])
	return out, nil
}
