// Package conditions implements the condition registry and the built-in
// condition kinds. A condition kind registers a (kind, trigger class, scope,
// validate, evaluate) definition; rules reference kinds by name and carry the
// variant payload as a params map.
package conditions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
)

// Trigger classifies how a condition kind is checked.
type Trigger string

const (
	// TriggerCron conditions are evaluated by the periodic scan.
	TriggerCron Trigger = "cron"
	// TriggerSignal conditions subscribe to the lifecycle event bus.
	TriggerSignal Trigger = "signal"
)

// EvalRequest carries one evaluation's inputs. Entity is nil for generic
// conditions; Now is the scan's notion of the current time, injectable in
// tests.
type EvalRequest struct {
	Condition *rules.Condition
	Entity    entities.Entity
	Now       time.Time
}

// Definition describes one condition kind.
type Definition struct {
	Kind    rules.ConditionKind
	Trigger Trigger
	Scope   rules.Scope

	// Validate checks a params payload at attach time. May be nil when the
	// kind takes no params.
	Validate func(params map[string]any) error

	// Evaluate answers whether the condition is currently satisfied.
	Evaluate func(ctx context.Context, req EvalRequest) (bool, error)
}

// Registry maps condition kinds to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[rules.ConditionKind]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[rules.ConditionKind]Definition)}
}

// NewBuiltinRegistry creates a registry with the built-in kinds registered:
// day_of_month, day_of_week, signal and filter.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, def := range []Definition{
		dayOfMonthDefinition(),
		dayOfWeekDefinition(),
		signalDefinition(),
		filterDefinition(),
	} {
		// Built-in definitions are complete by construction.
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. A kind without an evaluator is rejected with
// ErrNotImplemented so the gap surfaces at startup rather than at trigger
// time. Registering an existing kind replaces it.
func (r *Registry) Register(def Definition) error {
	if def.Kind == "" {
		return fmt.Errorf("condition definition has no kind: %w", rules.ErrInvalidArgument)
	}
	if def.Evaluate == nil {
		return fmt.Errorf("condition kind %q has no evaluator: %w", def.Kind, rules.ErrNotImplemented)
	}
	if def.Trigger != TriggerCron && def.Trigger != TriggerSignal {
		return fmt.Errorf("condition kind %q has unknown trigger %q: %w", def.Kind, def.Trigger, rules.ErrInvalidArgument)
	}
	r.mu.Lock()
	r.defs[def.Kind] = def
	r.mu.Unlock()
	return nil
}

// Get returns the definition for a kind.
func (r *Registry) Get(kind rules.ConditionKind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[kind]
	return def, ok
}

// ConditionScope implements rules.ConditionCatalog.
func (r *Registry) ConditionScope(kind rules.ConditionKind) (rules.Scope, bool) {
	def, ok := r.Get(kind)
	return def.Scope, ok
}

// Validate checks a stored condition's kind and params payload.
func (r *Registry) Validate(c *rules.Condition) error {
	def, ok := r.Get(c.Kind)
	if !ok {
		return fmt.Errorf("condition kind %q: %w", c.Kind, rules.ErrNotImplemented)
	}
	if def.Validate == nil {
		return nil
	}
	if err := def.Validate(c.Params); err != nil {
		return fmt.Errorf("condition kind %q: %w", c.Kind, err)
	}
	return nil
}

// Evaluate runs the condition's evaluator after enforcing its scope: an
// entity-scoped condition invoked without an entity, or with an entity of the
// wrong type, fails with ErrInvalidArgument without reaching the evaluator.
func (r *Registry) Evaluate(ctx context.Context, c *rules.Condition, e entities.Entity, now time.Time) (bool, error) {
	def, ok := r.Get(c.Kind)
	if !ok {
		return false, fmt.Errorf("condition kind %q: %w", c.Kind, rules.ErrNotImplemented)
	}
	if def.Scope.RequiresEntity || def.Scope.EntityType != "" {
		if e == nil {
			return false, fmt.Errorf("condition kind %q requires an entity instance: %w", c.Kind, rules.ErrInvalidArgument)
		}
		if def.Scope.EntityType != "" && e.EntityType() != def.Scope.EntityType {
			return false, fmt.Errorf("condition kind %q expects entity type %q, got %q: %w",
				c.Kind, def.Scope.EntityType, e.EntityType(), rules.ErrInvalidArgument)
		}
	}
	return def.Evaluate(ctx, EvalRequest{Condition: c, Entity: e, Now: now})
}
