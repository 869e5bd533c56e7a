// Package actions implements the action registry and the built-in action
// kinds: logger, notify and webhook. An action kind registers a (kind, scope,
// validate, run) definition; the run contract is synchronous and the side
// effect occurs exactly once per invocation.
package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/telemetry"
)

// Trigger labels which path invoked the action, for reporting and metrics.
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerSignal Trigger = "signal"
)

// RunRequest carries one invocation's inputs. Entity is nil for generic
// invocations.
type RunRequest struct {
	Action  *rules.Action
	Rule    *rules.Rule
	Entity  entities.Entity
	Trigger Trigger
}

// Definition describes one action kind.
type Definition struct {
	Kind  rules.ActionKind
	Scope rules.Scope

	// Validate checks a params payload at attach time. May be nil.
	Validate func(params map[string]any) error

	// Run produces the side effect.
	Run func(ctx context.Context, req RunRequest) error
}

// Registry maps action kinds to their definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[rules.ActionKind]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[rules.ActionKind]Definition)}
}

// Register adds a definition. A kind without a handler is rejected with
// ErrNotImplemented at registration, not at trigger time.
func (r *Registry) Register(def Definition) error {
	if def.Kind == "" {
		return fmt.Errorf("action definition has no kind: %w", rules.ErrInvalidArgument)
	}
	if def.Run == nil {
		return fmt.Errorf("action kind %q has no handler: %w", def.Kind, rules.ErrNotImplemented)
	}
	r.mu.Lock()
	r.defs[def.Kind] = def
	r.mu.Unlock()
	return nil
}

// Get returns the definition for a kind.
func (r *Registry) Get(kind rules.ActionKind) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[kind]
	return def, ok
}

// ActionScope implements rules.ActionCatalog.
func (r *Registry) ActionScope(kind rules.ActionKind) (rules.Scope, bool) {
	def, ok := r.Get(kind)
	return def.Scope, ok
}

// Validate checks a stored action's kind and params payload.
func (r *Registry) Validate(a *rules.Action) error {
	def, ok := r.Get(a.Kind)
	if !ok {
		return fmt.Errorf("action kind %q: %w", a.Kind, rules.ErrNotImplemented)
	}
	if def.Validate == nil {
		return nil
	}
	if err := def.Validate(a.Params); err != nil {
		return fmt.Errorf("action kind %q: %w", a.Kind, err)
	}
	return nil
}

// Run executes the action after enforcing its scope. Handler failures come
// back as *rules.ActionError so callers can keep or withhold the cron guard
// update.
func (r *Registry) Run(ctx context.Context, req RunRequest) error {
	def, ok := r.Get(req.Action.Kind)
	if !ok {
		return fmt.Errorf("action kind %q: %w", req.Action.Kind, rules.ErrNotImplemented)
	}
	if def.Scope.RequiresEntity || def.Scope.EntityType != "" {
		if req.Entity == nil {
			return fmt.Errorf("action kind %q requires an entity instance: %w", req.Action.Kind, rules.ErrInvalidArgument)
		}
		if def.Scope.EntityType != "" && req.Entity.EntityType() != def.Scope.EntityType {
			return fmt.Errorf("action kind %q expects entity type %q, got %q: %w",
				req.Action.Kind, def.Scope.EntityType, req.Entity.EntityType(), rules.ErrInvalidArgument)
		}
	}

	if err := def.Run(ctx, req); err != nil {
		telemetry.ActionFailures.WithLabelValues(string(req.Trigger)).Inc()
		return &rules.ActionError{RuleID: req.Rule.ID, Kind: req.Action.Kind, Err: err}
	}
	telemetry.ActionsExecuted.WithLabelValues(string(req.Trigger)).Inc()
	return nil
}
