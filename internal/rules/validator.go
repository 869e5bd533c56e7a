package rules

import "fmt"

// ConditionCatalog reports scope metadata for registered condition kinds.
// Implemented by the condition registry.
type ConditionCatalog interface {
	ConditionScope(kind ConditionKind) (Scope, bool)
}

// ActionCatalog reports scope metadata for registered action kinds.
// Implemented by the action registry.
type ActionCatalog interface {
	ActionScope(kind ActionKind) (Scope, bool)
}

// Validator enforces the attach-time invariants between a rule's target entity
// type and the scope of its condition and action kinds. Scope violations fail
// here, at authoring time, rather than at trigger time.
type Validator struct {
	conditions ConditionCatalog
	actions    ActionCatalog
}

// NewValidator creates a validator backed by the given registries.
func NewValidator(conditions ConditionCatalog, actions ActionCatalog) *Validator {
	return &Validator{conditions: conditions, actions: actions}
}

// ValidateRule checks the rule's condition and action against their registered
// scopes. Unknown kinds return ErrNotImplemented; scope violations return
// ErrInvalidArgument.
func (v *Validator) ValidateRule(r *Rule) error {
	if r.Condition != nil {
		scope, ok := v.conditions.ConditionScope(r.Condition.Kind)
		if !ok {
			return fmt.Errorf("condition kind %q: %w", r.Condition.Kind, ErrNotImplemented)
		}
		if err := checkScope(scope, r.TargetEntityType); err != nil {
			return fmt.Errorf("condition kind %q: %w", r.Condition.Kind, err)
		}
	}
	if r.Action != nil {
		scope, ok := v.actions.ActionScope(r.Action.Kind)
		if !ok {
			return fmt.Errorf("action kind %q: %w", r.Action.Kind, ErrNotImplemented)
		}
		if err := checkScope(scope, r.TargetEntityType); err != nil {
			return fmt.Errorf("action kind %q: %w", r.Action.Kind, err)
		}
	}
	return nil
}

// ValidateTargetChange rejects changing the target entity type of a rule that
// already has a condition or action attached.
func (v *Validator) ValidateTargetChange(existing *Rule, newTarget string) error {
	if existing.TargetEntityType == newTarget {
		return nil
	}
	if existing.Condition != nil || existing.Action != nil {
		return fmt.Errorf("target entity type is immutable after attachment: %w", ErrInvalidArgument)
	}
	return nil
}

func checkScope(scope Scope, target string) error {
	if scope.Generic() {
		return nil
	}
	if target == "" {
		return fmt.Errorf("entity-scoped kind requires a target entity type: %w", ErrInvalidArgument)
	}
	if scope.EntityType != "" && scope.EntityType != target {
		return fmt.Errorf("kind is restricted to entity type %q, rule targets %q: %w",
			scope.EntityType, target, ErrInvalidArgument)
	}
	return nil
}
