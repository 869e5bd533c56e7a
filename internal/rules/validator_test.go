package rules

import (
	"errors"
	"testing"
)

type catalogStub struct {
	conditions map[ConditionKind]Scope
	actions    map[ActionKind]Scope
}

func (s catalogStub) ConditionScope(kind ConditionKind) (Scope, bool) {
	scope, ok := s.conditions[kind]
	return scope, ok
}

func (s catalogStub) ActionScope(kind ActionKind) (Scope, bool) {
	scope, ok := s.actions[kind]
	return scope, ok
}

func newTestValidator() *Validator {
	stub := catalogStub{
		conditions: map[ConditionKind]Scope{
			"generic_cond": {},
			"scoped_cond":  {RequiresEntity: true},
			"book_cond":    {RequiresEntity: true, EntityType: "book"},
		},
		actions: map[ActionKind]Scope{
			"generic_act": {},
			"scoped_act":  {RequiresEntity: true},
		},
	}
	return NewValidator(stub, stub)
}

func TestValidateRule(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		rule    *Rule
		wantErr error
	}{
		{
			"generic condition on generic rule",
			&Rule{Condition: &Condition{Kind: "generic_cond"}},
			nil,
		},
		{
			"generic condition on scoped rule",
			&Rule{TargetEntityType: "book", Condition: &Condition{Kind: "generic_cond"}},
			nil,
		},
		{
			"scoped condition on generic rule",
			&Rule{Condition: &Condition{Kind: "scoped_cond"}},
			ErrInvalidArgument,
		},
		{
			"scoped condition on scoped rule",
			&Rule{TargetEntityType: "book", Condition: &Condition{Kind: "scoped_cond"}},
			nil,
		},
		{
			"type-restricted condition on matching rule",
			&Rule{TargetEntityType: "book", Condition: &Condition{Kind: "book_cond"}},
			nil,
		},
		{
			"type-restricted condition on mismatched rule",
			&Rule{TargetEntityType: "author", Condition: &Condition{Kind: "book_cond"}},
			ErrInvalidArgument,
		},
		{
			"unknown condition kind",
			&Rule{Condition: &Condition{Kind: "mystery"}},
			ErrNotImplemented,
		},
		{
			"scoped action on generic rule",
			&Rule{Action: &Action{Kind: "scoped_act"}},
			ErrInvalidArgument,
		},
		{
			"unknown action kind",
			&Rule{Action: &Action{Kind: "mystery"}},
			ErrNotImplemented,
		},
		{
			"empty rule",
			&Rule{},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRule(tt.rule)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRule failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRule = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetChange(t *testing.T) {
	v := newTestValidator()

	bare := &Rule{TargetEntityType: "book"}
	if err := v.ValidateTargetChange(bare, "author"); err != nil {
		t.Errorf("target change on a bare rule should be allowed: %v", err)
	}

	attached := &Rule{TargetEntityType: "book", Condition: &Condition{Kind: "scoped_cond"}}
	if err := v.ValidateTargetChange(attached, "author"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := v.ValidateTargetChange(attached, "book"); err != nil {
		t.Errorf("unchanged target should be allowed: %v", err)
	}
}

func TestRuleClone(t *testing.T) {
	r := &Rule{
		ID:        "r1",
		Condition: &Condition{ID: "c1", Kind: "generic_cond", Params: map[string]any{"day": 1}},
		Action:    &Action{ID: "a1", Kind: "generic_act", Params: map[string]any{"level": "INFO"}},
	}

	clone := r.Clone()
	clone.Condition.Params["day"] = 2
	clone.Action.Params["level"] = "ERROR"

	if r.Condition.Params["day"] != 1 {
		t.Error("clone shares condition params with the original")
	}
	if r.Action.Params["level"] != "INFO" {
		t.Error("clone shares action params with the original")
	}

	var nilRule *Rule
	if nilRule.Clone() != nil {
		t.Error("cloning nil should return nil")
	}
}
