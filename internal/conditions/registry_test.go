package conditions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
)

func TestRegistry_RejectsDefinitionWithoutEvaluator(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Definition{Kind: "custom", Trigger: TriggerCron})
	if !errors.Is(err, rules.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	reg := NewBuiltinRegistry()

	err := reg.Validate(&rules.Condition{Kind: "no_such_kind"})
	if !errors.Is(err, rules.ErrNotImplemented) {
		t.Fatalf("Validate: expected ErrNotImplemented, got %v", err)
	}

	_, err = reg.Evaluate(context.Background(), &rules.Condition{Kind: "no_such_kind"}, nil, time.Now())
	if !errors.Is(err, rules.ErrNotImplemented) {
		t.Fatalf("Evaluate: expected ErrNotImplemented, got %v", err)
	}
}

func TestRegistry_ScopeEnforcement(t *testing.T) {
	reg := NewBuiltinRegistry()
	cond := &rules.Condition{
		ID:     "c1",
		Kind:   KindFilter,
		Params: map[string]any{"expression": `{"==": [{"var": "type"}, "book"]}`},
	}

	// Entity-scoped kind without an entity instance.
	_, err := reg.Evaluate(context.Background(), cond, nil, time.Now())
	if !errors.Is(err, rules.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without entity, got %v", err)
	}

	// With an entity the evaluator runs.
	book := entities.Record{Type: "book", ID: "b1"}
	got, err := reg.Evaluate(context.Background(), cond, book, time.Now())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !got {
		t.Error("expected the expression to match")
	}
}

func TestRegistry_TypeRestrictedKind(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Definition{
		Kind:    "book_only",
		Trigger: TriggerCron,
		Scope:   rules.Scope{RequiresEntity: true, EntityType: "book"},
		Evaluate: func(_ context.Context, _ EvalRequest) (bool, error) {
			return true, nil
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cond := &rules.Condition{ID: "c1", Kind: "book_only"}

	_, err = reg.Evaluate(context.Background(), cond, entities.Record{Type: "author", ID: "a1"}, time.Now())
	if !errors.Is(err, rules.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for wrong type, got %v", err)
	}

	got, err := reg.Evaluate(context.Background(), cond, entities.Record{Type: "book", ID: "b1"}, time.Now())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !got {
		t.Error("expected evaluator to run for matching type")
	}
}

func TestSignalCondition(t *testing.T) {
	reg := NewBuiltinRegistry()

	if err := reg.Validate(&rules.Condition{Kind: KindSignal, Params: map[string]any{"event": "after-create"}}); err != nil {
		t.Fatalf("Validate failed for valid event: %v", err)
	}
	err := reg.Validate(&rules.Condition{Kind: KindSignal, Params: map[string]any{"event": "on-save"}})
	if !errors.Is(err, rules.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown event, got %v", err)
	}

	// Signal conditions are event-driven, never scannable.
	cond := &rules.Condition{ID: "c1", Kind: KindSignal, Params: map[string]any{"event": "after-create"}}
	_, err = reg.Evaluate(context.Background(), cond, entities.Record{Type: "book", ID: "b1"}, time.Now())
	if err == nil {
		t.Fatal("expected evaluating a signal condition to fail")
	}

	event, err := SignalEvent(cond)
	if err != nil {
		t.Fatalf("SignalEvent failed: %v", err)
	}
	if string(event) != "after-create" {
		t.Errorf("SignalEvent = %q, want after-create", event)
	}
}

func TestFilterCondition_Truthiness(t *testing.T) {
	reg := NewBuiltinRegistry()

	entity := entities.Record{
		Type:  "book",
		ID:    "b1",
		Attrs: map[string]any{"pages": 320, "title": "Go"},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
	}{
		{"numeric comparison matches", `{">": [{"var": "pages"}, 100]}`, true},
		{"numeric comparison misses", `{">": [{"var": "pages"}, 1000]}`, false},
		{"string equality", `{"==": [{"var": "title"}, "Go"]}`, true},
		{"missing attribute is falsy", `{"var": "publisher"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &rules.Condition{
				ID:     "c1",
				Kind:   KindFilter,
				Params: map[string]any{"expression": tt.expression},
			}
			got, err := reg.Evaluate(context.Background(), cond, entity, time.Now())
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterCondition_ValidateExpression(t *testing.T) {
	reg := NewBuiltinRegistry()

	err := reg.Validate(&rules.Condition{Kind: KindFilter, Params: map[string]any{"expression": ""}})
	if !errors.Is(err, rules.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty expression, got %v", err)
	}
	err = reg.Validate(&rules.Condition{Kind: KindFilter, Params: map[string]any{"expression": "{not json"}})
	if !errors.Is(err, rules.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for invalid JSON, got %v", err)
	}
}
