package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TimurManjosov/goruled/internal/rules"
)

func sampleRule(id string) *rules.Rule {
	return &rules.Rule{
		ID:          id,
		Description: "low stock alert",
		Condition: &rules.Condition{
			ID:     id + "-c",
			Kind:   "day_of_month",
			Params: map[string]any{"day": 1},
		},
		Action: &rules.Action{
			ID:     id + "-a",
			Kind:   "logger",
			Params: map[string]any{"level": "INFO", "message": "fired"},
		},
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	r := sampleRule("r1")
	if err := st.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}

	got, err := st.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if got.Description != "low stock alert" {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Condition == nil || got.Condition.Kind != "day_of_month" {
		t.Error("condition not round-tripped")
	}

	// Stored state must be isolated from caller mutations.
	got.Condition.Params["day"] = 99
	again, _ := st.GetRule(ctx, "r1")
	if again.Condition.Params["day"] != 1 {
		t.Error("mutating a returned rule leaked into the store")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	st := NewMemoryStore()
	if _, err := st.GetRule(context.Background(), "nope"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	r := sampleRule("r1")
	if err := st.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	created := r.CreatedAt

	r.Description = "updated"
	if err := st.UpdateRule(ctx, r); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}

	got, _ := st.GetRule(ctx, "r1")
	if got.Description != "updated" {
		t.Errorf("Description = %q", got.Description)
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("CreatedAt must survive updates")
	}

	if err := st.UpdateRule(ctx, sampleRule("ghost")); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteReturnsRule(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	deleted, err := st.DeleteRule(ctx, "r1")
	if err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	if deleted.Condition == nil {
		t.Error("deleted rule must carry its condition for post-commit disconnect")
	}

	if _, err := st.GetRule(ctx, "r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound after delete, got %v", err)
	}
	if _, err := st.DeleteRule(ctx, "r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound on double delete, got %v", err)
	}
}

func TestMemoryStore_ListConditions(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	bare := &rules.Rule{ID: "r2", Description: "no condition yet"}
	if err := st.CreateRule(ctx, bare); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	rows, err := st.ListConditions(ctx)
	if err != nil {
		t.Fatalf("ListConditions failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 condition row, got %d", len(rows))
	}
	if rows[0].Rule == nil || rows[0].Rule.ID != "r1" {
		t.Error("condition row must carry its owning rule")
	}
}

func TestMemoryStore_UpdateLastExecuted(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	ts := time.Date(2016, time.January, 1, 9, 0, 0, 0, time.UTC)
	if err := st.UpdateLastExecuted(ctx, "r1-c", ts); err != nil {
		t.Fatalf("UpdateLastExecuted failed: %v", err)
	}

	got, _ := st.GetRule(ctx, "r1")
	if got.Condition.LastExecuted == nil || !got.Condition.LastExecuted.Equal(ts) {
		t.Errorf("LastExecuted = %v, want %v", got.Condition.LastExecuted, ts)
	}

	if err := st.UpdateLastExecuted(ctx, "ghost", ts); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}
