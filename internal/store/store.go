package store

import (
	"context"
	"errors"
	"time"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// ErrRuleNotFound is returned when a rule ID does not exist.
var ErrRuleNotFound = errors.New("rule not found")

// ConditionRow is one stored condition together with its owning rule. Rule is
// nil for orphaned conditions (the rule was deleted out from under them); the
// scan skips those with a warning.
type ConditionRow struct {
	Condition rules.Condition
	Rule      *rules.Rule
}

// Store defines the persistence interface for rule records.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListRules retrieves all rules, newest first.
	ListRules(ctx context.Context) ([]rules.Rule, error)

	// GetRule retrieves a single rule by ID.
	// Returns ErrRuleNotFound if it does not exist.
	GetRule(ctx context.Context, id string) (*rules.Rule, error)

	// CreateRule persists a new rule and stamps CreatedAt/UpdatedAt.
	CreateRule(ctx context.Context, r *rules.Rule) error

	// UpdateRule replaces an existing rule's condition, action, description
	// and target type, and advances UpdatedAt.
	// Returns ErrRuleNotFound if it does not exist.
	UpdateRule(ctx context.Context, r *rules.Rule) error

	// DeleteRule removes a rule with its condition and action, returning the
	// deleted rule so the caller can unsubscribe reactive conditions after
	// the deletion has committed. Returns ErrRuleNotFound if it does not
	// exist.
	DeleteRule(ctx context.Context, id string) (*rules.Rule, error)

	// ListConditions retrieves every stored condition with its owning rule
	// (nil when orphaned). The periodic scan walks this.
	ListConditions(ctx context.Context) ([]ConditionRow, error)

	// UpdateLastExecuted persists a condition's idempotence guard.
	UpdateLastExecuted(ctx context.Context, conditionID string, t time.Time) error

	// Close releases any resources held by the store.
	Close() error
}
