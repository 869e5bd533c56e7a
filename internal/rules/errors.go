package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for the trigger-processing taxonomy. Callers classify with
// errors.Is and decide whether a failure aborts, skips, or retries.
var (
	// ErrNotImplemented marks a condition or action kind with no registered
	// evaluator or handler. Surfaces at registration or validation time.
	ErrNotImplemented = errors.New("kind not implemented")

	// ErrInvalidArgument marks an entity-scoped condition or action invoked
	// without an entity, or with an entity of the wrong type.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingLink marks a rule that has a condition but no action (or the
	// reverse). Reported as a warning; the trigger is skipped.
	ErrMissingLink = errors.New("rule is missing a linked condition or action")
)

// ActionError wraps a failed action side effect with the identity of the rule
// and action kind that produced it. For cron triggers the idempotence guard is
// not advanced on ActionError, so the trigger retries on the next scan.
type ActionError struct {
	RuleID string
	Kind   ActionKind
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q for rule %s failed: %v", e.Kind, e.RuleID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
