package rules

import "time"

// ConditionKind identifies a registered condition variant.
type ConditionKind string

// ActionKind identifies a registered action variant.
type ActionKind string

// Scope describes whether a condition or action variant needs a concrete
// entity instance at trigger time. The zero value is generic: usable on any
// rule, entity or not.
type Scope struct {
	// RequiresEntity means the variant must receive an entity instance and the
	// owning rule must declare a target entity type.
	RequiresEntity bool `json:"requiresEntity"`
	// EntityType, when non-empty, restricts the variant to rules whose target
	// entity type matches exactly. Implies RequiresEntity.
	EntityType string `json:"entityType,omitempty"`
}

// Generic reports whether the scope places no entity requirement at all.
func (s Scope) Generic() bool {
	return !s.RequiresEntity && s.EntityType == ""
}

// Condition is the stored half of a rule that decides when the action runs.
// Kind selects the evaluator from the condition registry; Params is the
// variant-specific payload it decodes.
type Condition struct {
	ID     string         `json:"id"`
	Kind   ConditionKind  `json:"kind"`
	Params map[string]any `json:"params,omitempty"`

	// LastExecuted is the cron idempotence guard: the timestamp of the last
	// successful trigger. Nil until the condition has fired once.
	LastExecuted *time.Time `json:"lastExecuted,omitempty"`

	// SubscriptionID disambiguates event-bus registrations for signal
	// conditions. Generated once when the condition is attached and stable for
	// its lifetime; empty for cron conditions.
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// Action is the stored half of a rule that produces the side effect.
type Action struct {
	ID     string         `json:"id"`
	Kind   ActionKind     `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// Rule binds one condition to one action, optionally scoped to a target entity
// type. Condition and Action are optional until both are attached; a rule with
// an entity-scoped condition or action must have a non-empty TargetEntityType.
type Rule struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	// TargetEntityType scopes the rule to one host entity type. Empty means
	// the rule is generic and may only carry generic condition/action kinds.
	// Treated as immutable once a condition or action is attached.
	TargetEntityType string `json:"targetEntityType,omitempty"`

	Condition *Condition `json:"condition,omitempty"`
	Action    *Action    `json:"action,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the rule, detached from the original's
// condition, action and params maps.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	out.Condition = r.Condition.clone()
	out.Action = r.Action.clone()
	return &out
}

func (c *Condition) clone() *Condition {
	if c == nil {
		return nil
	}
	out := *c
	out.Params = cloneParams(c.Params)
	if c.LastExecuted != nil {
		t := *c.LastExecuted
		out.LastExecuted = &t
	}
	return &out
}

func (a *Action) clone() *Action {
	if a == nil {
		return nil
	}
	out := *a
	out.Params = cloneParams(a.Params)
	return &out
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
