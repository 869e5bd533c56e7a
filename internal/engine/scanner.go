// Package engine implements the periodic scan over stored cron conditions.
// The scan is the pull half of the trigger model: an external scheduler (or
// the scan API endpoint) invokes Run, which walks every stored condition,
// evaluates the cron-triggered ones and executes the owning rule's action for
// each satisfied evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/store"
	"github.com/TimurManjosov/goruled/internal/telemetry"
)

// GuardPolicy controls how the last_executed guard interacts with the
// per-instance loop of an entity-scoped condition.
type GuardPolicy string

const (
	// GuardCoarse advances the shared guard after the first successful
	// instance, so at most one instance triggers per condition per day.
	GuardCoarse GuardPolicy = "coarse"
	// GuardPerInstance evaluates every instance against the guard value the
	// scan started with, so all matching instances trigger on the same day.
	GuardPerInstance GuardPolicy = "per_instance"
)

// Outcome statuses for one evaluation within a scan.
const (
	StatusExecuted = "executed"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Outcome records what happened to one condition evaluation. EntityID is
// empty for generic conditions.
type Outcome struct {
	RuleID      string `json:"ruleId,omitempty"`
	ConditionID string `json:"conditionId"`
	EntityID    string `json:"entityId,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// Report summarizes one scan run.
type Report struct {
	StartedAt time.Time `json:"startedAt"`
	Executed  int       `json:"executed"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Scanner walks stored conditions and fires due rules. A mutex serializes
// runs so overlapping scheduler ticks cannot double-trigger a condition.
type Scanner struct {
	store      store.Store
	conditions *conditions.Registry
	actions    *actions.Registry
	source     entities.Source
	log        zerolog.Logger

	// Clock supplies the scan's notion of now. Defaults to time.Now.
	Clock func() time.Time
	// Guard selects the per-instance guard policy. Defaults to GuardCoarse.
	Guard GuardPolicy

	mu sync.Mutex
}

// NewScanner creates a scanner over the given store and registries. Source
// may be nil when no entity-scoped conditions exist.
func NewScanner(st store.Store, conds *conditions.Registry, acts *actions.Registry, source entities.Source, log zerolog.Logger) *Scanner {
	return &Scanner{
		store:      st,
		conditions: conds,
		actions:    acts,
		source:     source,
		log:        log,
		Clock:      time.Now,
		Guard:      GuardCoarse,
	}
}

// Run performs one scan. Failures of individual conditions or actions are
// isolated into the report; the returned error covers only the scan's own
// plumbing, such as the store being unreachable.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Clock()
	telemetry.ScanRuns.Inc()

	rows, err := s.store.ListConditions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conditions: %w", err)
	}

	report := &Report{StartedAt: now.UTC()}
	for i := range rows {
		s.scanCondition(ctx, &rows[i], now, report)
	}

	s.log.Info().
		Int("conditions", len(rows)).
		Int("executed", report.Executed).
		Msg("scan complete")
	return report, nil
}

func (s *Scanner) scanCondition(ctx context.Context, row *store.ConditionRow, now time.Time, report *Report) {
	cond := &row.Condition

	def, ok := s.conditions.Get(cond.Kind)
	if !ok {
		s.log.Warn().Str("condition_id", cond.ID).Str("kind", string(cond.Kind)).
			Msg("skipping condition with unregistered kind")
		report.Outcomes = append(report.Outcomes, Outcome{
			ConditionID: cond.ID,
			Status:      StatusSkipped,
			Message:     fmt.Sprintf("condition kind %q is not registered", cond.Kind),
		})
		return
	}
	if def.Trigger != conditions.TriggerCron {
		// Reactive conditions fire through the event bus, never the scan.
		return
	}

	if row.Rule == nil {
		s.log.Warn().Str("condition_id", cond.ID).Msg("skipping orphaned condition")
		report.Outcomes = append(report.Outcomes, Outcome{
			ConditionID: cond.ID,
			Status:      StatusSkipped,
			Message:     "condition has no owning rule",
		})
		return
	}
	rule := row.Rule
	if rule.Action == nil {
		s.log.Warn().Str("rule_id", rule.ID).Str("condition_id", cond.ID).
			Msg("rule has a condition but no action")
		report.Outcomes = append(report.Outcomes, Outcome{
			RuleID:      rule.ID,
			ConditionID: cond.ID,
			Status:      StatusSkipped,
			Message:     rules.ErrMissingLink.Error(),
		})
		return
	}

	if rule.TargetEntityType == "" {
		s.scanGeneric(ctx, rule, cond, now, report)
		return
	}
	s.scanEntityScoped(ctx, rule, cond, now, report)
}

// scanGeneric evaluates a generic condition once, with no entity.
func (s *Scanner) scanGeneric(ctx context.Context, rule *rules.Rule, cond *rules.Condition, now time.Time, report *Report) {
	telemetry.ConditionsEvaluated.Inc()
	due, err := s.conditions.Evaluate(ctx, cond, nil, now)
	if err != nil {
		report.Outcomes = append(report.Outcomes, s.failure(rule, cond, "", err))
		return
	}
	if !due {
		return
	}

	if err := s.fire(ctx, rule, cond, nil, now); err != nil {
		report.Outcomes = append(report.Outcomes, s.failure(rule, cond, "", err))
		return
	}
	report.Executed++
	report.Outcomes = append(report.Outcomes, Outcome{
		RuleID:      rule.ID,
		ConditionID: cond.ID,
		Status:      StatusExecuted,
	})
}

// scanEntityScoped evaluates the condition against every instance of the
// rule's target type. Under the coarse guard policy the guard advances after
// the first success, so the remaining instances of the same day evaluate
// false; under per_instance every instance sees the guard value the loop
// started with.
func (s *Scanner) scanEntityScoped(ctx context.Context, rule *rules.Rule, cond *rules.Condition, now time.Time, report *Report) {
	if s.source == nil {
		report.Outcomes = append(report.Outcomes, s.failure(rule, cond, "",
			errors.New("no entity source configured")))
		return
	}
	instances, err := s.source.List(ctx, rule.TargetEntityType)
	if err != nil {
		report.Outcomes = append(report.Outcomes, s.failure(rule, cond, "",
			fmt.Errorf("listing %s instances: %w", rule.TargetEntityType, err)))
		return
	}

	// The loop mutates this copy's guard under the coarse policy; the frozen
	// copy keeps the starting guard for per_instance.
	working := *cond
	frozen := *cond

	for _, inst := range instances {
		evalCond := &working
		if s.Guard == GuardPerInstance {
			evalCond = &frozen
		}

		telemetry.ConditionsEvaluated.Inc()
		due, err := s.conditions.Evaluate(ctx, evalCond, inst, now)
		if err != nil {
			report.Outcomes = append(report.Outcomes, s.failure(rule, cond, inst.EntityID(), err))
			continue
		}
		if !due {
			continue
		}

		if err := s.fire(ctx, rule, &working, inst, now); err != nil {
			report.Outcomes = append(report.Outcomes, s.failure(rule, cond, inst.EntityID(), err))
			continue
		}
		report.Executed++
		report.Outcomes = append(report.Outcomes, Outcome{
			RuleID:      rule.ID,
			ConditionID: cond.ID,
			EntityID:    inst.EntityID(),
			Status:      StatusExecuted,
		})
	}
}

// fire runs the rule's action and, on success, advances the condition's
// guard both in memory and in the store. A failed action leaves the guard
// untouched so the next scan retries.
func (s *Scanner) fire(ctx context.Context, rule *rules.Rule, cond *rules.Condition, inst entities.Entity, now time.Time) error {
	err := s.actions.Run(ctx, actions.RunRequest{
		Action:  rule.Action,
		Rule:    rule,
		Entity:  inst,
		Trigger: actions.TriggerCron,
	})
	if err != nil {
		return err
	}

	ts := now.UTC()
	cond.LastExecuted = &ts
	if err := s.store.UpdateLastExecuted(ctx, cond.ID, ts); err != nil {
		// The action already ran; losing the guard means a duplicate trigger
		// on the next scan, which the at-least-once contract allows.
		s.log.Error().Err(err).Str("condition_id", cond.ID).
			Msg("persisting last_executed failed")
	}
	return nil
}

func (s *Scanner) failure(rule *rules.Rule, cond *rules.Condition, entityID string, err error) Outcome {
	s.log.Error().Err(err).
		Str("rule_id", rule.ID).
		Str("condition_id", cond.ID).
		Str("entity_id", entityID).
		Msg("condition scan failure")
	return Outcome{
		RuleID:      rule.ID,
		ConditionID: cond.ID,
		EntityID:    entityID,
		Status:      StatusFailed,
		Message:     err.Error(),
	}
}
