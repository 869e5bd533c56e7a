// Package signals wires rules with signal conditions onto the lifecycle event
// bus. Subscriptions are in-memory only, so the manager re-subscribes every
// stored signal rule at process start.
package signals

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/bus"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/store"
	"github.com/TimurManjosov/goruled/internal/telemetry"
)

// Manager connects and disconnects rule subscriptions on the bus.
type Manager struct {
	bus        *bus.Bus
	conditions *conditions.Registry
	actions    *actions.Registry
	store      store.Store
	log        zerolog.Logger
}

// NewManager creates a manager over the given bus and registries.
func NewManager(b *bus.Bus, conds *conditions.Registry, acts *actions.Registry, st store.Store, log zerolog.Logger) *Manager {
	return &Manager{
		bus:        b,
		conditions: conds,
		actions:    acts,
		store:      st,
		log:        log,
	}
}

// Connect subscribes the rule's action to the lifecycle event its signal
// condition names. Rules without a signal condition or without an action are
// a no-op; the caller attaches them later and reconnects. The handler closes
// over deep copies of the rule, so later edits take effect only through an
// explicit reconnect.
func (m *Manager) Connect(r *rules.Rule) error {
	if r.Condition == nil || r.Action == nil {
		return nil
	}
	def, ok := m.conditions.Get(r.Condition.Kind)
	if !ok || def.Trigger != conditions.TriggerSignal {
		return nil
	}

	event, err := conditions.SignalEvent(r.Condition)
	if err != nil {
		return err
	}
	if r.TargetEntityType == "" {
		return fmt.Errorf("rule %s has a signal condition but no target entity type: %w",
			r.ID, rules.ErrInvalidArgument)
	}
	if r.Condition.SubscriptionID == "" {
		return fmt.Errorf("rule %s signal condition has no subscription ID: %w",
			r.ID, rules.ErrInvalidArgument)
	}

	bound := r.Clone()
	handler := func(ctx context.Context, e entities.Entity) error {
		return m.actions.Run(ctx, actions.RunRequest{
			Action:  bound.Action,
			Rule:    bound,
			Entity:  e,
			Trigger: actions.TriggerSignal,
		})
	}

	m.bus.Subscribe(event, r.TargetEntityType, r.Condition.SubscriptionID, handler)
	telemetry.BusSubscriptions.Set(float64(m.bus.Subscriptions()))
	m.log.Debug().
		Str("rule_id", r.ID).
		Str("event", string(event)).
		Str("entity_type", r.TargetEntityType).
		Str("subscription_id", r.Condition.SubscriptionID).
		Msg("signal rule connected")
	return nil
}

// Disconnect removes the rule's subscription from the bus. Rules without a
// signal condition are a no-op.
func (m *Manager) Disconnect(r *rules.Rule) error {
	if r.Condition == nil {
		return nil
	}
	def, ok := m.conditions.Get(r.Condition.Kind)
	if !ok || def.Trigger != conditions.TriggerSignal {
		return nil
	}

	event, err := conditions.SignalEvent(r.Condition)
	if err != nil {
		return err
	}
	m.bus.Unsubscribe(event, r.TargetEntityType, r.Condition.SubscriptionID)
	telemetry.BusSubscriptions.Set(float64(m.bus.Subscriptions()))
	m.log.Debug().
		Str("rule_id", r.ID).
		Str("event", string(event)).
		Msg("signal rule disconnected")
	return nil
}

// ResubscribeAll walks the store and connects every signal rule. Invalid
// subscriptions are logged and skipped so one bad row cannot block startup.
func (m *Manager) ResubscribeAll(ctx context.Context) error {
	all, err := m.store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}

	connected := 0
	for i := range all {
		r := &all[i]
		if r.Condition == nil || r.Action == nil {
			continue
		}
		def, ok := m.conditions.Get(r.Condition.Kind)
		if !ok || def.Trigger != conditions.TriggerSignal {
			continue
		}
		if err := m.Connect(r); err != nil {
			m.log.Warn().Err(err).Str("rule_id", r.ID).Msg("skipping signal rule on startup")
			continue
		}
		connected++
	}

	m.log.Info().Int("connected", connected).Msg("signal subscriptions rebuilt")
	return nil
}
