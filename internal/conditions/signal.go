package conditions

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/goruled/internal/bus"
	"github.com/TimurManjosov/goruled/internal/rules"
)

// KindSignal is the reactive condition kind: it subscribes the rule's action
// to a lifecycle event on the bus. Always entity-scoped, never scanned, and
// carries no idempotence guard — every matching event fires the action.
const KindSignal rules.ConditionKind = "signal"

type signalParams struct {
	// Event is one of the eight lifecycle event names.
	Event string `mapstructure:"event"`
}

func signalDefinition() Definition {
	return Definition{
		Kind:    KindSignal,
		Trigger: TriggerSignal,
		Scope:   rules.Scope{RequiresEntity: true},
		Validate: func(params map[string]any) error {
			var p signalParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			if !bus.ValidEvent(p.Event) {
				return fmt.Errorf("unknown lifecycle event %q: %w", p.Event, rules.ErrInvalidArgument)
			}
			return nil
		},
		Evaluate: func(_ context.Context, req EvalRequest) (bool, error) {
			return false, fmt.Errorf("signal condition %s is event-driven, not scannable: %w",
				req.Condition.ID, rules.ErrInvalidArgument)
		},
	}
}

// SignalEvent extracts the lifecycle event a signal condition subscribes to.
func SignalEvent(c *rules.Condition) (bus.EventName, error) {
	if c.Kind != KindSignal {
		return "", fmt.Errorf("condition %s has kind %q, not %q: %w", c.ID, c.Kind, KindSignal, rules.ErrInvalidArgument)
	}
	var p signalParams
	if err := decodeParams(c.Params, &p); err != nil {
		return "", err
	}
	if !bus.ValidEvent(p.Event) {
		return "", fmt.Errorf("unknown lifecycle event %q: %w", p.Event, rules.ErrInvalidArgument)
	}
	return bus.EventName(p.Event), nil
}
