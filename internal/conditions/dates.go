package conditions

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// Built-in date condition kinds. Both are generic cron conditions guarded by
// last_executed: once a trigger is recorded for a calendar day, re-evaluation
// on that day returns false.
const (
	KindDayOfMonth rules.ConditionKind = "day_of_month"
	KindDayOfWeek  rules.ConditionKind = "day_of_week"
)

type dayOfMonthParams struct {
	// Day of the month, 1-31. The action occurs every month on that day.
	Day int `mapstructure:"day"`
}

type dayOfWeekParams struct {
	// ISO weekday, Monday=1 through Sunday=7. The action occurs every week on
	// that day.
	Weekday int `mapstructure:"weekday"`
}

func dayOfMonthDefinition() Definition {
	return Definition{
		Kind:    KindDayOfMonth,
		Trigger: TriggerCron,
		Validate: func(params map[string]any) error {
			var p dayOfMonthParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			if p.Day < 1 || p.Day > 31 {
				return fmt.Errorf("day must be 1-31, got %d: %w", p.Day, rules.ErrInvalidArgument)
			}
			return nil
		},
		Evaluate: func(_ context.Context, req EvalRequest) (bool, error) {
			var p dayOfMonthParams
			if err := decodeParams(req.Condition.Params, &p); err != nil {
				return false, err
			}
			if req.Now.Day() != p.Day {
				return false, nil
			}
			return !executedOn(req.Condition, req.Now), nil
		},
	}
}

func dayOfWeekDefinition() Definition {
	return Definition{
		Kind:    KindDayOfWeek,
		Trigger: TriggerCron,
		Validate: func(params map[string]any) error {
			var p dayOfWeekParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			if p.Weekday < 1 || p.Weekday > 7 {
				return fmt.Errorf("weekday must be 1-7 (ISO, Monday=1), got %d: %w", p.Weekday, rules.ErrInvalidArgument)
			}
			return nil
		},
		Evaluate: func(_ context.Context, req EvalRequest) (bool, error) {
			var p dayOfWeekParams
			if err := decodeParams(req.Condition.Params, &p); err != nil {
				return false, err
			}
			if isoWeekday(req.Now) != p.Weekday {
				return false, nil
			}
			return !executedOn(req.Condition, req.Now), nil
		},
	}
}

// executedOn reports whether the condition's guard already records a trigger
// on the same calendar day as now.
func executedOn(c *rules.Condition, now time.Time) bool {
	if c.LastExecuted == nil {
		return false
	}
	y1, m1, d1 := c.LastExecuted.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO-8601 (Monday=1, Sunday=7).
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

func decodeParams(params map[string]any, out any) error {
	if err := mapstructure.Decode(params, out); err != nil {
		return fmt.Errorf("decoding params: %w: %w", rules.ErrInvalidArgument, err)
	}
	return nil
}
