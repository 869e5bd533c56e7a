package conditions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// KindFilter is an entity-scoped cron condition that matches instances whose
// attributes satisfy a JSON Logic expression. Unlike the date kinds it carries
// no per-day guard: matching instances fire on every scan.
const KindFilter rules.ConditionKind = "filter"

type filterParams struct {
	// Expression is a JSON Logic rule evaluated against the entity's
	// attributes, plus "id" and "type".
	Expression string `mapstructure:"expression"`
}

func filterDefinition() Definition {
	return Definition{
		Kind:    KindFilter,
		Trigger: TriggerCron,
		Scope:   rules.Scope{RequiresEntity: true},
		Validate: func(params map[string]any) error {
			var p filterParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			return validateExpression(p.Expression)
		},
		Evaluate: func(_ context.Context, req EvalRequest) (bool, error) {
			var p filterParams
			if err := decodeParams(req.Condition.Params, &p); err != nil {
				return false, err
			}

			data := make(map[string]any, len(req.Entity.Attributes())+2)
			for k, v := range req.Entity.Attributes() {
				data[k] = v
			}
			data["id"] = req.Entity.EntityID()
			data["type"] = req.Entity.EntityType()

			return applyExpression(p.Expression, data)
		},
	}
}

func validateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return fmt.Errorf("expression is empty: %w", rules.ErrInvalidArgument)
	}
	var rule any
	if err := json.Unmarshal([]byte(expression), &rule); err != nil {
		return fmt.Errorf("expression is not valid JSON Logic: %w", rules.ErrInvalidArgument)
	}
	var resultBuf bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), strings.NewReader("{}"), &resultBuf); err != nil {
		return fmt.Errorf("expression is not valid JSON Logic: %w", rules.ErrInvalidArgument)
	}
	return nil
}

func applyExpression(expression string, data map[string]any) (bool, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return false, err
	}

	var resultBuf bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), bytes.NewReader(dataBytes), &resultBuf); err != nil {
		return false, fmt.Errorf("applying filter expression: %w", rules.ErrInvalidArgument)
	}

	var result any
	if err := json.Unmarshal(resultBuf.Bytes(), &result); err != nil {
		return false, err
	}
	return isTruthy(result), nil
}

// isTruthy follows JavaScript-like truthiness for JSON Logic results.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
