package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TimurManjosov/goruled/internal/rules"
)

//go:embed schema.sql
var schemaSQL string

const ruleSelect = `
SELECT r.id, r.description, r.target_entity_type, r.created_at, r.updated_at,
       c.id, c.kind, c.params, c.last_executed, c.subscription_id,
       a.id, a.kind, a.params
FROM rules r
LEFT JOIN conditions c ON c.rule_id = r.id
LEFT JOIN actions a ON a.rule_id = r.id`

// PostgresStore is a PostgreSQL implementation of the Store interface.
// A rule spans up to three rows: the rule itself plus its optional condition
// and action. Writes run in a transaction so a rule is never observed with
// half of its pair attached.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the rules, conditions and actions tables if they do
// not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// ListRules retrieves all rules with their conditions and actions, newest
// first.
func (p *PostgresStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := p.pool.Query(ctx, ruleSelect+" ORDER BY r.updated_at DESC, r.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRule retrieves a single rule by ID.
func (p *PostgresStore) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	row := p.pool.QueryRow(ctx, ruleSelect+" WHERE r.id = $1", id)
	r, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	return r, err
}

// CreateRule persists a new rule with its condition and action in one
// transaction.
func (p *PostgresStore) CreateRule(ctx context.Context, r *rules.Rule) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	return p.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO rules (id, description, target_entity_type, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.ID, r.Description, r.TargetEntityType, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return err
		}
		return insertPair(ctx, tx, r)
	})
}

// UpdateRule replaces the stored rule's fields and its condition/action pair.
func (p *PostgresStore) UpdateRule(ctx context.Context, r *rules.Rule) error {
	r.UpdatedAt = time.Now().UTC()

	return p.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE rules SET description = $2, target_entity_type = $3, updated_at = $4 WHERE id = $1`,
			r.ID, r.Description, r.TargetEntityType, r.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRuleNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM conditions WHERE rule_id = $1`, r.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM actions WHERE rule_id = $1`, r.ID); err != nil {
			return err
		}
		return insertPair(ctx, tx, r)
	})
}

// DeleteRule removes a rule together with its condition and action, returning
// the deleted record. The ON DELETE SET NULL on conditions only applies to
// rows removed out-of-band; the normal path deletes the full triple.
func (p *PostgresStore) DeleteRule(ctx context.Context, id string) (*rules.Rule, error) {
	r, err := p.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	err = p.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM conditions WHERE rule_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRuleNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListConditions retrieves every condition row together with its owning rule,
// orphans included.
func (p *PostgresStore) ListConditions(ctx context.Context) ([]ConditionRow, error) {
	rows, err := p.pool.Query(ctx, `
SELECT c.id, c.kind, c.params, c.last_executed, c.subscription_id,
       r.id, r.description, r.target_entity_type, r.created_at, r.updated_at,
       a.id, a.kind, a.params
FROM conditions c
LEFT JOIN rules r ON r.id = c.rule_id
LEFT JOIN actions a ON a.rule_id = r.id
ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConditionRow
	for rows.Next() {
		var (
			cond         rules.Condition
			condParams   []byte
			ruleID       *string
			ruleDesc     *string
			ruleTarget   *string
			ruleCreated  *time.Time
			ruleUpdated  *time.Time
			actionID     *string
			actionKind   *string
			actionParams []byte
		)
		err := rows.Scan(
			&cond.ID, &cond.Kind, &condParams, &cond.LastExecuted, &cond.SubscriptionID,
			&ruleID, &ruleDesc, &ruleTarget, &ruleCreated, &ruleUpdated,
			&actionID, &actionKind, &actionParams)
		if err != nil {
			return nil, err
		}
		if err := unmarshalParams(condParams, &cond.Params); err != nil {
			return nil, err
		}

		row := ConditionRow{Condition: cond}
		if ruleID != nil {
			r := &rules.Rule{
				ID:               *ruleID,
				Description:      *ruleDesc,
				TargetEntityType: *ruleTarget,
				CreatedAt:        *ruleCreated,
				UpdatedAt:        *ruleUpdated,
			}
			c := cond
			r.Condition = &c
			if actionID != nil {
				r.Action = &rules.Action{ID: *actionID, Kind: rules.ActionKind(*actionKind)}
				if err := unmarshalParams(actionParams, &r.Action.Params); err != nil {
					return nil, err
				}
			}
			row.Rule = r
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateLastExecuted persists a condition's idempotence guard.
func (p *PostgresStore) UpdateLastExecuted(ctx context.Context, conditionID string, t time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE conditions SET last_executed = $2 WHERE id = $1`, conditionID, t)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertPair(ctx context.Context, tx pgx.Tx, r *rules.Rule) error {
	if r.Condition != nil {
		params, err := marshalParams(r.Condition.Params)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO conditions (id, rule_id, kind, params, last_executed, subscription_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			r.Condition.ID, r.ID, r.Condition.Kind, params,
			r.Condition.LastExecuted, r.Condition.SubscriptionID)
		if err != nil {
			return err
		}
	}
	if r.Action != nil {
		params, err := marshalParams(r.Action.Params)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO actions (id, rule_id, kind, params) VALUES ($1, $2, $3, $4)`,
			r.Action.ID, r.ID, r.Action.Kind, params)
		if err != nil {
			return err
		}
	}
	return nil
}

// scanRule reads one joined rule row. The condition and action columns are
// nullable, so everything past the rule's own fields scans through pointers.
func scanRule(row pgx.Row) (*rules.Rule, error) {
	var (
		r            rules.Rule
		condID       *string
		condKind     *string
		condParams   []byte
		condLastExec *time.Time
		condSubID    *string
		actionID     *string
		actionKind   *string
		actionParams []byte
	)
	err := row.Scan(
		&r.ID, &r.Description, &r.TargetEntityType, &r.CreatedAt, &r.UpdatedAt,
		&condID, &condKind, &condParams, &condLastExec, &condSubID,
		&actionID, &actionKind, &actionParams)
	if err != nil {
		return nil, err
	}

	if condID != nil {
		r.Condition = &rules.Condition{
			ID:             *condID,
			Kind:           rules.ConditionKind(*condKind),
			LastExecuted:   condLastExec,
			SubscriptionID: *condSubID,
		}
		if err := unmarshalParams(condParams, &r.Condition.Params); err != nil {
			return nil, err
		}
	}
	if actionID != nil {
		r.Action = &rules.Action{ID: *actionID, Kind: rules.ActionKind(*actionKind)}
		if err := unmarshalParams(actionParams, &r.Action.Params); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(params)
}

func unmarshalParams(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
