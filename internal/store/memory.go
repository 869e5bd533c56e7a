package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map guarded by an RWMutex and hands out deep copies, so callers
// can never mutate stored state behind the lock's back. Suitable for
// development, testing, or single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*rules.Rule
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]*rules.Rule),
		now:   time.Now,
	}
}

// ListRules returns all rules ordered by UpdatedAt descending.
func (m *MemoryStore) ListRules(_ context.Context) ([]rules.Rule, error) {
	m.mu.RLock()
	out := make([]rules.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, *r.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetRule returns a copy of the rule with the given ID.
func (m *MemoryStore) GetRule(_ context.Context, id string) (*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return r.Clone(), nil
}

// CreateRule stores a copy of the rule and stamps its timestamps.
func (m *MemoryStore) CreateRule(_ context.Context, r *rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m.rules[r.ID] = r.Clone()
	return nil
}

// UpdateRule replaces the stored rule, keeping CreatedAt and advancing
// UpdatedAt.
func (m *MemoryStore) UpdateRule(_ context.Context, r *rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rules[r.ID]
	if !ok {
		return ErrRuleNotFound
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = m.now().UTC()
	m.rules[r.ID] = r.Clone()
	return nil
}

// DeleteRule removes the rule and returns the deleted record.
func (m *MemoryStore) DeleteRule(_ context.Context, id string) (*rules.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	delete(m.rules, id)
	return r.Clone(), nil
}

// ListConditions returns every rule's condition. Rules without a condition
// contribute nothing; orphaned conditions cannot arise in memory because the
// rule owns its condition record.
func (m *MemoryStore) ListConditions(_ context.Context) ([]ConditionRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ConditionRow
	for _, r := range m.rules {
		if r.Condition == nil {
			continue
		}
		clone := r.Clone()
		out = append(out, ConditionRow{Condition: *clone.Condition, Rule: clone})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Condition.ID < out[j].Condition.ID })
	return out, nil
}

// UpdateLastExecuted sets the guard timestamp on the condition with the given
// ID.
func (m *MemoryStore) UpdateLastExecuted(_ context.Context, conditionID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rules {
		if r.Condition != nil && r.Condition.ID == conditionID {
			ts := t
			r.Condition.LastExecuted = &ts
			return nil
		}
	}
	return ErrRuleNotFound
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
