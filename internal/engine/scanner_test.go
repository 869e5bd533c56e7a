package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/store"
)

type countAction struct {
	fired []string // entity IDs, "" for generic
	fail  bool
}

func (c *countAction) definition() actions.Definition {
	return actions.Definition{
		Kind: "count",
		Run: func(_ context.Context, req actions.RunRequest) error {
			if c.fail {
				return errors.New("delivery down")
			}
			id := ""
			if req.Entity != nil {
				id = req.Entity.EntityID()
			}
			c.fired = append(c.fired, id)
			return nil
		},
	}
}

type fixture struct {
	scanner *Scanner
	store   *store.MemoryStore
	source  *entities.MemorySource
	action  *countAction
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		source: entities.NewMemorySource(),
		action: &countAction{},
		now:    time.Date(2016, time.January, 1, 9, 0, 0, 0, time.UTC),
	}

	condReg := conditions.NewBuiltinRegistry()
	actReg := actions.NewRegistry()
	require.NoError(t, actReg.Register(f.action.definition()))

	f.scanner = NewScanner(f.store, condReg, actReg, f.source, zerolog.Nop())
	f.scanner.Clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) run(t *testing.T) *Report {
	t.Helper()
	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	return report
}

func dayOfMonthRule(id string, day int) *rules.Rule {
	return &rules.Rule{
		ID:        id,
		Condition: &rules.Condition{ID: id + "-c", Kind: conditions.KindDayOfMonth, Params: map[string]any{"day": day}},
		Action:    &rules.Action{ID: id + "-a", Kind: "count"},
	}
}

func TestScanner_FiresOnceThenGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, dayOfMonthRule("r1", 1)))

	// January 1st: due.
	report := f.run(t)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, f.action.fired, 1)

	// Re-run the same day: the guard holds.
	report = f.run(t)
	assert.Zero(t, report.Executed)
	assert.Len(t, f.action.fired, 1)

	// January 2nd: not the configured day.
	f.now = f.now.AddDate(0, 0, 1)
	report = f.run(t)
	assert.Zero(t, report.Executed)

	// February 1st: due again.
	f.now = time.Date(2016, time.February, 1, 9, 0, 0, 0, time.UTC)
	report = f.run(t)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, f.action.fired, 2)
}

func TestScanner_FailedActionDoesNotAdvanceGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, dayOfMonthRule("r1", 1)))

	f.action.fail = true
	report := f.run(t)
	assert.Zero(t, report.Executed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)

	// The next scan on the same day retries and succeeds.
	f.action.fail = false
	report = f.run(t)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, f.action.fired, 1)
}

func TestScanner_MissingActionSkipsWithWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := dayOfMonthRule("r1", 1)
	r.Action = nil
	require.NoError(t, f.store.CreateRule(ctx, r))

	report := f.run(t)
	assert.Zero(t, report.Executed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Message, rules.ErrMissingLink.Error())
}

func TestScanner_SignalConditionsNotScanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, &rules.Rule{
		ID:               "r1",
		TargetEntityType: "book",
		Condition: &rules.Condition{
			ID:             "c1",
			Kind:           conditions.KindSignal,
			Params:         map[string]any{"event": "after-create"},
			SubscriptionID: "sub-1",
		},
		Action: &rules.Action{ID: "a1", Kind: "count"},
	}))

	report := f.run(t)
	assert.Zero(t, report.Executed)
	assert.Empty(t, report.Outcomes, "signal conditions belong to the bus, not the scan")
}

func TestScanner_CoarseGuardFiresOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := dayOfMonthRule("r1", 1)
	r.TargetEntityType = "book"
	require.NoError(t, f.store.CreateRule(ctx, r))
	for _, id := range []string{"b1", "b2", "b3"} {
		f.source.Add(entities.Record{Type: "book", ID: id})
	}

	report := f.run(t)
	assert.Equal(t, 1, report.Executed, "coarse guard: first matching instance wins")
	assert.Equal(t, []string{"b1"}, f.action.fired)
}

func TestScanner_PerInstanceGuardFiresForAll(t *testing.T) {
	f := newFixture(t)
	f.scanner.Guard = GuardPerInstance
	ctx := context.Background()

	r := dayOfMonthRule("r1", 1)
	r.TargetEntityType = "book"
	require.NoError(t, f.store.CreateRule(ctx, r))
	for _, id := range []string{"b1", "b2", "b3"} {
		f.source.Add(entities.Record{Type: "book", ID: id})
	}

	report := f.run(t)
	assert.Equal(t, 3, report.Executed)
	assert.Equal(t, []string{"b1", "b2", "b3"}, f.action.fired)

	// Next scan the same day: the persisted guard holds for everyone.
	report = f.run(t)
	assert.Zero(t, report.Executed)
}

func TestScanner_FilterConditionHasNoGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateRule(ctx, &rules.Rule{
		ID:               "r1",
		TargetEntityType: "book",
		Condition: &rules.Condition{
			ID:     "c1",
			Kind:   conditions.KindFilter,
			Params: map[string]any{"expression": `{"<": [{"var": "stock"}, 5]}`},
		},
		Action: &rules.Action{ID: "a1", Kind: "count"},
	}))
	f.source.Add(entities.Record{Type: "book", ID: "b1", Attrs: map[string]any{"stock": 2}})
	f.source.Add(entities.Record{Type: "book", ID: "b2", Attrs: map[string]any{"stock": 50}})

	report := f.run(t)
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, []string{"b1"}, f.action.fired)

	// Matching instances fire on every scan.
	report = f.run(t)
	assert.Equal(t, 1, report.Executed)
	assert.Len(t, f.action.fired, 2)
}

func TestScanner_UnknownKindSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, &rules.Rule{
		ID:        "r1",
		Condition: &rules.Condition{ID: "c1", Kind: "no_such_kind"},
		Action:    &rules.Action{ID: "a1", Kind: "count"},
	}))

	report := f.run(t)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Message, "not registered")
}

// orphanStore wraps the memory store and appends an orphaned condition row.
type orphanStore struct {
	*store.MemoryStore
	orphan rules.Condition
}

func (o *orphanStore) ListConditions(ctx context.Context) ([]store.ConditionRow, error) {
	rows, err := o.MemoryStore.ListConditions(ctx)
	if err != nil {
		return nil, err
	}
	return append(rows, store.ConditionRow{Condition: o.orphan}), nil
}

func TestScanner_OrphanedConditionSkipped(t *testing.T) {
	f := newFixture(t)
	orphaned := &orphanStore{
		MemoryStore: f.store,
		orphan: rules.Condition{
			ID:     "lost-c",
			Kind:   conditions.KindDayOfMonth,
			Params: map[string]any{"day": 1},
		},
	}
	condReg := conditions.NewBuiltinRegistry()
	actReg := actions.NewRegistry()
	require.NoError(t, actReg.Register(f.action.definition()))
	scanner := NewScanner(orphaned, condReg, actReg, f.source, zerolog.Nop())
	scanner.Clock = func() time.Time { return f.now }

	report, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusSkipped, report.Outcomes[0].Status)
	assert.Equal(t, "lost-c", report.Outcomes[0].ConditionID)
	assert.Empty(t, f.action.fired)
}
