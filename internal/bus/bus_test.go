package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/goruled/internal/entities"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	b := New(zerolog.Nop())

	var got []string
	b.Subscribe(AfterCreate, "book", "sub-1", func(_ context.Context, e entities.Entity) error {
		got = append(got, e.EntityID())
		return nil
	})

	err := b.Publish(context.Background(), AfterCreate, entities.Record{Type: "book", ID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, got)

	// Different event, same type: no delivery.
	require.NoError(t, b.Publish(context.Background(), AfterUpdate, entities.Record{Type: "book", ID: "b2"}))
	assert.Len(t, got, 1)

	// Same event, different type: no delivery.
	require.NoError(t, b.Publish(context.Background(), AfterCreate, entities.Record{Type: "author", ID: "a1"}))
	assert.Len(t, got, 1)
}

func TestBus_SameTripleReplaces(t *testing.T) {
	b := New(zerolog.Nop())

	first, second := 0, 0
	b.Subscribe(AfterCreate, "book", "sub-1", func(_ context.Context, _ entities.Entity) error {
		first++
		return nil
	})
	b.Subscribe(AfterCreate, "book", "sub-1", func(_ context.Context, _ entities.Entity) error {
		second++
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), AfterCreate, entities.Record{Type: "book", ID: "b1"}))
	assert.Equal(t, 0, first, "replaced handler must not run")
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, b.Subscriptions())
}

func TestBus_MultipleSubscribersPerKey(t *testing.T) {
	b := New(zerolog.Nop())

	count := 0
	b.Subscribe(AfterDelete, "book", "sub-1", func(_ context.Context, _ entities.Entity) error {
		count++
		return nil
	})
	b.Subscribe(AfterDelete, "book", "sub-2", func(_ context.Context, _ entities.Entity) error {
		count++
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), AfterDelete, entities.Record{Type: "book", ID: "b1"}))
	assert.Equal(t, 2, count)
}

func TestBus_HandlerFailureIsolated(t *testing.T) {
	b := New(zerolog.Nop())

	boom := errors.New("boom")
	ran := false
	b.Subscribe(AfterCreate, "book", "sub-1", func(_ context.Context, _ entities.Entity) error {
		return boom
	})
	b.Subscribe(AfterCreate, "book", "sub-2", func(_ context.Context, _ entities.Entity) error {
		ran = true
		return nil
	})

	err := b.Publish(context.Background(), AfterCreate, entities.Record{Type: "book", ID: "b1"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "failure of one handler must not suppress the others")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(zerolog.Nop())

	count := 0
	b.Subscribe(BeforeDelete, "book", "sub-1", func(_ context.Context, _ entities.Entity) error {
		count++
		return nil
	})
	b.Unsubscribe(BeforeDelete, "book", "sub-1")
	// Unknown triple is a no-op.
	b.Unsubscribe(BeforeDelete, "book", "sub-404")

	require.NoError(t, b.Publish(context.Background(), BeforeDelete, entities.Record{Type: "book", ID: "b1"}))
	assert.Zero(t, count)
	assert.Zero(t, b.Subscriptions())
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := New(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			subID := string(rune('a' + n%26))
			b.Subscribe(AfterUpdate, "book", subID, func(_ context.Context, _ entities.Entity) error {
				return nil
			})
			b.Unsubscribe(AfterUpdate, "book", subID)
		}(i)
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), AfterUpdate, entities.Record{Type: "book", ID: "b1"})
		}()
	}
	wg.Wait()
}

func TestValidEvent(t *testing.T) {
	for _, e := range Events() {
		assert.True(t, ValidEvent(string(e)), "event %s should be valid", e)
	}
	assert.False(t, ValidEvent("on-save"))
	assert.Len(t, Events(), 8)
}
