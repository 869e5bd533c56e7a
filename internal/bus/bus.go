// Package bus implements the in-process entity lifecycle event bus. Publishing
// is synchronous and blocking: the publisher waits for every subscribed handler
// to finish before the event counts as delivered. Subscriptions live only in
// memory and are rebuilt from persisted conditions at process start.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/entities"
)

// EventName names one of the eight entity lifecycle events.
type EventName string

const (
	BeforeCreate EventName = "before-create"
	AfterCreate  EventName = "after-create"
	BeforeUpdate EventName = "before-update"
	AfterUpdate  EventName = "after-update"
	BeforeDelete EventName = "before-delete"
	AfterDelete  EventName = "after-delete"
	BeforeInit   EventName = "before-init"
	AfterInit    EventName = "after-init"
)

var allEvents = []EventName{
	BeforeCreate, AfterCreate,
	BeforeUpdate, AfterUpdate,
	BeforeDelete, AfterDelete,
	BeforeInit, AfterInit,
}

// Events returns the lifecycle event names in their canonical order.
func Events() []EventName {
	out := make([]EventName, len(allEvents))
	copy(out, allEvents)
	return out
}

// ValidEvent reports whether name is a known lifecycle event.
func ValidEvent(name string) bool {
	for _, e := range allEvents {
		if string(e) == name {
			return true
		}
	}
	return false
}

// Handler receives the firing entity when a matching event is published.
type Handler func(ctx context.Context, e entities.Entity) error

type key struct {
	event      EventName
	entityType string
}

// Bus is the process-wide publish mechanism. Multiple independent subscribers
// may share an (event, entity type) key, disambiguated by subscription ID; the
// bus holds a strong reference to every handler until it is unsubscribed.
type Bus struct {
	mu   sync.RWMutex
	subs map[key]map[string]Handler
	log  zerolog.Logger
}

// New creates an empty bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[key]map[string]Handler),
		log:  log,
	}
}

// Subscribe registers a handler keyed by (event, entityType, subID). An
// existing registration with the same triple is replaced, which makes
// re-subscription at process start idempotent.
func (b *Bus) Subscribe(event EventName, entityType, subID string, h Handler) {
	k := key{event: event, entityType: entityType}
	b.mu.Lock()
	if b.subs[k] == nil {
		b.subs[k] = make(map[string]Handler)
	}
	b.subs[k][subID] = h
	b.mu.Unlock()
}

// Unsubscribe removes the registration keyed by (event, entityType, subID).
// Removing an unknown registration is a no-op.
func (b *Bus) Unsubscribe(event EventName, entityType, subID string) {
	k := key{event: event, entityType: entityType}
	b.mu.Lock()
	if handlers, ok := b.subs[k]; ok {
		delete(handlers, subID)
		if len(handlers) == 0 {
			delete(b.subs, k)
		}
	}
	b.mu.Unlock()
}

// Publish fires the event for the given entity and synchronously invokes every
// handler subscribed to (event, entity type). Handler failures are isolated:
// each remaining handler still runs, and the failures come back joined.
func (b *Bus) Publish(ctx context.Context, event EventName, e entities.Entity) error {
	k := key{event: event, entityType: e.EntityType()}

	b.mu.RLock()
	ids := make([]string, 0, len(b.subs[k]))
	for id := range b.subs[k] {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		handlers = append(handlers, b.subs[k][id])
	}
	b.mu.RUnlock()

	var errs []error
	for i, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.log.Warn().
				Str("event", string(event)).
				Str("entity_type", e.EntityType()).
				Str("subscription_id", ids[i]).
				Err(err).
				Msg("event handler failed")
			errs = append(errs, fmt.Errorf("subscription %s: %w", ids[i], err))
		}
	}
	return errors.Join(errs...)
}

// Subscriptions returns the total number of live registrations.
func (b *Bus) Subscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, handlers := range b.subs {
		n += len(handlers)
	}
	return n
}
