// Package events carries change notifications between the store and its
// readers inside one process.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Kind string

const (
	BusinessChanged  Kind = "business.changed"
	ServiceChanged   Kind = "service.changed"
	EmployeeChanged  Kind = "employee.changed"
	ScheduleChanged  Kind = "schedule.changed"
	ExceptionChanged Kind = "exception.changed"
	ConfigApplied    Kind = "config.applied"
)

// Kinds lists every kind published by the store.
var Kinds = []Kind{BusinessChanged, ServiceChanged, EmployeeChanged, ScheduleChanged, ExceptionChanged, ConfigApplied}

// Event is a change to stored data. OwnerID is the business, service or
// employee the change belongs to; it is empty for ConfigApplied.
type Event struct {
	Kind      Kind
	OwnerID   string
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[Kind][]Handler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &Bus{subscribers: make(map[Kind][]Handler), logger: l}
}

// Subscribe registers a handler for the given kinds.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range kinds {
		b.subscribers[k] = append(b.subscribers[k], handler)
	}
}

// Publish notifies subscribers of the event kind. Handlers run synchronously
// in registration order; a failing handler is logged and does not stop the
// others.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Kind]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Warn().Err(err).Str("kind", string(event.Kind)).Str("owner_id", event.OwnerID).Msg("event handler failed")
		}
	}
}
