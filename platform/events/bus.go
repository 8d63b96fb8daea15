// Package events is the in-process event layer modules communicate over.
// Publishers never see their subscribers; subscribers never block a request.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"healthlens_backend/platform/logger"
)

// Event is anything a module can put on the bus. EventName keys subscriber
// lookup, so it must be stable across releases.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by every concrete event.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a fresh event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one registered type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers. Publish is fire-and-forget;
// PublishSync waits and reports handler errors.
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

// InMemoryBus is a simple in-process event bus. Handlers for the same event
// run sequentially; Publish detaches from the caller's goroutine.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler errors are logged,
// never propagated to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	// Detach from the request context so in-flight handlers survive the response.
	go func() {
		for _, h := range handlers {
			if err := b.dispatch(context.WithoutCancel(ctx), h, event); err != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}
	}()
}

// PublishSync dispatches the event and waits for all handlers to complete.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := b.dispatch(ctx, h, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers[eventName]))
	copy(out, b.handlers[eventName])
	return out
}

func (b *InMemoryBus) dispatch(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("event handler panicked")
		}
	}()
	return h.Handle(ctx, event)
}

var _ Bus = (*InMemoryBus)(nil)
