package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is anything the audit trail can carry.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

// BaseEvent supplies the Event plumbing; concrete audit events embed it.
type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) Payload() interface{}  { return e.Data }

type Handler func(ctx context.Context, event Event) error

// EventBus is the in-process pub/sub carrying audit events (denials, failed
// logins, revocations) to their consumers. Subscription happens at startup;
// publishing is hot-path safe.
type EventBus struct {
	mu       sync.RWMutex
	subs     map[string][]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subs:   make(map[string][]Handler),
		logger: logger,
	}
}

func (b *EventBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], handler)
	count := len(b.subs[eventType])
	b.mu.Unlock()

	b.logger.Debug("event handler registered",
		"event_type", eventType,
		"handlers", count)
}

func (b *EventBus) handlersFor(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subs[eventType]
}

// Publish dispatches to each subscriber in its own goroutine. A failing
// handler is logged and never surfaces to the publisher; an audit consumer
// outage must not fail the request that produced the event.
func (b *EventBus) Publish(ctx context.Context, event Event) {
	for _, handler := range b.handlersFor(event.EventType()) {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			if err := h(ctx, event); err != nil {
				b.logger.Error("event handler failed",
					"event_type", event.EventType(),
					"event_id", event.EventID(),
					"error", err)
			}
		}(handler)
	}
}

// PublishSync runs handlers in the caller's goroutine, stopping at the first
// failure. Tests and shutdown flushes use it.
func (b *EventBus) PublishSync(ctx context.Context, event Event) error {
	for _, handler := range b.handlersFor(event.EventType()) {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
			return fmt.Errorf("handler for %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// Drain blocks until every async dispatch in flight has finished.
func (b *EventBus) Drain() {
	b.inflight.Wait()
}
