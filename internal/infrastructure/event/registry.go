package event

import (
	"slices"
	"sync"

	"github.com/CortekUK/drive-247-sub002/internal/domain/shared"
)

// anyEvent is the subscription key for handlers that receive every event
const anyEvent = "*"

type subscription struct {
	handler   shared.EventHandler
	eventType string
}

// HandlerRegistry keeps bus subscriptions in the order they were made.
// Handlers for one event run in that order.
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register subscribes handler to eventTypes, or to every event when none
// are given. Registering the same handler for the same type twice is a no-op.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = []string{anyEvent}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, eventType := range eventTypes {
		sub := subscription{handler: handler, eventType: eventType}
		if !slices.Contains(r.subs, sub) {
			r.subs = append(r.subs, sub)
		}
	}
}

// Unregister drops every subscription held by handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(s subscription) bool {
		return s.handler == handler
	})
}

// GetHandlers returns the handlers for eventType in subscription order.
// A handler subscribed both to the type and to every event appears once.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []shared.EventHandler
	for _, s := range r.subs {
		if s.eventType != eventType && s.eventType != anyEvent {
			continue
		}
		if !slices.Contains(out, s.handler) {
			out = append(out, s.handler)
		}
	}
	return out
}

// Types lists the event types with at least one dedicated subscriber
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var types []string
	for _, s := range r.subs {
		if s.eventType != anyEvent && !slices.Contains(types, s.eventType) {
			types = append(types, s.eventType)
		}
	}
	slices.Sort(types)
	return types
}
