// Package events provides an ordered, synchronous observer registry.
//
// A Registry is created once by its owner (the session service, the file
// service, or a submission orchestrator) and lives as long as that owner.
// Handlers are only ever appended; Fire invokes them on the calling goroutine
// in the order they were subscribed.
package events

import (
	"context"
	"sync"
)

// Names of events fired by the services.
const (
	UserLogin       = "userLogin"
	LoginSuccess    = "loginSuccess"
	RegisterSuccess = "registerSuccess"
	FileUploaded    = "fileUploaded"
)

// Handler handles a fired event.
type Handler[T any] func(ctx context.Context, payload T)

// Registry maps event names to ordered handler lists.
type Registry[T any] struct {
	mu       sync.RWMutex
	handlers map[string][]Handler[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		handlers: make(map[string][]Handler[T]),
	}
}

// Subscribe appends a handler for the named event.
func (r *Registry[T]) Subscribe(name string, handler Handler[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], handler)
}

// Fire synchronously invokes every handler of the named event in registration order.
// Handlers subscribed while Fire runs are not called for this event.
func (r *Registry[T]) Fire(ctx context.Context, name string, payload T) {
	r.mu.RLock()
	handlers := append([]Handler[T]{}, r.handlers[name]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, payload)
	}
}
