package client

import (
	"sync"

	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

// Handler is a local callback invoked when a matching event arrives.
type Handler func(event realtime.Event)

// Subscription identifies one registered handler so it can be removed without
// disturbing other handlers registered for the same event.
type Subscription struct {
	kind realtime.EventKind
	id   uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// callbackRegistry maps event kinds to ordered handler lists. It outlives any
// single connection: disconnect/reconnect cycles never clear it.
type callbackRegistry struct {
	mu       sync.Mutex
	handlers map[realtime.EventKind][]*registration
	nextID   uint64
	log      logger.Logger
}

func newCallbackRegistry(log logger.Logger) *callbackRegistry {
	return &callbackRegistry{
		handlers: make(map[realtime.EventKind][]*registration),
		log:      log,
	}
}

func (r *callbackRegistry) on(kind realtime.EventKind, handler Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.handlers[kind] = append(r.handlers[kind], &registration{
		id:      r.nextID,
		handler: handler,
	})

	return Subscription{kind: kind, id: r.nextID}
}

func (r *callbackRegistry) off(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[sub.kind]
	for i, reg := range regs {
		if reg.id == sub.id {
			r.handlers[sub.kind] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// emit invokes every handler registered for the event's kind. The list is
// snapshotted first so handlers may register or remove callbacks while a
// dispatch is in flight, and a panicking handler never stops the rest.
func (r *callbackRegistry) emit(event realtime.Event) {
	r.mu.Lock()
	regs := r.handlers[event.Kind()]
	snapshot := make([]*registration, len(regs))
	copy(snapshot, regs)
	r.mu.Unlock()

	for _, reg := range snapshot {
		r.invoke(reg, event)
	}
}

func (r *callbackRegistry) invoke(reg *registration, event realtime.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Event callback panicked", "event", event.Kind(), "panic", rec)
		}
	}()

	reg.handler(event)
}
