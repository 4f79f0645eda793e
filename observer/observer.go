// Package observer implements the minimal subscribe/emit registry
// spec §4.5 and §6 describe: Node and Graph hand out `update`,
// `history` and `conflict` events to whatever Emitter they were built
// with, rather than hard-wiring a concrete pub/sub type. Delivery is
// synchronous and single-threaded (spec §5): Emit calls every
// registered handler in registration order on the calling goroutine
// and does not recover from a handler panic -- §7 makes listener
// errors the caller's problem, not the library's.
//
// The subscribe-returns-an-unsubscribe-handle shape follows
// other_examples' state-store Subscribe pattern (handle-based
// deregistration instead of a name/token the caller must track
// separately).
package observer

import "sync"

// Handler receives the arguments passed to Emit for the event it was
// registered against.
type Handler func(args ...any)

// Emitter is the capability Node and Graph depend on. Hosts may supply
// any implementation; Registry is the default.
type Emitter interface {
	// On registers handler for event and returns a function that
	// removes it.
	On(event string, handler Handler) (unsubscribe func())

	// Emit synchronously invokes every handler registered for event,
	// in registration order, passing args through unchanged.
	Emit(event string, args ...any)
}

// Registry is the default in-memory Emitter.
type Registry struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
	nextID   uint64
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]*subscription)}
}

// On implements Emitter.
func (r *Registry) On(event string, handler Handler) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	sub := &subscription{id: id, handler: handler}
	r.handlers[event] = append(r.handlers[event], sub)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.handlers[event]
		for i, s := range subs {
			if s.id == id {
				r.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Emit implements Emitter. Handlers are snapshotted under the lock and
// invoked outside of it, so a handler may safely subscribe or
// unsubscribe during dispatch without deadlocking.
func (r *Registry) Emit(event string, args ...any) {
	r.mu.Lock()
	subs := make([]*subscription, len(r.handlers[event]))
	copy(subs, r.handlers[event])
	r.mu.Unlock()

	for _, s := range subs {
		s.handler(args...)
	}
}

// Noop is an Emitter that discards every event, useful when a caller
// has no interest in observing merges.
var Noop Emitter = noopEmitter{}

type noopEmitter struct{}

func (noopEmitter) On(string, Handler) func() { return func() {} }
func (noopEmitter) Emit(string, ...any)       {}
