// Package registry implements the ordered, duplicate-free fan-out of raw
// frames to registered subscribers.
package registry

import (
	"context"
	"sync"

	"github.com/canpulse/canpulse/internal/domain"
)

// Handler consumes one raw frame. Decoding is each subscriber's own
// responsibility, so different subscribers can apply different decode or
// signal-selection logic to the same traffic. Handlers commit to not
// blocking indefinitely: dispatch is sequential and a stalled handler
// delays everyone behind it, including the read loop.
type Handler func(ctx context.Context, frame domain.Frame)

type subscriber struct {
	name    string
	handler Handler
}

// Registry holds an ordered list of frame subscribers keyed by name.
// Subscriber identity is the caller-chosen name, which gives an explicit
// equality contract even when handlers are closures.
//
// Registry is safe for concurrent use, and handlers may subscribe or
// unsubscribe from within a running dispatch: dispatch iterates a
// snapshot of the list.
type Registry struct {
	mu   sync.RWMutex
	subs []subscriber
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Subscribe registers a handler under the given name, keeping registration
// order. Subscribing an already-registered name is a no-op, so a given
// identity is dispatched at most once per frame.
func (r *Registry) Subscribe(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.name == name {
			return
		}
	}
	r.subs = append(r.subs, subscriber{name: name, handler: handler})
}

// Unsubscribe removes the named subscriber. Removing an absent name is a
// no-op.
func (r *Registry) Unsubscribe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s.name == name {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Dispatch delivers the frame to every currently registered subscriber in
// registration order. The list is snapshotted first, so a handler that
// unsubscribes itself (or others) does not corrupt the iteration; such
// changes take effect from the next dispatch.
func (r *Registry) Dispatch(ctx context.Context, frame domain.Frame) {
	r.mu.RLock()
	snapshot := make([]subscriber, len(r.subs))
	copy(snapshot, r.subs)
	r.mu.RUnlock()

	for _, s := range snapshot {
		s.handler(ctx, frame)
	}
}
