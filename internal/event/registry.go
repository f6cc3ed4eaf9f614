// Package event implements the update subscription surface of the
// engine. Subscriptions are owned mappings from a node Key to a
// callback: subscribing under a Key replaces any previous callback for
// that Key, and an explicit unsubscribe is the only removal path.
//
// The sentinel node.Wildcard subscribes to every update regardless of
// which node produced it.
package event

import (
	"sync"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
)

// UpdateFunc receives the mutated node and the operations responsible
// for the mutation. Callbacks run synchronously on the mutating call.
type UpdateFunc func(n node.Node, ops op.List)

// Registry maps node Keys to update callbacks.
type Registry struct {
	mu   sync.RWMutex
	subs map[node.Key]UpdateFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[node.Key]UpdateFunc)}
}

// Subscribe registers fn for updates to key, replacing any existing
// callback for that key. Use node.Wildcard to observe every update.
func (r *Registry) Subscribe(key node.Key, fn UpdateFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[key] = fn
}

// Unsubscribe removes the callback registered under key.
func (r *Registry) Unsubscribe(key node.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, key)
}

// Has reports whether a callback is registered under key.
func (r *Registry) Has(key node.Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[key]
	return ok
}

// EmitUpdate delivers one update notification: the callback registered
// under the node's Key, then the wildcard callback, synchronously.
func (r *Registry) EmitUpdate(n node.Node, ops op.List) {
	r.mu.RLock()
	keyed := r.subs[n.Key()]
	wild := r.subs[node.Wildcard]
	r.mu.RUnlock()

	if keyed != nil {
		keyed(n, ops)
	}
	if wild != nil {
		wild(n, ops)
	}
}

// Clear drops every registration. Used by editor teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[node.Key]UpdateFunc)
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
