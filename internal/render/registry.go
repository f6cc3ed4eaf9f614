package render

import (
	"errors"
	"fmt"
)

// ErrDuplicatePlugin is returned when two plugins claim the same
// element type.
var ErrDuplicatePlugin = errors.New("plugin type already registered")

// Registry holds the plugin set for a renderer. It is append-only
// while being assembled; Snapshot produces the immutable view a
// renderer works from, so registration races never affect an
// in-flight render.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Registering a second plugin for the same
// element type is an error; replacing a renderer's behavior means
// building a new registry.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return errors.New("nil plugin")
	}
	t := p.Type()
	if t == "" {
		return errors.New("plugin has empty type")
	}
	if _, ok := r.plugins[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, t)
	}
	r.plugins[t] = p
	return nil
}

// RegisterAll adds every plugin, stopping at the first error.
func (r *Registry) RegisterAll(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int { return len(r.plugins) }

// Snapshot returns an immutable copy of the current plugin set,
// optionally filtered to the enabled element types. An empty enabled
// list means everything is enabled.
func (r *Registry) Snapshot(enabled []string) Snapshot {
	if len(enabled) == 0 {
		out := make(Snapshot, len(r.plugins))
		for t, p := range r.plugins {
			out[t] = p
		}
		return out
	}
	out := make(Snapshot, len(enabled))
	for _, t := range enabled {
		if p, ok := r.plugins[t]; ok {
			out[t] = p
		}
	}
	return out
}

// Snapshot is a frozen plugin set. Renderers hold one and never see
// later registry changes.
type Snapshot map[string]Plugin

// Lookup returns the plugin for an element type.
func (s Snapshot) Lookup(elemType string) (Plugin, bool) {
	p, ok := s[elemType]
	return p, ok
}
