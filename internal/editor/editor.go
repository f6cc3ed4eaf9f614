// Package editor wires the engine together: one Editor owns a tree,
// a selection model, the change pipeline, the undo history, the
// composition buffer and the renderer, and routes input signals to
// the right component.
package editor

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/docjson"
	"github.com/dshills/inkwell/internal/engine/change"
	"github.com/dshills/inkwell/internal/engine/composition"
	"github.com/dshills/inkwell/internal/engine/history"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/event"
	"github.com/dshills/inkwell/internal/input"
	"github.com/dshills/inkwell/internal/render"
	"github.com/dshills/inkwell/internal/render/luaplugin"
)

// Errors returned by editor operations.
var (
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("editor is destroyed")

	// ErrNoTextCaret is returned when composition starts without a
	// collapsed selection inside a text node.
	ErrNoTextCaret = errors.New("composition requires a caret in a text node")

	// ErrUnhandledSignal is returned for a signal kind the editor
	// does not route.
	ErrUnhandledSignal = errors.New("unhandled input signal")
)

// Editor coordinates one document. Its methods are safe for use from
// a single goroutine; wrap it if multiple goroutines share one.
type Editor struct {
	mu sync.Mutex

	cfg  *config.Config
	log  zerolog.Logger
	tree *node.Tree

	sel    *selection.Model
	events *event.Registry
	hist   *history.History
	pipe   *change.Pipeline
	comp   *composition.Buffer

	renderer *render.Renderer
	extra    []render.Plugin
	luaOwned []*luaplugin.Plugin

	// userEvents holds the caller's subscriptions. The engine
	// registry's wildcard slot belongs to the editor, which collects
	// updates under the lock and replays them here after releasing
	// it, so a callback may read editor state back without
	// deadlocking.
	userEvents *event.Registry
	notes      []treeUpdate

	destroyed bool
}

// treeUpdate is one queued update notification.
type treeUpdate struct {
	n   node.Node
	ops op.List
}

// Option configures a new Editor.
type Option func(*Editor) error

// WithConfig supplies a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Editor) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		e.cfg = cfg
		return nil
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Editor) error {
		e.log = log
		return nil
	}
}

// WithTree adopts an existing tree instead of an empty document.
func WithTree(t *node.Tree) Option {
	return func(e *Editor) error {
		if t == nil {
			return errors.New("nil tree")
		}
		e.tree = t
		return nil
	}
}

// WithRenderPlugins registers extra render plugins alongside the
// builtin set.
func WithRenderPlugins(plugins ...render.Plugin) Option {
	return func(e *Editor) error {
		e.extra = append(e.extra, plugins...)
		return nil
	}
}

// WithDocument parses an interchange JSON document as the initial
// content.
func WithDocument(data []byte) Option {
	return func(e *Editor) error {
		t, err := docjson.Parse(data)
		if err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
		e.tree = t
		return nil
	}
}

// New creates an Editor. Render plugins come from the builtin set
// plus any Lua plugins named in the configuration.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{
		cfg: config.Default(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.tree == nil {
		e.tree = node.NewTree()
	}

	e.sel = selection.NewModel()
	e.sel.SetPolicy(e.cfg.RelocationPolicy())
	e.events = event.NewRegistry()
	e.hist = history.New(e.cfg.History.MaxEntries)
	e.pipe = change.NewPipeline(e.tree, e.sel, e.events, e.hist)
	e.comp = composition.NewBuffer()

	e.userEvents = event.NewRegistry()

	if err := e.buildRenderer(); err != nil {
		e.closeLuaPlugins()
		return nil, err
	}

	// Every engine update funnels through the editor's wildcard slot
	// and is queued for delivery once the mutating call unlocks.
	e.events.Subscribe(node.Wildcard, e.enqueueUpdate)

	return e, nil
}

func (e *Editor) buildRenderer() error {
	reg := render.NewRegistry()
	if err := reg.RegisterAll(render.Builtins()...); err != nil {
		return err
	}
	if err := reg.RegisterAll(e.extra...); err != nil {
		return err
	}
	for _, pc := range e.cfg.Render.Plugins {
		src, err := os.ReadFile(pc.Path)
		if err != nil {
			return fmt.Errorf("read render plugin %s: %w", pc.Path, err)
		}
		p, err := luaplugin.Load(pc.Type, string(src))
		if err != nil {
			return err
		}
		if err := reg.Register(p); err != nil {
			p.Close()
			return err
		}
		e.luaOwned = append(e.luaOwned, p)
	}
	e.renderer = render.NewRenderer(
		reg.Snapshot(e.cfg.Render.Enabled),
		render.WithLogger(e.log),
	)
	return nil
}

// enqueueUpdate runs in the engine registry's wildcard slot, always
// with the editor lock held, and defers the real work to deliver.
func (e *Editor) enqueueUpdate(n node.Node, ops op.List) {
	e.notes = append(e.notes, treeUpdate{n: n, ops: ops})
}

// mutate runs a mutating intent under the lock, then delivers the
// update notifications the intent queued. Callbacks therefore run
// unlocked and observe the post-mutation state.
func (e *Editor) mutate(fn func() error) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	err := fn()
	notes := e.notes
	e.notes = nil
	e.mu.Unlock()

	e.deliver(notes)
	return err
}

// deliver replays queued updates: an active composition over an
// updated text node re-segments first, then the caller's subscribers
// for that node fire.
func (e *Editor) deliver(notes []treeUpdate) {
	for _, u := range notes {
		if e.comp.IsComposing() && u.n.Key() == e.comp.ComposingKey() {
			if text, ok := u.n.(*node.Text); ok {
				if err := e.comp.Refresh(text.Text()); err != nil {
					e.log.Warn().Err(err).Msg("composition refresh failed")
				}
			}
		}
		e.userEvents.EmitUpdate(u.n, u.ops)
	}
}

// HandleSignal routes one input signal. Text commits through the
// change pipeline; composition signals drive the composition buffer
// without touching the tree until the composition ends.
func (e *Editor) HandleSignal(sig input.Signal) error {
	return e.mutate(func() error { return e.routeSignal(sig) })
}

func (e *Editor) routeSignal(sig input.Signal) error {
	switch sig.Kind {
	case input.ValueChange:
		return e.pipe.InsertText(sig.Text)

	case input.CompositionStart:
		return e.startComposition()

	case input.CompositionUpdate:
		return e.comp.Update(sig.Text)

	case input.CompositionEnd:
		return e.endComposition(sig.Text)

	case input.KeyDown:
		switch sig.Name {
		case "Backspace", "Delete":
			return e.pipe.DeleteContents()
		default:
			e.sel.NotifySignal(sig)
			return nil
		}

	case input.KeyUp:
		e.sel.NotifySignal(sig)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnhandledSignal, sig.Kind)
	}
}

// startComposition flushes queued formatting so the caret sits inside
// the node the composed text will land in, then opens the buffer over
// that node.
func (e *Editor) startComposition() error {
	if e.pipe.HasPendingFormatting() {
		if err := e.pipe.InsertText(""); err != nil {
			return fmt.Errorf("flush pending format: %w", err)
		}
	}

	sel, ok := e.sel.Get()
	if !ok || !sel.IsCollapsed() {
		return ErrNoTextCaret
	}
	n, err := e.tree.Get(sel.Anchor.Key)
	if err != nil {
		return err
	}
	text, ok := n.(*node.Text)
	if !ok {
		return ErrNoTextCaret
	}
	return e.comp.Start(text.Key(), text.Text(), sel.Anchor.Offset)
}

func (e *Editor) endComposition(committed string) error {
	normalized, err := e.comp.End(committed)
	if err != nil {
		return err
	}
	if !e.cfg.Editor.NormalizeInput {
		normalized = committed
	}
	if normalized == "" {
		return nil
	}
	return e.pipe.InsertText(normalized)
}

// InsertText inserts at the current selection.
func (e *Editor) InsertText(text string) error {
	return e.mutate(func() error { return e.pipe.InsertText(text) })
}

// DeleteContents erases the current selection range.
func (e *Editor) DeleteContents() error {
	return e.mutate(func() error { return e.pipe.DeleteContents() })
}

// FormatText queues formatting for the next insertion.
func (e *Editor) FormatText(tag string, attrs map[string]string) error {
	return e.mutate(func() error {
		e.pipe.FormatText(tag, attrs)
		return nil
	})
}

// SetAttribute sets or clears an attribute on an element as one
// undoable transaction.
func (e *Editor) SetAttribute(key node.Key, name, value string, present bool) error {
	return e.mutate(func() error { return e.pipe.SetAttribute(key, name, value, present) })
}

// MoveNode relocates a node under a new parent.
func (e *Editor) MoveNode(key, newParent node.Key, newIndex int) error {
	return e.mutate(func() error { return e.pipe.MoveNode(key, newParent, newIndex) })
}

// Apply commits an externally assembled operation batch as one
// transaction.
func (e *Editor) Apply(ops op.List) error {
	return e.mutate(func() error { return e.pipe.Apply(ops) })
}

// Undo reverts the most recent transaction.
func (e *Editor) Undo() error {
	return e.mutate(func() error { return e.pipe.Undo() })
}

// Redo reapplies the most recently undone transaction.
func (e *Editor) Redo() error {
	return e.mutate(func() error { return e.pipe.Redo() })
}

// Select sets the selection range.
func (e *Editor) Select(anchor, focus selection.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.Set(anchor, focus)
}

// SelectCollapsed places the caret.
func (e *Editor) SelectCollapsed(pos selection.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.SetCollapsed(pos)
}

// Selection returns the current selection.
func (e *Editor) Selection() (selection.Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Get()
}

// Tree exposes the document tree for reads.
func (e *Editor) Tree() *node.Tree { return e.tree }

// Render produces markup for the whole document.
func (e *Editor) Render() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renderer.RenderTree(e.tree)
}

// Document serializes the tree as interchange JSON.
func (e *Editor) Document() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, ErrDestroyed
	}
	return docjson.Marshal(e.tree)
}

// OnUpdate subscribes to updates for one node, or for every node via
// node.Wildcard. One subscriber per key; a second subscription
// replaces the first.
func (e *Editor) OnUpdate(key node.Key, fn event.UpdateFunc) {
	e.userEvents.Subscribe(key, fn)
}

// OffUpdate removes the subscriber for key.
func (e *Editor) OffUpdate(key node.Key) {
	e.userEvents.Unsubscribe(key)
}

// OnCompositionUpdate subscribes to composition segments for a node.
// A segmentation produced before the subscription replays
// immediately.
func (e *Editor) OnCompositionUpdate(key node.Key, fn composition.UpdateFunc) {
	e.comp.OnUpdate(key, fn)
}

// OffCompositionUpdate removes the composition subscriber for key.
func (e *Editor) OffCompositionUpdate(key node.Key) {
	e.comp.OffUpdate(key)
}

// IsComposing reports whether a composition is active.
func (e *Editor) IsComposing() bool { return e.comp.IsComposing() }

// CanUndo reports whether Undo would apply a transaction.
func (e *Editor) CanUndo() bool { return e.hist.CanUndo() }

// CanRedo reports whether Redo would apply a transaction.
func (e *Editor) CanRedo() bool { return e.hist.CanRedo() }

// Destroy releases subscriptions, the history, any active
// composition, and owned Lua states. It is idempotent; every later
// operation returns ErrDestroyed.
func (e *Editor) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.notes = nil
	e.userEvents.Clear()
	e.events.Clear()
	e.hist.Clear()
	e.comp.Reset()
	e.closeLuaPlugins()
}

func (e *Editor) closeLuaPlugins() {
	for _, p := range e.luaOwned {
		p.Close()
	}
	e.luaOwned = nil
}
