// Package selection maintains the active edit range as an
// anchor/focus pair of (Key, offset) positions, and keeps that range
// valid while operations mutate the tree underneath it.
//
// The model never holds node pointers. Endpoints are remapped through
// every applied operation batch: insertions before an endpoint shift
// it, deletions clamp it, and a removed subtree relocates it to a
// surviving boundary according to the configured RelocationPolicy.
package selection

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
	"github.com/dshills/inkwell/internal/input"
)

// Position addresses a point in the document: a byte offset within a
// Text node, or a child index boundary within an Element.
type Position struct {
	Key    node.Key
	Offset int
}

// String returns a human-readable representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("(%d:%d)", p.Key, p.Offset)
}

// Selection is an anchor/focus pair. Anchor is where the selection
// started; focus is where it currently ends.
type Selection struct {
	Anchor Position
	Focus  Position
}

// IsCollapsed reports whether anchor and focus coincide.
func (s Selection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

// RelocationPolicy decides where an endpoint lands when the subtree
// containing it is removed.
type RelocationPolicy uint8

const (
	// RelocatePreviousSibling moves the endpoint to the end of the
	// nearest preceding sibling of the removed subtree, falling back
	// to the parent start when there is none. This is the default.
	RelocatePreviousSibling RelocationPolicy = iota
	// RelocateParentStart always moves the endpoint to the start of
	// the removed subtree's parent.
	RelocateParentStart
)

// SignalListener receives raw input signals observed at the selection
// boundary. The model does not interpret them; it only fans them out.
type SignalListener func(sig input.Signal)

// Model tracks the current selection for one document.
type Model struct {
	sel       *Selection
	policy    RelocationPolicy
	listeners []SignalListener
}

// NewModel creates an empty selection model with the default
// relocation policy.
func NewModel() *Model {
	return &Model{policy: RelocatePreviousSibling}
}

// SetPolicy changes the endpoint relocation policy.
func (m *Model) SetPolicy(p RelocationPolicy) { m.policy = p }

// Policy returns the active relocation policy.
func (m *Model) Policy() RelocationPolicy { return m.policy }

// Set replaces the selection. Validity against a tree is checked by
// Validate; Set itself only records the endpoints.
func (m *Model) Set(anchor, focus Position) {
	m.sel = &Selection{Anchor: anchor, Focus: focus}
}

// SetCollapsed collapses the selection to a single position.
func (m *Model) SetCollapsed(pos Position) {
	m.Set(pos, pos)
}

// Clear removes the selection.
func (m *Model) Clear() { m.sel = nil }

// Get returns the current selection, or ok=false when none is set.
func (m *Model) Get() (Selection, bool) {
	if m.sel == nil {
		return Selection{}, false
	}
	return *m.sel, true
}

// Validate checks both endpoints against the tree: each Key must
// resolve to a live node and each offset must lie in [0, length].
func (m *Model) Validate(t *node.Tree) error {
	if m.sel == nil {
		return nil
	}
	for _, pos := range []Position{m.sel.Anchor, m.sel.Focus} {
		n, err := t.Get(pos.Key)
		if err != nil {
			return err
		}
		if pos.Offset < 0 || pos.Offset > n.Length() {
			return fmt.Errorf("selection offset %d of %d: %w", pos.Offset, n.Length(), node.ErrOffsetOutOfRange)
		}
	}
	return nil
}

// Normalized returns the selection with its endpoints ordered so the
// start does not follow the end in document order.
func (m *Model) Normalized(t *node.Tree) (start, end Position, ok bool) {
	if m.sel == nil {
		return Position{}, Position{}, false
	}
	cmp, err := t.ComparePositions(m.sel.Anchor.Key, m.sel.Anchor.Offset, m.sel.Focus.Key, m.sel.Focus.Offset)
	if err != nil {
		return Position{}, Position{}, false
	}
	if cmp <= 0 {
		return m.sel.Anchor, m.sel.Focus, true
	}
	return m.sel.Focus, m.sel.Anchor, true
}

// Remap adjusts both endpoints through an applied operation batch.
// The tree passed in is the post-batch tree.
func (m *Model) Remap(t *node.Tree, ops op.List) {
	if m.sel == nil {
		return
	}
	for i := range ops {
		m.sel.Anchor = remapPosition(t, m.sel.Anchor, ops[i], m.policy)
		m.sel.Focus = remapPosition(t, m.sel.Focus, ops[i], m.policy)
	}
}

// remapPosition maps one endpoint through one operation.
//
// Policy: a text insertion shifts the offset only when the insertion
// point is strictly before it; a deletion clamps an overlapped offset
// to the deletion start; a removed subtree relocates the endpoint per
// the RelocationPolicy.
func remapPosition(t *node.Tree, pos Position, o op.Op, policy RelocationPolicy) Position {
	switch o.Kind {
	case op.InsertText:
		if o.Key == pos.Key && o.Offset < pos.Offset {
			pos.Offset += len(o.Text)
		}
		return pos

	case op.DeleteText:
		if o.Key != pos.Key {
			return pos
		}
		end := o.Offset + o.Length
		switch {
		case pos.Offset <= o.Offset:
			return pos
		case pos.Offset <= end:
			pos.Offset = o.Offset
		default:
			pos.Offset -= o.Length
		}
		return pos

	case op.InsertNode:
		if o.Parent == pos.Key && o.Index < pos.Offset {
			pos.Offset++
		}
		return pos

	case op.RemoveNode:
		if o.Parent == pos.Key {
			// Endpoint is a child-index boundary of the parent.
			if o.Index < pos.Offset {
				pos.Offset--
			}
			return pos
		}
		if o.Node != nil && subtreeContains(o.Node, pos.Key) {
			return relocate(t, o, policy)
		}
		return pos

	case op.MoveNode:
		if o.OldParent == pos.Key && o.OldIndex < pos.Offset {
			pos.Offset--
		}
		if o.Parent == pos.Key && o.Index < pos.Offset {
			pos.Offset++
		}
		return pos

	default:
		return pos
	}
}

// relocate picks the surviving boundary for an endpoint whose subtree
// was removed.
func relocate(t *node.Tree, o op.Op, policy RelocationPolicy) Position {
	if policy == RelocatePreviousSibling && o.Index > 0 {
		if children, err := t.Children(o.Parent); err == nil && o.Index-1 < len(children) {
			prev := children[o.Index-1]
			return Position{Key: prev.Key(), Offset: prev.Length()}
		}
	}
	return Position{Key: o.Parent, Offset: 0}
}

// subtreeContains reports whether key is the root or a descendant of n.
func subtreeContains(n node.Node, key node.Key) bool {
	if n.Key() == key {
		return true
	}
	if e, ok := n.(*node.Element); ok {
		for _, c := range e.Children() {
			if subtreeContains(c, key) {
				return true
			}
		}
	}
	return false
}

// OnSignal registers a pass-through listener for raw input signals.
func (m *Model) OnSignal(fn SignalListener) {
	m.listeners = append(m.listeners, fn)
}

// NotifySignal fans a raw input signal out to all listeners, in
// registration order. The model attaches no editing semantics to it.
func (m *Model) NotifySignal(sig input.Signal) {
	for _, fn := range m.listeners {
		fn(sig)
	}
}
