package op

import (
	"errors"
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
)

// ErrKindUnknown is returned when applying an op with an invalid kind.
var ErrKindUnknown = errors.New("unknown op kind")

// ErrKeyMismatch is returned when a remove-node op names a child that
// is not at the recorded index.
var ErrKeyMismatch = errors.New("op key does not match child at index")

// Apply applies one operation to the tree. Application is total:
// preconditions are validated before any state changes, so a failed
// Apply leaves the tree byte-identical to its prior state.
//
// Apply records into the op whatever the inverse will need — the
// deleted span for DeleteText, the removed snapshot for RemoveNode,
// the prior value for SetAttribute, the source position for MoveNode —
// so Invert is meaningful once Apply has succeeded.
func Apply(t *node.Tree, o *Op) error {
	switch o.Kind {
	case InsertText:
		return t.MutateText(o.Key, o.Offset, 0, o.Text)

	case DeleteText:
		text, err := t.TextOf(o.Key)
		if err != nil {
			return err
		}
		if o.Offset < 0 || o.Length < 0 || o.Offset+o.Length > len(text) {
			return fmt.Errorf("delete [%d,%d) of %d bytes: %w", o.Offset, o.Offset+o.Length, len(text), node.ErrOffsetOutOfRange)
		}
		o.Text = text[o.Offset : o.Offset+o.Length]
		return t.MutateText(o.Key, o.Offset, o.Length, "")

	case InsertNode:
		if o.Node == nil {
			return fmt.Errorf("insert-node without snapshot: %w", node.ErrKeyNotFound)
		}
		return t.InsertNode(o.Parent, o.Index, o.Node)

	case RemoveNode:
		children, err := t.Children(o.Parent)
		if err != nil {
			return err
		}
		if o.Index < 0 || o.Index >= len(children) {
			return fmt.Errorf("remove at %d of %d children: %w", o.Index, len(children), node.ErrIndexOutOfRange)
		}
		if o.Key != node.Wildcard && children[o.Index].Key() != o.Key {
			return fmt.Errorf("remove %d at index %d: %w", o.Key, o.Index, ErrKeyMismatch)
		}
		removed, err := t.RemoveChildAt(o.Parent, o.Index, true)
		if err != nil {
			return err
		}
		o.Key = removed.Key()
		o.Node = removed
		return nil

	case SetAttribute:
		n, err := t.Get(o.Key)
		if err != nil {
			return err
		}
		elem, ok := n.(*node.Element)
		if !ok {
			return fmt.Errorf("set attribute on %d: %w", o.Key, node.ErrInvalidParent)
		}
		o.OldValue, o.OldPresent = elem.Attr(o.Attr)
		return t.SetAttribute(o.Key, o.Attr, o.NewValue, o.NewPresent)

	case MoveNode:
		n, err := t.Get(o.Key)
		if err != nil {
			return err
		}
		parent, err := t.Parent(o.Key)
		if err != nil || parent == nil {
			return fmt.Errorf("move %d: %w", o.Key, node.ErrInvalidParent)
		}
		elem := parent.(*node.Element)
		o.OldParent = parent.Key()
		o.OldIndex = elem.IndexOf(n.Key())
		return t.MoveNode(o.Key, o.Parent, o.Index)

	default:
		return fmt.Errorf("apply kind %d: %w", o.Kind, ErrKindUnknown)
	}
}

// ApplyAll applies a batch in order. If any op fails, the already
// applied prefix is rolled back so the batch is atomic as a whole.
func ApplyAll(t *node.Tree, ops List) error {
	for i := range ops {
		if err := Apply(t, &ops[i]); err != nil {
			for j := i - 1; j >= 0; j-- {
				inv := ops[j].Invert()
				// Rollback of a just-applied op cannot fail on a
				// consistent tree.
				_ = Apply(t, &inv)
			}
			return fmt.Errorf("apply op %d (%s): %w", i, ops[i].Kind, err)
		}
	}
	return nil
}
