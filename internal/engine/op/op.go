// Package op defines the vocabulary of atomic, invertible tree
// mutations. Operations are the only legal path to changing a
// node.Tree: higher layers express every edit as one or more Ops and
// apply them through this package.
//
// Each Op is a self-contained record. It carries everything needed to
// apply it and to produce its exact inverse without consulting the
// tree, which is what makes undo/redo a pure transformation over the
// log.
package op

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Kind identifies the mutation an Op performs.
type Kind uint8

const (
	// InsertText splices text into a Text node.
	InsertText Kind = iota
	// DeleteText removes a span from a Text node.
	DeleteText
	// InsertNode attaches a node snapshot under a parent.
	InsertNode
	// RemoveNode detaches and retires a child subtree.
	RemoveNode
	// SetAttribute changes one attribute of an Element.
	SetAttribute
	// MoveNode reparents a node.
	MoveNode
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case InsertText:
		return "insert-text"
	case DeleteText:
		return "delete-text"
	case InsertNode:
		return "insert-node"
	case RemoveNode:
		return "remove-node"
	case SetAttribute:
		return "set-attribute"
	case MoveNode:
		return "move-node"
	default:
		return "unknown"
	}
}

// Op is an immutable record of one atomic mutation. Fields are used by
// kind:
//
//	InsertText:   Key, Offset, Text
//	DeleteText:   Key, Offset, Length, Text (the deleted span, for invert)
//	InsertNode:   Parent, Index, Node (detached snapshot)
//	RemoveNode:   Parent, Index, Key, Node (removed snapshot, for invert)
//	SetAttribute: Key, Attr, OldValue/OldPresent, NewValue/NewPresent
//	MoveNode:     Key, OldParent, OldIndex, Parent, Index
type Op struct {
	Kind Kind

	Key    node.Key
	Parent node.Key
	Index  int
	Offset int
	Length int
	Text   string

	Node node.Node

	Attr       string
	OldValue   string
	OldPresent bool
	NewValue   string
	NewPresent bool

	OldParent node.Key
	OldIndex  int
}

// String returns a human-readable representation of the op.
func (o Op) String() string {
	switch o.Kind {
	case InsertText:
		return fmt.Sprintf("insert-text(%d@%d %q)", o.Key, o.Offset, o.Text)
	case DeleteText:
		return fmt.Sprintf("delete-text(%d@%d len=%d)", o.Key, o.Offset, o.Length)
	case InsertNode:
		return fmt.Sprintf("insert-node(parent=%d idx=%d)", o.Parent, o.Index)
	case RemoveNode:
		return fmt.Sprintf("remove-node(parent=%d idx=%d key=%d)", o.Parent, o.Index, o.Key)
	case SetAttribute:
		return fmt.Sprintf("set-attribute(%d %s=%q)", o.Key, o.Attr, o.NewValue)
	case MoveNode:
		return fmt.Sprintf("move-node(%d -> parent=%d idx=%d)", o.Key, o.Parent, o.Index)
	default:
		return "op(unknown)"
	}
}

// NewInsertText builds an insert-text op.
func NewInsertText(key node.Key, offset int, text string) Op {
	return Op{Kind: InsertText, Key: key, Offset: offset, Text: text}
}

// NewDeleteText builds a delete-text op. deleted must be the exact
// span being removed so the op stays invertible.
func NewDeleteText(key node.Key, offset int, deleted string) Op {
	return Op{Kind: DeleteText, Key: key, Offset: offset, Length: len(deleted), Text: deleted}
}

// NewInsertNode builds an insert-node op carrying a detached snapshot.
func NewInsertNode(parent node.Key, index int, n node.Node) Op {
	return Op{Kind: InsertNode, Parent: parent, Index: index, Key: n.Key(), Node: n}
}

// NewRemoveNode builds a remove-node op. The snapshot is captured at
// apply time if nil.
func NewRemoveNode(parent node.Key, index int, key node.Key) Op {
	return Op{Kind: RemoveNode, Parent: parent, Index: index, Key: key}
}

// NewSetAttribute builds a set-attribute op recording both sides of
// the change.
func NewSetAttribute(key node.Key, attr, oldValue string, oldPresent bool, newValue string, newPresent bool) Op {
	return Op{
		Kind:       SetAttribute,
		Key:        key,
		Attr:       attr,
		OldValue:   oldValue,
		OldPresent: oldPresent,
		NewValue:   newValue,
		NewPresent: newPresent,
	}
}

// NewMoveNode builds a move-node op.
func NewMoveNode(key, oldParent node.Key, oldIndex int, newParent node.Key, newIndex int) Op {
	return Op{
		Kind:      MoveNode,
		Key:       key,
		OldParent: oldParent,
		OldIndex:  oldIndex,
		Parent:    newParent,
		Index:     newIndex,
	}
}

// Invert returns the op that exactly undoes o when applied to the
// post-op tree.
func (o Op) Invert() Op {
	switch o.Kind {
	case InsertText:
		return Op{Kind: DeleteText, Key: o.Key, Offset: o.Offset, Length: len(o.Text), Text: o.Text}
	case DeleteText:
		return Op{Kind: InsertText, Key: o.Key, Offset: o.Offset, Text: o.Text}
	case InsertNode:
		return Op{Kind: RemoveNode, Parent: o.Parent, Index: o.Index, Key: o.Key, Node: o.Node}
	case RemoveNode:
		return Op{Kind: InsertNode, Parent: o.Parent, Index: o.Index, Key: o.Key, Node: o.Node}
	case SetAttribute:
		return Op{
			Kind:       SetAttribute,
			Key:        o.Key,
			Attr:       o.Attr,
			OldValue:   o.NewValue,
			OldPresent: o.NewPresent,
			NewValue:   o.OldValue,
			NewPresent: o.OldPresent,
		}
	case MoveNode:
		return Op{
			Kind:      MoveNode,
			Key:       o.Key,
			OldParent: o.Parent,
			OldIndex:  o.Index,
			Parent:    o.OldParent,
			Index:     o.OldIndex,
		}
	default:
		return o
	}
}

// List is an ordered batch of operations forming one transaction.
type List []Op

// Invert returns the inverse batch in reverse order, suitable for
// undoing the whole transaction.
func (l List) Invert() List {
	out := make(List, len(l))
	for i, o := range l {
		out[len(l)-1-i] = o.Invert()
	}
	return out
}

// Keys returns the distinct node Keys directly touched by the batch,
// in first-touched order.
func (l List) Keys() []node.Key {
	seen := make(map[node.Key]bool, len(l))
	var keys []node.Key
	add := func(k node.Key) {
		if k != node.Wildcard && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, o := range l {
		switch o.Kind {
		case InsertText, DeleteText, SetAttribute:
			add(o.Key)
		case InsertNode, RemoveNode:
			add(o.Key)
			add(o.Parent)
		case MoveNode:
			add(o.Key)
			add(o.OldParent)
			add(o.Parent)
		}
	}
	return keys
}
