package node

import (
	"fmt"
	"unicode/utf8"
)

// Kind discriminates the two node variants.
type Kind uint8

const (
	// KindElement is a container node with a type tag, attributes and
	// ordered children.
	KindElement Kind = iota
	// KindText is a leaf node owning a character buffer.
	KindText
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Node is the common interface of Element and Text.
type Node interface {
	// Key returns the node's process-unique identifier.
	Key() Key

	// Kind returns the node variant.
	Kind() Kind

	// ParentKey returns the Key of the node's parent, or Wildcard if
	// the node is detached.
	ParentKey() Key

	// Length returns the addressable content length: the number of
	// children for an Element, the text length in bytes for a Text.
	Length() int

	setParent(Key)
}

// Element is a container node: a type tag, an attribute map and an
// ordered sequence of children.
type Element struct {
	key      Key
	parent   Key
	elemType string
	attrs    map[string]string
	children []Node
}

// NewElement creates a detached Element with a fresh Key.
func NewElement(elemType string, attrs map[string]string) *Element {
	e := &Element{
		key:      NewKey(),
		elemType: elemType,
	}
	if len(attrs) > 0 {
		e.attrs = make(map[string]string, len(attrs))
		for k, v := range attrs {
			e.attrs[k] = v
		}
	}
	return e
}

// Key returns the element's identifier.
func (e *Element) Key() Key { return e.key }

// Kind returns KindElement.
func (e *Element) Kind() Kind { return KindElement }

// ParentKey returns the parent's Key, or Wildcard if detached.
func (e *Element) ParentKey() Key { return e.parent }

// Length returns the number of children.
func (e *Element) Length() int { return len(e.children) }

// Type returns the element's type tag.
func (e *Element) Type() string { return e.elemType }

// Attr returns the named attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Attrs returns a copy of the attribute map.
func (e *Element) Attrs() map[string]string {
	if len(e.attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// setAttr sets or removes (empty present=false) an attribute.
func (e *Element) setAttr(name, value string, present bool) {
	if !present {
		delete(e.attrs, name)
		return
	}
	if e.attrs == nil {
		e.attrs = make(map[string]string, 1)
	}
	e.attrs[name] = value
}

// ChildCount returns the number of children.
func (e *Element) ChildCount() int { return len(e.children) }

// ChildAt returns the child at index, or nil if out of range.
func (e *Element) ChildAt(index int) Node {
	if index < 0 || index >= len(e.children) {
		return nil
	}
	return e.children[index]
}

// Children returns a copy of the child slice.
func (e *Element) Children() []Node {
	if len(e.children) == 0 {
		return nil
	}
	out := make([]Node, len(e.children))
	copy(out, e.children)
	return out
}

// IndexOf returns the index of the child with the given Key, or -1.
func (e *Element) IndexOf(key Key) int {
	for i, c := range e.children {
		if c.Key() == key {
			return i
		}
	}
	return -1
}

// Append attaches a detached node as the element's last child. It is
// used to build subtrees before they are inserted into a Tree; attached
// nodes must be moved through the Tree instead.
func (e *Element) Append(child Node) error {
	if child.ParentKey() != Wildcard {
		return ErrNodeAttached
	}
	child.setParent(e.key)
	e.children = append(e.children, child)
	return nil
}

// insertChildAt splices child into the child slice at index.
func (e *Element) insertChildAt(index int, child Node) {
	e.children = append(e.children, nil)
	copy(e.children[index+1:], e.children[index:])
	e.children[index] = child
	child.setParent(e.key)
}

// removeChildAt removes and returns the child at index.
func (e *Element) removeChildAt(index int) Node {
	child := e.children[index]
	e.children = append(e.children[:index], e.children[index+1:]...)
	child.setParent(Wildcard)
	return child
}

func (e *Element) setParent(p Key) { e.parent = p }

// String returns a human-readable representation of the element.
func (e *Element) String() string {
	return fmt.Sprintf("element<%s>(key=%d children=%d)", e.elemType, e.key, len(e.children))
}

// Text is a leaf node owning a character buffer.
type Text struct {
	key    Key
	parent Key
	text   string
}

// NewText creates a detached Text node with a fresh Key.
func NewText(text string) *Text {
	return &Text{key: NewKey(), text: text}
}

// Key returns the text node's identifier.
func (t *Text) Key() Key { return t.key }

// Kind returns KindText.
func (t *Text) Kind() Kind { return KindText }

// ParentKey returns the parent's Key, or Wildcard if detached.
func (t *Text) ParentKey() Key { return t.parent }

// Length returns the byte length of the text.
func (t *Text) Length() int { return len(t.text) }

// Text returns the node's content.
func (t *Text) Text() string { return t.text }

// RuneCount returns the number of runes in the content.
func (t *Text) RuneCount() int { return utf8.RuneCountInString(t.text) }

// splice replaces deleteLen bytes at offset with insert. Bounds are
// validated by the Tree before this is called.
func (t *Text) splice(offset, deleteLen int, insert string) {
	t.text = t.text[:offset] + insert + t.text[offset+deleteLen:]
}

func (t *Text) setParent(p Key) { t.parent = p }

// String returns a human-readable representation of the text node.
func (t *Text) String() string {
	return fmt.Sprintf("text(key=%d %q)", t.key, t.text)
}
