package node

import "fmt"

// Tree owns the document hierarchy and the Key index. The index holds
// exactly the nodes reachable from the root; detached nodes created by
// CreateElement/CreateText (or detached by a non-permanent removal)
// live in a side table until attached.
//
// All mutation methods validate their preconditions before touching
// any state, so a failed call leaves the tree exactly as it was.
type Tree struct {
	root  *Element
	index map[Key]Node
	limbo map[Key]Node
}

// RootType is the type tag of the tree's root element.
const RootType = "root"

// NewTree creates a tree with an empty root element.
func NewTree() *Tree {
	root := NewElement(RootType, nil)
	t := &Tree{
		root:  root,
		index: make(map[Key]Node),
		limbo: make(map[Key]Node),
	}
	t.index[root.key] = root
	return t
}

// Root returns the root element.
func (t *Tree) Root() *Element { return t.root }

// CreateElement allocates a detached Element owned by this tree.
func (t *Tree) CreateElement(elemType string, attrs map[string]string) *Element {
	e := NewElement(elemType, attrs)
	t.limbo[e.key] = e
	return e
}

// CreateText allocates a detached Text node owned by this tree.
func (t *Tree) CreateText(text string) *Text {
	n := NewText(text)
	t.limbo[n.key] = n
	return n
}

// Get returns the attached node for key. Absent keys are classified:
// ErrStaleKey if the key was allocated but the node is gone or
// detached, ErrKeyNotFound if the key was never allocated.
func (t *Tree) Get(key Key) (Node, error) {
	if n, ok := t.index[key]; ok {
		return n, nil
	}
	if key.IsValid() {
		return nil, fmt.Errorf("get %d: %w", key, ErrStaleKey)
	}
	return nil, fmt.Errorf("get %d: %w", key, ErrKeyNotFound)
}

// Has reports whether key resolves to an attached node.
func (t *Tree) Has(key Key) bool {
	_, ok := t.index[key]
	return ok
}

// Parent returns the parent of the node at key, or nil for the root.
func (t *Tree) Parent(key Key) (Node, error) {
	n, err := t.Get(key)
	if err != nil {
		return nil, err
	}
	if n.ParentKey() == Wildcard {
		return nil, nil
	}
	return t.index[n.ParentKey()], nil
}

// Children returns the children of the element at key.
func (t *Tree) Children(key Key) ([]Node, error) {
	n, err := t.Get(key)
	if err != nil {
		return nil, err
	}
	e, ok := n.(*Element)
	if !ok {
		return nil, fmt.Errorf("children of %d: %w", key, ErrInvalidParent)
	}
	return e.Children(), nil
}

// TextOf returns the content of the Text node at key.
func (t *Tree) TextOf(key Key) (string, error) {
	n, err := t.Get(key)
	if err != nil {
		return "", err
	}
	txt, ok := n.(*Text)
	if !ok {
		return "", fmt.Errorf("text of %d: %w", key, ErrNotText)
	}
	return txt.Text(), nil
}

// InsertChild attaches the detached node at childKey as a child of
// parentKey at the given index.
func (t *Tree) InsertChild(parentKey Key, index int, childKey Key) error {
	child, ok := t.limbo[childKey]
	if !ok {
		if t.Has(childKey) {
			return fmt.Errorf("insert child %d: %w", childKey, ErrNodeAttached)
		}
		return fmt.Errorf("insert child %d: %w", childKey, ErrStaleKey)
	}
	return t.InsertNode(parentKey, index, child)
}

// InsertNode attaches a detached node (and its subtree) under
// parentKey at index, registering every subtree Key in the index.
func (t *Tree) InsertNode(parentKey Key, index int, child Node) error {
	parent, err := t.Get(parentKey)
	if err != nil {
		return fmt.Errorf("insert into %d: %w", parentKey, ErrInvalidParent)
	}
	elem, ok := parent.(*Element)
	if !ok {
		return fmt.Errorf("insert into %d: %w", parentKey, ErrInvalidParent)
	}
	if index < 0 || index > elem.ChildCount() {
		return fmt.Errorf("insert at %d of %d children: %w", index, elem.ChildCount(), ErrIndexOutOfRange)
	}
	if child.ParentKey() != Wildcard {
		return fmt.Errorf("insert child %d: %w", child.Key(), ErrNodeAttached)
	}
	elem.insertChildAt(index, child)
	t.registerSubtree(child)
	return nil
}

// RemoveChild detaches the subtree rooted at key from parentKey and
// returns it. With permanent set, all subtree Keys are retired; a
// non-permanent detach (used by moves) keeps them live in the side
// table.
func (t *Tree) RemoveChild(parentKey, key Key, permanent bool) (Node, error) {
	parent, err := t.Get(parentKey)
	if err != nil {
		return nil, fmt.Errorf("remove from %d: %w", parentKey, ErrInvalidParent)
	}
	elem, ok := parent.(*Element)
	if !ok {
		return nil, fmt.Errorf("remove from %d: %w", parentKey, ErrInvalidParent)
	}
	index := elem.IndexOf(key)
	if index < 0 {
		return nil, fmt.Errorf("remove %d from %d: %w", key, parentKey, ErrKeyNotFound)
	}
	return t.removeAt(elem, index, permanent), nil
}

// RemoveChildAt detaches and returns the child at index of parentKey.
func (t *Tree) RemoveChildAt(parentKey Key, index int, permanent bool) (Node, error) {
	parent, err := t.Get(parentKey)
	if err != nil {
		return nil, fmt.Errorf("remove from %d: %w", parentKey, ErrInvalidParent)
	}
	elem, ok := parent.(*Element)
	if !ok {
		return nil, fmt.Errorf("remove from %d: %w", parentKey, ErrInvalidParent)
	}
	if index < 0 || index >= elem.ChildCount() {
		return nil, fmt.Errorf("remove at %d of %d children: %w", index, elem.ChildCount(), ErrIndexOutOfRange)
	}
	return t.removeAt(elem, index, permanent), nil
}

func (t *Tree) removeAt(parent *Element, index int, permanent bool) Node {
	child := parent.removeChildAt(index)
	t.unregisterSubtree(child)
	if !permanent {
		t.limbo[child.Key()] = child
	}
	return child
}

// MutateText splices the Text node at key: deleteLen bytes at offset
// are replaced by insert.
func (t *Tree) MutateText(key Key, offset, deleteLen int, insert string) error {
	n, err := t.Get(key)
	if err != nil {
		return err
	}
	txt, ok := n.(*Text)
	if !ok {
		return fmt.Errorf("mutate %d: %w", key, ErrNotText)
	}
	if offset < 0 || deleteLen < 0 || offset+deleteLen > txt.Length() {
		return fmt.Errorf("splice [%d,%d) of %d bytes: %w", offset, offset+deleteLen, txt.Length(), ErrOffsetOutOfRange)
	}
	txt.splice(offset, deleteLen, insert)
	return nil
}

// SetAttribute sets (present) or removes (!present) an attribute of
// the Element at key.
func (t *Tree) SetAttribute(key Key, name, value string, present bool) error {
	n, err := t.Get(key)
	if err != nil {
		return err
	}
	elem, ok := n.(*Element)
	if !ok {
		return fmt.Errorf("set attribute on %d: %w", key, ErrInvalidParent)
	}
	elem.setAttr(name, value, present)
	return nil
}

// MoveNode detaches the node at key and reattaches it under
// newParentKey at newIndex. The index is interpreted against the tree
// after the detach. Keys stay live across the move.
func (t *Tree) MoveNode(key, newParentKey Key, newIndex int) error {
	n, err := t.Get(key)
	if err != nil {
		return err
	}
	if n.ParentKey() == Wildcard {
		return fmt.Errorf("move root %d: %w", key, ErrInvalidParent)
	}
	dest, err := t.Get(newParentKey)
	if err != nil {
		return fmt.Errorf("move into %d: %w", newParentKey, ErrInvalidParent)
	}
	destElem, ok := dest.(*Element)
	if !ok {
		return fmt.Errorf("move into %d: %w", newParentKey, ErrInvalidParent)
	}
	// Reject moving a node into its own subtree.
	for walk := newParentKey; walk != Wildcard; {
		if walk == key {
			return fmt.Errorf("move %d into %d: %w", key, newParentKey, ErrCycle)
		}
		p := t.index[walk]
		if p == nil {
			break
		}
		walk = p.ParentKey()
	}

	oldParent := t.index[n.ParentKey()].(*Element)
	oldIndex := oldParent.IndexOf(key)

	// Bounds check against the post-detach child count.
	count := destElem.ChildCount()
	if destElem == oldParent {
		count--
	}
	if newIndex < 0 || newIndex > count {
		return fmt.Errorf("move to %d of %d children: %w", newIndex, count, ErrIndexOutOfRange)
	}

	child := t.removeAt(oldParent, oldIndex, false)
	destElem.insertChildAt(newIndex, child)
	t.registerSubtree(child)
	return nil
}

// ComparePositions orders two (Key, offset) positions in document
// order: -1 if a precedes b, 0 if equal, 1 if a follows b.
func (t *Tree) ComparePositions(aKey Key, aOffset int, bKey Key, bOffset int) (int, error) {
	if aKey == bKey {
		if _, err := t.Get(aKey); err != nil {
			return 0, err
		}
		switch {
		case aOffset < bOffset:
			return -1, nil
		case aOffset > bOffset:
			return 1, nil
		default:
			return 0, nil
		}
	}
	aPath, err := t.pathTo(aKey)
	if err != nil {
		return 0, err
	}
	bPath, err := t.pathTo(bKey)
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(aPath) && i < len(bPath); i++ {
		if aPath[i] != bPath[i] {
			if aPath[i] < bPath[i] {
				return -1, nil
			}
			return 1, nil
		}
	}
	// One node is an ancestor of the other; order the ancestor by the
	// offset relative to the child path it contains.
	if len(aPath) < len(bPath) {
		if aOffset <= bPath[len(aPath)] {
			return -1, nil
		}
		return 1, nil
	}
	if bOffset <= aPath[len(bPath)] {
		return 1, nil
	}
	return -1, nil
}

// pathTo returns the child-index path from the root to key.
func (t *Tree) pathTo(key Key) ([]int, error) {
	n, err := t.Get(key)
	if err != nil {
		return nil, err
	}
	var path []int
	for n.ParentKey() != Wildcard {
		parent := t.index[n.ParentKey()].(*Element)
		path = append(path, parent.IndexOf(n.Key()))
		n = parent
	}
	// Reverse into root-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Walk visits every attached node in document order, parent before
// children. The walk stops if fn returns false.
func (t *Tree) Walk(fn func(Node) bool) {
	t.walk(t.root, fn)
}

func (t *Tree) walk(n Node, fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	if e, ok := n.(*Element); ok {
		for _, c := range e.children {
			if !t.walk(c, fn) {
				return false
			}
		}
	}
	return true
}

// Ancestors returns the chain of ancestor nodes of key, nearest first,
// ending at the root. The node itself is not included.
func (t *Tree) Ancestors(key Key) []Node {
	n, ok := t.index[key]
	if !ok {
		return nil
	}
	var chain []Node
	for n.ParentKey() != Wildcard {
		p := t.index[n.ParentKey()]
		if p == nil {
			break
		}
		chain = append(chain, p)
		n = p
	}
	return chain
}

// Validate checks the index/hierarchy consistency invariant: the set
// of Keys reachable from the root equals the set of indexed Keys.
func (t *Tree) Validate() error {
	seen := make(map[Key]bool, len(t.index))
	var bad error
	t.Walk(func(n Node) bool {
		if seen[n.Key()] {
			bad = fmt.Errorf("key %d reachable twice", n.Key())
			return false
		}
		seen[n.Key()] = true
		if _, ok := t.index[n.Key()]; !ok {
			bad = fmt.Errorf("reachable key %d missing from index", n.Key())
			return false
		}
		return true
	})
	if bad != nil {
		return bad
	}
	if len(seen) != len(t.index) {
		for k := range t.index {
			if !seen[k] {
				return fmt.Errorf("indexed key %d not reachable from root", k)
			}
		}
	}
	return nil
}

// NodeCount returns the number of attached nodes, root included.
func (t *Tree) NodeCount() int { return len(t.index) }

// registerSubtree adds every node of the subtree to the index.
// Subtree members built under a detached root are still in the side
// table and leave it here.
func (t *Tree) registerSubtree(n Node) {
	t.index[n.Key()] = n
	delete(t.limbo, n.Key())
	if e, ok := n.(*Element); ok {
		for _, c := range e.children {
			t.registerSubtree(c)
		}
	}
}

// unregisterSubtree removes every node of the subtree from the index.
func (t *Tree) unregisterSubtree(n Node) {
	delete(t.index, n.Key())
	if e, ok := n.(*Element); ok {
		for _, c := range e.children {
			t.unregisterSubtree(c)
		}
	}
}
