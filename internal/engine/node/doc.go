// Package node implements the keyed document tree at the core of the
// engine. A Tree owns a single rooted hierarchy of Element and Text
// nodes, each identified by a process-unique Key that is never reused
// once the node is destroyed.
//
// The Tree maintains a Key index alongside the hierarchy so every
// attached node is reachable in O(1). The index and the hierarchy are
// kept consistent as an invariant: every node reachable from the root
// is indexed, and every indexed Key resolves to a reachable node.
//
// Nodes are created detached, then attached with InsertChild:
//
//	t := node.NewTree()
//	p := t.CreateElement("paragraph", nil)
//	txt := t.CreateText("hello")
//	p.Append(txt)
//	t.InsertChild(t.Root().Key(), 0, p.Key())
//
// Components outside this package hold Keys, never node pointers, so a
// structural mutation can never leave them with a dangling reference —
// only a Key that may have gone stale and needs revalidation.
package node
