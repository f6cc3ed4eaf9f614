package change

import (
	"fmt"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
	"github.com/dshills/inkwell/internal/engine/selection"
)

// planInsert builds the op batch for inserting text at pos, consuming
// any cached formatting. It returns the batch and the caret position
// after the insertion.
func (p *Pipeline) planInsert(pos selection.Position, text string) (op.List, selection.Position, error) {
	n, err := p.tree.Get(pos.Key)
	if err != nil {
		return nil, pos, err
	}

	if p.pending != nil {
		return p.planFormattedInsert(pos, n, text)
	}

	if text == "" {
		return nil, pos, nil
	}

	switch target := n.(type) {
	case *node.Text:
		ops := op.List{op.NewInsertText(pos.Key, pos.Offset, text)}
		return ops, selection.Position{Key: pos.Key, Offset: pos.Offset + len(text)}, nil

	case *node.Element:
		// Caret on an element boundary: materialize a text node there.
		fresh := node.NewText(text)
		ops := op.List{op.NewInsertNode(target.Key(), pos.Offset, fresh)}
		return ops, selection.Position{Key: fresh.Key(), Offset: len(text)}, nil

	default:
		return nil, pos, fmt.Errorf("insert at %v: %w", pos, node.ErrKeyNotFound)
	}
}

// planFormattedInsert consumes the pending format cache: the target
// text node is split at the caret and a new formatted element wrapping
// the inserted text goes between the halves. The caret lands inside
// the formatted element, so subsequent input (including composition
// text) inherits the new format boundary.
func (p *Pipeline) planFormattedInsert(pos selection.Position, n node.Node, text string) (op.List, selection.Position, error) {
	if p.pending.Tag == "" {
		return nil, pos, ErrEmptyFormatTag
	}
	formatted := node.NewElement(p.pending.Tag, p.pending.Attrs)
	inner := node.NewText(text)
	if err := formatted.Append(inner); err != nil {
		return nil, pos, err
	}
	after := selection.Position{Key: inner.Key(), Offset: len(text)}

	switch target := n.(type) {
	case *node.Text:
		parent, err := p.tree.Parent(pos.Key)
		if err != nil || parent == nil {
			return nil, pos, fmt.Errorf("format at detached %d: %w", pos.Key, node.ErrInvalidParent)
		}
		elem := parent.(*node.Element)
		idx := elem.IndexOf(pos.Key)

		tail := target.Text()[pos.Offset:]
		var ops op.List
		if tail != "" {
			ops = append(ops, op.NewDeleteText(pos.Key, pos.Offset, tail))
		}
		ops = append(ops, op.NewInsertNode(elem.Key(), idx+1, formatted))
		if tail != "" {
			ops = append(ops, op.NewInsertNode(elem.Key(), idx+2, node.NewText(tail)))
		}
		return ops, after, nil

	case *node.Element:
		ops := op.List{op.NewInsertNode(target.Key(), pos.Offset, formatted)}
		return ops, after, nil

	default:
		return nil, pos, fmt.Errorf("format at %v: %w", pos, node.ErrKeyNotFound)
	}
}

// planDelete computes the minimal batch erasing everything between
// the normalized selection endpoints: a tail trim on the start node, a
// head trim on the end node, and whole-subtree removals for nodes
// fully inside the range. Removals are ordered in reverse document
// order so recorded child indices stay valid as the batch applies.
func (p *Pipeline) planDelete() (op.List, selection.Position, error) {
	start, end, ok := p.sel.Normalized(p.tree)
	if !ok {
		return nil, selection.Position{}, ErrNoSelection
	}
	if start == end {
		return nil, start, nil
	}

	// Whole range inside one node.
	if start.Key == end.Key {
		n, err := p.tree.Get(start.Key)
		if err != nil {
			return nil, start, err
		}
		switch target := n.(type) {
		case *node.Text:
			deleted := target.Text()[start.Offset:end.Offset]
			return op.List{op.NewDeleteText(start.Key, start.Offset, deleted)}, start, nil
		case *node.Element:
			var ops op.List
			for i := end.Offset - 1; i >= start.Offset; i-- {
				child := target.ChildAt(i)
				ops = append(ops, op.NewRemoveNode(start.Key, i, child.Key()))
			}
			return ops, start, nil
		}
	}

	var ops op.List

	// Trim the tail of a text start node.
	if txt, err := p.textNode(start.Key); err == nil && txt != nil {
		tail := txt.Text()[start.Offset:]
		if tail != "" {
			ops = append(ops, op.NewDeleteText(start.Key, start.Offset, tail))
		}
	}

	removals, err := p.collectRemovals(start, end)
	if err != nil {
		return nil, start, err
	}
	for i := len(removals) - 1; i >= 0; i-- {
		ops = append(ops, removals[i])
	}

	// Trim the head of a text end node.
	if txt, err := p.textNode(end.Key); err == nil && txt != nil {
		head := txt.Text()[:end.Offset]
		if head != "" {
			ops = append(ops, op.NewDeleteText(end.Key, 0, head))
		}
	}

	return ops, start, nil
}

// textNode resolves key as a Text node, returning nil for elements.
func (p *Pipeline) textNode(key node.Key) (*node.Text, error) {
	n, err := p.tree.Get(key)
	if err != nil {
		return nil, err
	}
	txt, _ := n.(*node.Text)
	return txt, nil
}

// collectRemovals returns remove-node ops, in document order, for the
// top-level nodes lying entirely between start and end. Subtrees of a
// removed node are covered by their root's removal; ancestors of
// either endpoint are never fully inside the range, so endpoint nodes
// are always trimmed rather than removed.
func (p *Pipeline) collectRemovals(start, end selection.Position) (op.List, error) {
	var removals op.List
	var walkErr error

	var walk func(e *node.Element)
	walk = func(e *node.Element) {
		for idx, child := range e.Children() {
			if walkErr != nil {
				return
			}
			afterStart, err := p.tree.ComparePositions(e.Key(), idx, start.Key, start.Offset)
			if err != nil {
				walkErr = err
				return
			}
			beforeEnd, err := p.tree.ComparePositions(e.Key(), idx+1, end.Key, end.Offset)
			if err != nil {
				walkErr = err
				return
			}
			if afterStart >= 0 && beforeEnd <= 0 {
				removals = append(removals, op.NewRemoveNode(e.Key(), idx, child.Key()))
				continue
			}
			if inner, ok := child.(*node.Element); ok {
				walk(inner)
			}
		}
	}
	walk(p.tree.Root())

	if walkErr != nil {
		return nil, walkErr
	}
	return removals, nil
}
