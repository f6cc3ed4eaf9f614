// Package change translates high-level editing intents into operation
// batches and applies them transactionally. It is the only component
// that feeds operations to the tree: every mutation funnels through
// Commit, which validates, applies, notifies subscribers and remaps
// the selection before returning.
package change

import (
	"errors"
	"fmt"

	"github.com/dshills/inkwell/internal/engine/history"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/event"
)

// Errors returned by pipeline operations.
var (
	// ErrNoSelection is returned when a mutating intent arrives with
	// no selection set.
	ErrNoSelection = errors.New("no selection")

	// ErrInvalidSelection is returned when the selection fails
	// validation against the current tree.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrEmptyFormatTag is returned when queued formatting carries no
	// element type.
	ErrEmptyFormatTag = errors.New("format tag is empty")
)

// PendingFormat is formatting queued for the next text insertion.
type PendingFormat struct {
	Tag   string
	Attrs map[string]string
}

// Pipeline applies editing intents to one document.
type Pipeline struct {
	tree    *node.Tree
	sel     *selection.Model
	events  *event.Registry
	hist    *history.History
	pending *PendingFormat
}

// NewPipeline wires a pipeline to its document, selection model,
// update registry and history.
func NewPipeline(tree *node.Tree, sel *selection.Model, events *event.Registry, hist *history.History) *Pipeline {
	return &Pipeline{
		tree:   tree,
		sel:    sel,
		events: events,
		hist:   hist,
	}
}

// Tree returns the pipeline's document tree.
func (p *Pipeline) Tree() *node.Tree { return p.tree }

// Selection returns the pipeline's selection model.
func (p *Pipeline) Selection() *selection.Model { return p.sel }

// GetRange returns a snapshot of the current selection.
func (p *Pipeline) GetRange() (selection.Selection, bool) {
	return p.sel.Get()
}

// FormatText queues formatting to be applied to the next inserted
// text. The cache is consumed and cleared by the next InsertText.
func (p *Pipeline) FormatText(tag string, attrs map[string]string) {
	p.pending = &PendingFormat{Tag: tag, Attrs: attrs}
}

// HasPendingFormatting reports whether formatting is queued for the
// next insertion.
func (p *Pipeline) HasPendingFormatting() bool {
	return p.pending != nil
}

// InsertText deletes a non-collapsed selection, consumes any cached
// formatting, inserts text at the collapsed caret and advances the
// selection past the inserted text. The whole intent commits as one
// transaction.
func (p *Pipeline) InsertText(text string) error {
	sel, ok := p.sel.Get()
	if !ok {
		return ErrNoSelection
	}
	if err := p.sel.Validate(p.tree); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}

	// A failed intent must leave no trace, including the collapse the
	// delete phase performs on the selection.
	prior := sel
	var applied op.List

	if !sel.IsCollapsed() {
		delOps, start, err := p.planDelete()
		if err != nil {
			return err
		}
		if err := p.applyOrRollback(delOps, applied); err != nil {
			return err
		}
		applied = append(applied, delOps...)
		p.sel.SetCollapsed(start)
	}

	caret, _ := p.sel.Get()
	pos := caret.Anchor

	insOps, after, err := p.planInsert(pos, text)
	if err != nil {
		p.rollback(applied)
		p.sel.Set(prior.Anchor, prior.Focus)
		return err
	}
	if err := p.applyOrRollback(insOps, applied); err != nil {
		p.sel.Set(prior.Anchor, prior.Focus)
		return err
	}
	applied = append(applied, insOps...)
	p.pending = nil

	p.commit(applied)
	p.sel.SetCollapsed(after)
	return nil
}

// DeleteContents erases everything between anchor and focus and
// collapses the selection to the range start.
func (p *Pipeline) DeleteContents() error {
	sel, ok := p.sel.Get()
	if !ok {
		return ErrNoSelection
	}
	if err := p.sel.Validate(p.tree); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	if sel.IsCollapsed() {
		return nil
	}

	ops, start, err := p.planDelete()
	if err != nil {
		return err
	}
	if err := op.ApplyAll(p.tree, ops); err != nil {
		return err
	}
	p.commit(ops)
	p.sel.SetCollapsed(start)
	return nil
}

// SetAttribute commits an attribute change as its own transaction.
func (p *Pipeline) SetAttribute(key node.Key, name, value string, present bool) error {
	n, err := p.tree.Get(key)
	if err != nil {
		return err
	}
	elem, ok := n.(*node.Element)
	if !ok {
		return fmt.Errorf("set attribute on %d: %w", key, node.ErrInvalidParent)
	}
	old, oldPresent := elem.Attr(name)

	ops := op.List{op.NewSetAttribute(key, name, old, oldPresent, value, present)}
	if err := op.ApplyAll(p.tree, ops); err != nil {
		return err
	}
	p.commit(ops)
	p.remapSelection(ops)
	return nil
}

// MoveNode commits a reparenting as its own transaction.
func (p *Pipeline) MoveNode(key, newParent node.Key, newIndex int) error {
	parent, err := p.tree.Parent(key)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("move %d: %w", key, node.ErrInvalidParent)
	}
	elem := parent.(*node.Element)

	ops := op.List{op.NewMoveNode(key, parent.Key(), elem.IndexOf(key), newParent, newIndex)}
	if err := op.ApplyAll(p.tree, ops); err != nil {
		return err
	}
	p.commit(ops)
	p.remapSelection(ops)
	return nil
}

// Apply commits an externally built batch as one transaction. The
// batch is validated op by op; a mid-batch failure rolls the whole
// batch back.
func (p *Pipeline) Apply(ops op.List) error {
	if len(ops) == 0 {
		return nil
	}
	if err := op.ApplyAll(p.tree, ops); err != nil {
		return err
	}
	p.commit(ops)
	p.remapSelection(ops)
	return nil
}

// Undo reverses the most recent transaction.
func (p *Pipeline) Undo() error {
	inverse, err := p.hist.Undo()
	if err != nil {
		return err
	}
	if err := op.ApplyAll(p.tree, inverse); err != nil {
		return err
	}
	p.notify(inverse)
	p.remapSelection(inverse)
	return nil
}

// Redo reapplies the most recently undone transaction.
func (p *Pipeline) Redo() error {
	ops, err := p.hist.Redo()
	if err != nil {
		return err
	}
	if err := op.ApplyAll(p.tree, ops); err != nil {
		return err
	}
	p.notify(ops)
	p.remapSelection(ops)
	return nil
}

// commit finalizes a successfully applied batch: history entry, then
// synchronous bottom-up update notifications.
func (p *Pipeline) commit(ops op.List) {
	if len(ops) == 0 {
		return
	}
	if p.hist != nil {
		p.hist.Push(history.NewTransaction(ops))
	}
	p.notify(ops)
}

// notify emits one update per affected node, bottom-up: the node
// itself, then each ancestor toward the root, deduplicated across the
// batch so shared ancestors notify once.
func (p *Pipeline) notify(ops op.List) {
	if p.events == nil {
		return
	}
	seen := make(map[node.Key]bool)
	var order []node.Node
	for _, key := range ops.Keys() {
		n, err := p.tree.Get(key)
		if err != nil {
			// Removed nodes no longer notify; their parent does.
			continue
		}
		if !seen[key] {
			seen[key] = true
			order = append(order, n)
		}
		for _, anc := range p.tree.Ancestors(key) {
			if !seen[anc.Key()] {
				seen[anc.Key()] = true
				order = append(order, anc)
			}
		}
	}
	for _, n := range order {
		p.events.EmitUpdate(n, ops)
	}
}

func (p *Pipeline) remapSelection(ops op.List) {
	p.sel.Remap(p.tree, ops)
}

// applyOrRollback applies a batch; on failure it also rolls back the
// previously applied batches of the same intent.
func (p *Pipeline) applyOrRollback(ops, prior op.List) error {
	if err := op.ApplyAll(p.tree, ops); err != nil {
		p.rollback(prior)
		return err
	}
	return nil
}

// rollback undoes already applied batches of a failed intent.
func (p *Pipeline) rollback(applied op.List) {
	if len(applied) == 0 {
		return
	}
	inv := applied.Invert()
	_ = op.ApplyAll(p.tree, inv)
}
