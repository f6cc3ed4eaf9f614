// Package history maintains the undo/redo stacks over change
// transactions. Each entry is a complete operation batch; undoing a
// transaction means applying its inverse batch, so the history never
// needs to consult the tree.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/inkwell/internal/engine/op"
)

// Errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Transaction is one committed change batch.
type Transaction struct {
	ID        string
	Ops       op.List
	Timestamp time.Time
}

// NewTransaction creates a transaction around an op batch.
func NewTransaction(ops op.List) *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		Ops:       ops,
		Timestamp: time.Now(),
	}
}

// History manages undo/redo stacks for one document.
type History struct {
	mu         sync.Mutex
	undoStack  []*Transaction
	redoStack  []*Transaction
	maxEntries int
}

// DefaultMaxEntries bounds the undo stack when no limit is given.
const DefaultMaxEntries = 1000

// New creates a history with the given depth limit.
func New(maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &History{maxEntries: maxEntries}
}

// Push records a committed transaction and clears the redo stack.
func (h *History) Push(txn *Transaction) {
	if txn == nil || len(txn.Ops) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undoStack = append(h.undoStack, txn)
	h.redoStack = nil

	if len(h.undoStack) > h.maxEntries {
		excess := len(h.undoStack) - h.maxEntries
		h.undoStack = h.undoStack[excess:]
	}
}

// Undo pops the most recent transaction and returns the inverse batch
// to apply. The transaction moves to the redo stack.
func (h *History) Undo() (op.List, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return nil, ErrNothingToUndo
	}
	txn := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = append(h.redoStack, txn)
	return txn.Ops.Invert(), nil
}

// Redo pops the most recently undone transaction and returns its
// original batch to reapply.
func (h *History) Redo() (op.List, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redoStack) == 0 {
		return nil, ErrNothingToRedo
	}
	txn := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = append(h.undoStack, txn)
	return txn.Ops, nil
}

// CanUndo reports whether the undo stack is non-empty.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undoStack = nil
	h.redoStack = nil
}

// Depth returns the current undo depth.
func (h *History) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}
