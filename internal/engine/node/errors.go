package node

import "errors"

// Errors returned by tree operations.
var (
	// ErrKeyNotFound is returned when a Key was never allocated.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStaleKey is returned when a Key refers to a node that has been
	// destroyed. Stale keys are expected during selection remapping and
	// are never fatal.
	ErrStaleKey = errors.New("stale key")

	// ErrInvalidParent is returned when the target parent of a
	// structural operation is a Text node or does not exist.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrIndexOutOfRange is returned when a child index exceeds the
	// parent's child count.
	ErrIndexOutOfRange = errors.New("child index out of range")

	// ErrOffsetOutOfRange is returned when a text offset or span
	// exceeds the node's content length.
	ErrOffsetOutOfRange = errors.New("text offset out of range")

	// ErrNodeAttached is returned when attaching a node that already
	// has a parent.
	ErrNodeAttached = errors.New("node is already attached")

	// ErrNotText is returned when a text operation targets an Element.
	ErrNotText = errors.New("node is not a text node")

	// ErrCycle is returned when a move would make a node its own
	// ancestor.
	ErrCycle = errors.New("move would create a cycle")
)
