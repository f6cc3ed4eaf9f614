package node

import "sync/atomic"

// Key uniquely identifies a node for the lifetime of the process.
// Keys are allocated from a monotonic counter and never reused, so a
// retired Key can never silently resolve to an unrelated node.
type Key uint64

// Wildcard is the sentinel Key used by subscription surfaces to mean
// "every node". It is never allocated to a real node.
const Wildcard Key = 0

// keyCounter backs NewKey. The zero value is reserved for Wildcard.
var keyCounter uint64

// NewKey allocates a fresh, process-unique Key.
func NewKey() Key {
	return Key(atomic.AddUint64(&keyCounter, 1))
}

// IsValid returns true if k could have been allocated by NewKey.
func (k Key) IsValid() bool {
	return k != Wildcard && uint64(k) <= atomic.LoadUint64(&keyCounter)
}
