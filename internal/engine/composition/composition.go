// Package composition implements the IME composition buffer: a
// short-lived state machine that overlays the document while an input
// method assembles text. While composing, nothing is committed to the
// tree; the buffer renders the speculative text as segments delivered
// to per-node subscribers, and only composition end produces a real
// insert through the change pipeline.
package composition

import (
	"errors"
	"sync"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Errors returned by buffer transitions.
var (
	// ErrAlreadyComposing is returned when Start arrives while a
	// composition is active.
	ErrAlreadyComposing = errors.New("composition already in progress")

	// ErrNotComposing is returned when Update or End arrives with no
	// active composition.
	ErrNotComposing = errors.New("no composition in progress")
)

// SegmentType classifies a rendered segment.
type SegmentType string

const (
	// SegmentPlain is untouched document text.
	SegmentPlain SegmentType = ""
	// SegmentComposition is the in-progress composed text.
	SegmentComposition SegmentType = "composition"
)

// Segment is one chunk of the speculative rendering: the untouched
// prefix, the composing run, and the untouched suffix.
type Segment struct {
	Type SegmentType
	Text string
}

// UpdateFunc receives the current segmentation for a composing node.
// A nil slice is the absent payload: the subscriber must discard its
// speculative rendering because the composition ended.
type UpdateFunc func(segments []Segment)

// State is the buffer's lifecycle state.
type State uint8

const (
	// Idle means no composition is active.
	Idle State = iota
	// Composing means a composition overlays one Text node.
	Composing
)

// Buffer is the composition state machine for one editor.
type Buffer struct {
	mu sync.Mutex

	state    State
	key      node.Key
	original string
	offset   int
	composed string

	subs  map[node.Key]UpdateFunc
	cache map[node.Key][]Segment
}

// NewBuffer creates an idle composition buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		subs:  make(map[node.Key]UpdateFunc),
		cache: make(map[node.Key][]Segment),
	}
}

// State returns the current lifecycle state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsComposing reports whether a composition is active.
func (b *Buffer) IsComposing() bool {
	return b.State() == Composing
}

// ComposingKey returns the Key under composition, or node.Wildcard
// when idle.
func (b *Buffer) ComposingKey() node.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Composing {
		return node.Wildcard
	}
	return b.key
}

// Start begins a composition over the Text node at key. nodeText is
// the node's pre-composition content; offset is the caret position,
// clamped to a grapheme cluster boundary so the split never lands
// inside a user-perceived character.
func (b *Buffer) Start(key node.Key, nodeText string, offset int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Composing {
		return ErrAlreadyComposing
	}
	b.state = Composing
	b.key = key
	b.original = nodeText
	b.offset = clampToGrapheme(nodeText, offset)
	b.composed = ""
	return nil
}

// Update records the in-progress composed text and delivers the
// recomputed segmentation to the node's subscriber. Without a
// subscriber the segmentation is cached and replayed on the first
// OnUpdate call for that key.
func (b *Buffer) Update(composed string) error {
	b.mu.Lock()
	if b.state != Composing {
		b.mu.Unlock()
		return ErrNotComposing
	}
	b.composed = composed
	key := b.key
	segments := b.segmentsLocked()

	fn := b.subs[key]
	if fn == nil {
		b.cache[key] = segments
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	fn(segments)
	return nil
}

// Refresh re-synchronizes the buffer after the underlying node
// changed shape mid-composition (a concurrent formatting change, a
// remap). The segmentation is recomputed from the node's new text and
// the last known composed string.
func (b *Buffer) Refresh(nodeText string) error {
	b.mu.Lock()
	if b.state != Composing {
		b.mu.Unlock()
		return ErrNotComposing
	}
	b.original = nodeText
	b.offset = clampToGrapheme(nodeText, b.offset)
	composed := b.composed
	b.mu.Unlock()

	return b.Update(composed)
}

// End finishes the composition: the subscriber (if any) receives the
// absent payload so it discards its speculative rendering, the buffer
// returns to Idle, and the NFC-normalized committed text is returned
// for the caller to insert through the change pipeline. An empty
// committed string is a cancellation.
func (b *Buffer) End(committed string) (string, error) {
	b.mu.Lock()
	if b.state != Composing {
		b.mu.Unlock()
		return "", ErrNotComposing
	}
	key := b.key
	fn := b.subs[key]
	delete(b.cache, key)
	b.state = Idle
	b.key = node.Wildcard
	b.original = ""
	b.offset = 0
	b.composed = ""
	b.mu.Unlock()

	if fn != nil {
		fn(nil)
	}
	return norm.NFC.String(committed), nil
}

// Cancel abandons the composition without committing text.
func (b *Buffer) Cancel() error {
	_, err := b.End("")
	return err
}

// OnUpdate registers the segment subscriber for key. A segmentation
// cached before the subscriber existed is replayed immediately.
func (b *Buffer) OnUpdate(key node.Key, fn UpdateFunc) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs[key] = fn
	pending, ok := b.cache[key]
	if ok {
		delete(b.cache, key)
	}
	b.mu.Unlock()

	if ok {
		fn(pending)
	}
}

// OffUpdate removes the subscriber for key. This is the only removal
// path; there is no implicit eviction.
func (b *Buffer) OffUpdate(key node.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, key)
}

// Reset drops all subscriptions and returns the buffer to Idle
// without notifying anyone. Used by editor teardown.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Idle
	b.key = node.Wildcard
	b.original = ""
	b.offset = 0
	b.composed = ""
	b.subs = make(map[node.Key]UpdateFunc)
	b.cache = make(map[node.Key][]Segment)
}

// segmentsLocked computes the current three-part segmentation. The
// suffix segment is omitted when the split sits at the end of the
// buffer, and the prefix when it sits at the start.
func (b *Buffer) segmentsLocked() []Segment {
	var segments []Segment
	if prefix := b.original[:b.offset]; prefix != "" {
		segments = append(segments, Segment{Type: SegmentPlain, Text: prefix})
	}
	segments = append(segments, Segment{Type: SegmentComposition, Text: b.composed})
	if suffix := b.original[b.offset:]; suffix != "" {
		segments = append(segments, Segment{Type: SegmentPlain, Text: suffix})
	}
	return segments
}

// clampToGrapheme rounds offset down to the nearest grapheme cluster
// boundary of s.
func clampToGrapheme(s string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= len(s) {
		return len(s)
	}
	pos := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		next := pos + len(g.Str())
		if next > offset {
			return pos
		}
		pos = next
	}
	return pos
}
