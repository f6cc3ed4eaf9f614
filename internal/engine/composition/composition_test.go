package composition

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/inkwell/internal/engine/node"
)

func TestLifecycle(t *testing.T) {
	b := NewBuffer()
	if b.State() != Idle {
		t.Fatalf("new buffer state = %d, want Idle", b.State())
	}

	key := node.NewKey()
	if err := b.Start(key, "caf", 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !b.IsComposing() {
		t.Fatal("buffer not composing after Start")
	}
	if got := b.ComposingKey(); got != key {
		t.Fatalf("ComposingKey = %d, want %d", got, key)
	}

	if err := b.Start(key, "caf", 3); !errors.Is(err, ErrAlreadyComposing) {
		t.Fatalf("second Start error = %v, want ErrAlreadyComposing", err)
	}

	if _, err := b.End("x"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if b.IsComposing() {
		t.Fatal("buffer still composing after End")
	}
	if got := b.ComposingKey(); got != node.Wildcard {
		t.Fatalf("idle ComposingKey = %d, want Wildcard", got)
	}
}

func TestUpdateRequiresComposition(t *testing.T) {
	b := NewBuffer()
	if err := b.Update("x"); !errors.Is(err, ErrNotComposing) {
		t.Fatalf("Update error = %v, want ErrNotComposing", err)
	}
	if _, err := b.End("x"); !errors.Is(err, ErrNotComposing) {
		t.Fatalf("End error = %v, want ErrNotComposing", err)
	}
	if err := b.Refresh("x"); !errors.Is(err, ErrNotComposing) {
		t.Fatalf("Refresh error = %v, want ErrNotComposing", err)
	}
}

func TestSegmentsSplitAroundCaret(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		offset   int
		composed string
		want     []Segment
	}{
		{
			name:     "caret at end",
			text:     "caf",
			offset:   3,
			composed: "é",
			want: []Segment{
				{Type: SegmentPlain, Text: "caf"},
				{Type: SegmentComposition, Text: "é"},
			},
		},
		{
			name:     "caret in middle",
			text:     "hello",
			offset:   2,
			composed: "XY",
			want: []Segment{
				{Type: SegmentPlain, Text: "he"},
				{Type: SegmentComposition, Text: "XY"},
				{Type: SegmentPlain, Text: "llo"},
			},
		},
		{
			name:     "caret at start",
			text:     "abc",
			offset:   0,
			composed: "q",
			want: []Segment{
				{Type: SegmentComposition, Text: "q"},
				{Type: SegmentPlain, Text: "abc"},
			},
		},
		{
			name:     "empty node",
			text:     "",
			offset:   0,
			composed: "ん",
			want: []Segment{
				{Type: SegmentComposition, Text: "ん"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			key := node.NewKey()
			var got []Segment
			b.OnUpdate(key, func(segments []Segment) { got = segments })

			if err := b.Start(key, tt.text, tt.offset); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if err := b.Update(tt.composed); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOffsetClampsToGraphemeBoundary(t *testing.T) {
	// "e" followed by a combining acute accent is a single grapheme
	// cluster of three bytes; an offset inside it rounds down.
	text := "éx"

	b := NewBuffer()
	key := node.NewKey()
	var got []Segment
	b.OnUpdate(key, func(segments []Segment) { got = segments })

	if err := b.Start(key, text, 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Update("a"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []Segment{
		{Type: SegmentComposition, Text: "a"},
		{Type: SegmentPlain, Text: text},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestLateSubscriberReplaysCachedSegments(t *testing.T) {
	b := NewBuffer()
	key := node.NewKey()

	if err := b.Start(key, "caf", 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Update("é"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var got []Segment
	calls := 0
	b.OnUpdate(key, func(segments []Segment) {
		got = segments
		calls++
	})

	if calls != 1 {
		t.Fatalf("replay calls = %d, want 1", calls)
	}
	want := []Segment{
		{Type: SegmentPlain, Text: "caf"},
		{Type: SegmentComposition, Text: "é"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("replayed segments mismatch (-want +got):\n%s", diff)
	}

	// The cache is consumed; registering again replays nothing.
	calls = 0
	b.OnUpdate(key, func([]Segment) { calls++ })
	if calls != 0 {
		t.Fatalf("second registration replayed %d times, want 0", calls)
	}
}

func TestEndNotifiesDiscardAndNormalizes(t *testing.T) {
	b := NewBuffer()
	key := node.NewKey()

	var last []Segment
	notified := false
	b.OnUpdate(key, func(segments []Segment) {
		last = segments
		notified = true
	})

	if err := b.Start(key, "caf", 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Update("é"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	notified = false
	committed, err := b.End("é")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if committed != "é" {
		t.Fatalf("committed = %q, want %q", committed, "é")
	}
	if !notified {
		t.Fatal("subscriber not notified on End")
	}
	if last != nil {
		t.Fatalf("End payload = %v, want nil", last)
	}
}

func TestCancelCommitsNothing(t *testing.T) {
	b := NewBuffer()
	key := node.NewKey()

	if err := b.Start(key, "abc", 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if b.IsComposing() {
		t.Fatal("buffer still composing after Cancel")
	}
}

func TestRefreshResegmentsAgainstNewText(t *testing.T) {
	b := NewBuffer()
	key := node.NewKey()

	var got []Segment
	b.OnUpdate(key, func(segments []Segment) { got = segments })

	if err := b.Start(key, "hello", 5); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Update("か"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The node shrank underneath the composition; the split clamps to
	// the new length and the last composed text is re-delivered.
	if err := b.Refresh("he"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	want := []Segment{
		{Type: SegmentPlain, Text: "he"},
		{Type: SegmentComposition, Text: "か"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestOffUpdateStopsDelivery(t *testing.T) {
	b := NewBuffer()
	key := node.NewKey()

	calls := 0
	b.OnUpdate(key, func([]Segment) { calls++ })
	b.OffUpdate(key)

	if err := b.Start(key, "abc", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := b.Update("x"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after OffUpdate", calls)
	}
}
