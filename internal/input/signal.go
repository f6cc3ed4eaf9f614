// Package input defines the vocabulary of raw input signals the
// editor consumes. Signals are produced at the selection boundary by
// an outer input source (a DOM adapter, a test harness) and carry no
// editing semantics of their own; the editor decides what each one
// means.
package input

// SignalKind identifies a raw input signal.
type SignalKind uint8

const (
	// KeyDown reports a key being pressed.
	KeyDown SignalKind = iota
	// KeyUp reports a key being released.
	KeyUp
	// ValueChange reports committed plain-text input.
	ValueChange
	// CompositionStart reports the beginning of an IME composition.
	CompositionStart
	// CompositionUpdate reports in-progress IME composition text.
	CompositionUpdate
	// CompositionEnd reports the end of an IME composition, carrying
	// the committed text (possibly empty for a cancelled composition).
	CompositionEnd
)

// String returns the string representation of the kind.
func (k SignalKind) String() string {
	switch k {
	case KeyDown:
		return "keydown"
	case KeyUp:
		return "keyup"
	case ValueChange:
		return "valuechange"
	case CompositionStart:
		return "compositionstart"
	case CompositionUpdate:
		return "compositionupdate"
	case CompositionEnd:
		return "compositionend"
	default:
		return "unknown"
	}
}

// Signal is one discrete input event. Text carries the payload for
// ValueChange, CompositionUpdate and CompositionEnd; Name carries the
// key name for KeyDown/KeyUp.
type Signal struct {
	Kind SignalKind
	Text string
	Name string
}

// Key builds a KeyDown signal.
func Key(name string) Signal {
	return Signal{Kind: KeyDown, Name: name}
}

// TextInput builds a ValueChange signal.
func TextInput(text string) Signal {
	return Signal{Kind: ValueChange, Text: text}
}

// Composition builds a composition signal of the given kind.
func Composition(kind SignalKind, text string) Signal {
	return Signal{Kind: kind, Text: text}
}
