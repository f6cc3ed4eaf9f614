package render

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/inkwell/internal/engine/composition"
	"github.com/dshills/inkwell/internal/engine/node"
)

// Renderer walks a tree bottom-up and produces markup from a frozen
// plugin snapshot.
type Renderer struct {
	plugins Snapshot
	log     zerolog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Renderer) { r.log = log }
}

// NewRenderer creates a renderer over a plugin snapshot.
func NewRenderer(plugins Snapshot, opts ...Option) *Renderer {
	r := &Renderer{
		plugins: plugins,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderTree renders the whole document from its root.
func (r *Renderer) RenderTree(t *node.Tree) string {
	return r.RenderNode(t.Root())
}

// RenderNode renders a single node and its subtree. Text nodes render
// as escaped content. An element whose type has no plugin in the
// snapshot contributes nothing to the output; the failure is logged
// per type, not propagated, so a partial plugin set still renders the
// rest of the document.
func (r *Renderer) RenderNode(n node.Node) string {
	switch v := n.(type) {
	case *node.Text:
		return EscapeText(v.Text())
	case *node.Element:
		return r.renderElement(v)
	default:
		return ""
	}
}

func (r *Renderer) renderElement(elem *node.Element) string {
	plugin, ok := r.plugins.Lookup(elem.Type())
	if !ok {
		r.log.Warn().
			Str("type", elem.Type()).
			Uint64("key", uint64(elem.Key())).
			Msg("no render plugin for element type")
		return ""
	}

	children := make([]string, 0, elem.ChildCount())
	for _, c := range elem.Children() {
		children = append(children, r.RenderNode(c))
	}

	out, err := plugin.Render(elem, children)
	if err != nil {
		r.log.Error().
			Err(err).
			Str("type", elem.Type()).
			Uint64("key", uint64(elem.Key())).
			Msg("render plugin failed")
		return ""
	}
	return out
}

// RenderSegments renders a composition overlay for a text node: plain
// segments escape as text, composition segments wrap in a marker so a
// consumer can style the in-progress run.
func RenderSegments(segments []composition.Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		text := EscapeText(s.Text)
		if s.Type == composition.SegmentComposition {
			sb.WriteString(`<span class="composition">`)
			sb.WriteString(text)
			sb.WriteString("</span>")
		} else {
			sb.WriteString(text)
		}
	}
	return sb.String()
}
