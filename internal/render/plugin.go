package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Plugin renders one element type. Children arrive already rendered
// in document order; the plugin decides how to wrap or combine them.
type Plugin interface {
	// Type is the element type this plugin handles.
	Type() string

	// Render produces markup for elem given its rendered children.
	Render(elem *node.Element, children []string) (string, error)
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc struct {
	ElementType string
	Fn          func(elem *node.Element, children []string) (string, error)
}

func (p PluginFunc) Type() string { return p.ElementType }

func (p PluginFunc) Render(elem *node.Element, children []string) (string, error) {
	return p.Fn(elem, children)
}

// TagPlugin renders an element type as an HTML-style tag with the
// element's attributes serialized in sorted order.
type TagPlugin struct {
	ElementType string
	Tag         string
}

func (p TagPlugin) Type() string { return p.ElementType }

func (p TagPlugin) Render(elem *node.Element, children []string) (string, error) {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(p.Tag)
	for _, name := range sortedAttrNames(elem) {
		value, _ := elem.Attr(name)
		fmt.Fprintf(&sb, " %s=%q", name, EscapeText(value))
	}
	sb.WriteByte('>')
	for _, c := range children {
		sb.WriteString(c)
	}
	sb.WriteString("</")
	sb.WriteString(p.Tag)
	sb.WriteByte('>')
	return sb.String(), nil
}

func sortedAttrNames(elem *node.Element) []string {
	attrs := elem.Attrs()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EscapeText escapes markup-significant characters in text content.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
)

// Builtins returns the stock plugin set for the default document
// schema.
func Builtins() []Plugin {
	return []Plugin{
		TagPlugin{ElementType: "root", Tag: "div"},
		TagPlugin{ElementType: "paragraph", Tag: "p"},
		TagPlugin{ElementType: "heading", Tag: "h1"},
		TagPlugin{ElementType: "bold", Tag: "strong"},
		TagPlugin{ElementType: "italic", Tag: "em"},
		TagPlugin{ElementType: "link", Tag: "a"},
	}
}
