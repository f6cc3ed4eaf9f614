// Package render turns a document tree into markup through a
// registry of per-type plugins. Each element type is handled by one
// plugin; text nodes render as escaped text without a plugin. A node
// whose type has no enabled plugin renders as the empty string and
// emits a diagnostic, so an incomplete registry degrades output but
// never fails a render.
package render
