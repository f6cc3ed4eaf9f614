// Package docjson serializes document trees to and from a JSON
// interchange form. Elements carry "type", an optional "attributes"
// object, and a "children" array; text nodes are objects with a
// single "text" field. Keys are runtime identity and never appear in
// the interchange form.
package docjson

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Errors returned by Parse.
var (
	// ErrInvalidJSON is returned for input that is not a JSON object.
	ErrInvalidJSON = errors.New("document is not a JSON object")

	// ErrBadNode is returned for a node record with neither a type
	// nor a text field.
	ErrBadNode = errors.New("node record has neither type nor text")
)

// Marshal renders the tree as interchange JSON, starting at the root.
func Marshal(t *node.Tree) ([]byte, error) {
	s, err := marshalNode(t.Root())
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func marshalNode(n node.Node) (string, error) {
	switch v := n.(type) {
	case *node.Text:
		return sjson.Set("{}", "text", v.Text())
	case *node.Element:
		return marshalElement(v)
	default:
		return "", fmt.Errorf("unknown node kind %T", n)
	}
}

func marshalElement(elem *node.Element) (string, error) {
	s, err := sjson.Set("{}", "type", elem.Type())
	if err != nil {
		return "", err
	}
	if attrs := elem.Attrs(); len(attrs) > 0 {
		if s, err = sjson.Set(s, "attributes", attrs); err != nil {
			return "", err
		}
	}
	s, err = sjson.SetRaw(s, "children", "[]")
	if err != nil {
		return "", err
	}
	for _, c := range elem.Children() {
		child, err := marshalNode(c)
		if err != nil {
			return "", err
		}
		if s, err = sjson.SetRaw(s, "children.-1", child); err != nil {
			return "", err
		}
	}
	return s, nil
}

// Parse builds a tree from interchange JSON. The top-level record
// becomes the root element; each node receives a fresh Key.
func Parse(data []byte) (*node.Tree, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrInvalidJSON
	}

	t := node.NewTree()

	rootType := doc.Get("type").String()
	if rootType == "" && !doc.Get("text").Exists() {
		rootType = t.Root().Type()
	}
	if rootType != t.Root().Type() {
		// The root's type is fixed at tree creation; a top-level text
		// record or an element of any other type wraps as the sole
		// child of a fresh root.
		child, err := parseNode(t, doc)
		if err != nil {
			return nil, err
		}
		if err := t.InsertNode(t.Root().Key(), 0, child); err != nil {
			return nil, err
		}
		return t, nil
	}

	if err := parseInto(t, t.Root(), doc); err != nil {
		return nil, err
	}
	return t, nil
}

func parseNode(t *node.Tree, rec gjson.Result) (node.Node, error) {
	if text := rec.Get("text"); text.Exists() {
		return t.CreateText(text.String()), nil
	}
	elemType := rec.Get("type").String()
	if elemType == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadNode, rec.Raw)
	}

	var attrs map[string]string
	if a := rec.Get("attributes"); a.IsObject() {
		attrs = make(map[string]string)
		a.ForEach(func(key, value gjson.Result) bool {
			attrs[key.String()] = value.String()
			return true
		})
	}

	elem := t.CreateElement(elemType, attrs)
	if err := parseInto(t, elem, rec); err != nil {
		return nil, err
	}
	return elem, nil
}

// parseInto parses rec's attributes and children onto an existing
// element. Children of a detached element attach directly; the whole
// subtree registers when the element is inserted.
func parseInto(t *node.Tree, elem *node.Element, rec gjson.Result) error {
	if a := rec.Get("attributes"); a.IsObject() && elem == t.Root() {
		var ferr error
		a.ForEach(func(key, value gjson.Result) bool {
			if err := t.SetAttribute(elem.Key(), key.String(), value.String(), true); err != nil {
				ferr = err
				return false
			}
			return true
		})
		if ferr != nil {
			return ferr
		}
	}

	var ferr error
	rec.Get("children").ForEach(func(_, childRec gjson.Result) bool {
		child, err := parseNode(t, childRec)
		if err != nil {
			ferr = err
			return false
		}
		if elem == t.Root() {
			err = t.InsertNode(elem.Key(), elem.ChildCount(), child)
		} else {
			err = elem.Append(child)
		}
		if err != nil {
			ferr = err
			return false
		}
		return true
	})
	return ferr
}
