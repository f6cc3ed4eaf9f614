package docjson

import (
	"errors"
	"testing"

	"github.com/dshills/inkwell/internal/engine/node"
)

func TestMarshal(t *testing.T) {
	tree := node.NewTree()
	p := tree.CreateElement("paragraph", nil)
	if err := tree.InsertNode(tree.Root().Key(), 0, p); err != nil {
		t.Fatalf("insert paragraph: %v", err)
	}
	if err := tree.InsertNode(p.Key(), 0, tree.CreateText("hello ")); err != nil {
		t.Fatalf("insert text: %v", err)
	}
	link := tree.CreateElement("link", map[string]string{"href": "/docs"})
	if err := tree.InsertNode(p.Key(), 1, link); err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if err := tree.InsertNode(link.Key(), 0, tree.CreateText("docs")); err != nil {
		t.Fatalf("insert link text: %v", err)
	}

	data, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"type":"root","children":[{"type":"paragraph","children":[{"text":"hello "},{"type":"link","attributes":{"href":"/docs"},"children":[{"text":"docs"}]}]}]}`
	if string(data) != want {
		t.Fatalf("Marshal = %s, want %s", data, want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	in := `{"type":"root","children":[{"type":"paragraph","children":[{"text":"hello "},{"type":"bold","children":[{"text":"world"}]}]}]}`

	tree, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("parsed tree invalid: %v", err)
	}

	out, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("round trip = %s, want %s", out, in)
	}
}

func TestParseAssignsFreshKeys(t *testing.T) {
	in := `{"type":"root","children":[{"text":"a"},{"text":"b"}]}`
	tree, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	seen := make(map[node.Key]bool)
	tree.Walk(func(n node.Node) bool {
		if !n.Key().IsValid() {
			t.Fatalf("node %v has invalid key", n)
		}
		if seen[n.Key()] {
			t.Fatalf("duplicate key %d", n.Key())
		}
		seen[n.Key()] = true
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("walked %d nodes, want 3", len(seen))
	}
}

func TestParseWrapsForeignRoot(t *testing.T) {
	in := `{"type":"paragraph","children":[{"text":"floating"}]}`
	tree, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.Root().Type() != "root" {
		t.Fatalf("root type = %q, want root", tree.Root().Type())
	}
	if tree.Root().ChildCount() != 1 {
		t.Fatalf("root children = %d, want 1", tree.Root().ChildCount())
	}
	child, ok := tree.Root().ChildAt(0).(*node.Element)
	if !ok || child.Type() != "paragraph" {
		t.Fatalf("child = %v, want paragraph element", tree.Root().ChildAt(0))
	}
}

func TestParseWrapsTopLevelText(t *testing.T) {
	tree, err := Parse([]byte(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.Root().ChildCount() != 1 {
		t.Fatalf("root children = %d, want 1", tree.Root().ChildCount())
	}
	text, ok := tree.Root().ChildAt(0).(*node.Text)
	if !ok || text.Text() != "hi" {
		t.Fatalf("child = %v, want text node %q", tree.Root().ChildAt(0), "hi")
	}

	out, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"type":"root","children":[{"text":"hi"}]}` {
		t.Fatalf("Marshal = %s", out)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "not json", in: `{"type":`, want: ErrInvalidJSON},
		{name: "not an object", in: `[1,2]`, want: ErrInvalidJSON},
		{name: "typeless node", in: `{"type":"root","children":[{"children":[]}]}`, want: ErrBadNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.in)); !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMarshalEmptyDocument(t *testing.T) {
	data, err := Marshal(node.NewTree())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"type":"root","children":[]}` {
		t.Fatalf("Marshal = %s", data)
	}
}
