package op

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/inkwell/internal/engine/node"
)

// dump serializes the tree shape for byte-identical comparisons.
func dump(t *node.Tree) string {
	var b strings.Builder
	t.Walk(func(n node.Node) bool {
		switch v := n.(type) {
		case *node.Element:
			fmt.Fprintf(&b, "e:%d:%s:%v;", v.Key(), v.Type(), v.Attrs())
		case *node.Text:
			fmt.Fprintf(&b, "t:%d:%q;", v.Key(), v.Text())
		}
		return true
	})
	return b.String()
}

func buildDoc(t *testing.T) (*node.Tree, *node.Element, *node.Text) {
	t.Helper()
	tree := node.NewTree()
	para := tree.CreateElement("paragraph", nil)
	txt := tree.CreateText("hello")
	if err := para.Append(txt); err != nil {
		t.Fatal(err)
	}
	if err := tree.InsertChild(tree.Root().Key(), 0, para.Key()); err != nil {
		t.Fatal(err)
	}
	return tree, para, txt
}

func TestApplyInsertText(t *testing.T) {
	tree, _, txt := buildDoc(t)

	o := NewInsertText(txt.Key(), 5, " world")
	if err := Apply(tree, &o); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if txt.Text() != "hello world" {
		t.Errorf("text = %q, want %q", txt.Text(), "hello world")
	}
}

func TestApplyDeleteTextCapturesSpan(t *testing.T) {
	tree, _, txt := buildDoc(t)

	o := Op{Kind: DeleteText, Key: txt.Key(), Offset: 1, Length: 3}
	if err := Apply(tree, &o); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if txt.Text() != "ho" {
		t.Errorf("text = %q, want %q", txt.Text(), "ho")
	}
	if o.Text != "ell" {
		t.Errorf("captured span = %q, want %q", o.Text, "ell")
	}
}

func TestApplyFailureLeavesTreeUntouched(t *testing.T) {
	tree, para, txt := buildDoc(t)
	before := dump(tree)

	cases := []struct {
		name string
		op   Op
	}{
		{"insert text out of range", NewInsertText(txt.Key(), 99, "x")},
		{"delete text out of range", Op{Kind: DeleteText, Key: txt.Key(), Offset: 3, Length: 9}},
		{"insert under text node", NewInsertNode(txt.Key(), 0, node.NewText("y"))},
		{"remove bad index", NewRemoveNode(para.Key(), 7, txt.Key())},
		{"set attr on text", NewSetAttribute(txt.Key(), "a", "", false, "v", true)},
		{"move into own subtree", NewMoveNode(para.Key(), tree.Root().Key(), 0, para.Key(), 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := tc.op
			if err := Apply(tree, &o); err == nil {
				t.Fatal("apply succeeded, want error")
			}
			if got := dump(tree); got != before {
				t.Errorf("tree changed by failed apply:\n before %s\n after  %s", before, got)
			}
		})
	}
}

func TestInvertRoundTrip(t *testing.T) {
	build := func(t *testing.T) (*node.Tree, *node.Element, *node.Text, *node.Element) {
		tree, para, txt := buildDoc(t)
		quote := tree.CreateElement("quote", map[string]string{"cite": "x"})
		if err := tree.InsertChild(tree.Root().Key(), 1, quote.Key()); err != nil {
			t.Fatal(err)
		}
		return tree, para, txt, quote
	}

	cases := []struct {
		name string
		op   func(tree *node.Tree, para *node.Element, txt *node.Text, quote *node.Element) Op
	}{
		{"insert-text", func(_ *node.Tree, _ *node.Element, txt *node.Text, _ *node.Element) Op {
			return NewInsertText(txt.Key(), 2, "XY")
		}},
		{"delete-text", func(_ *node.Tree, _ *node.Element, txt *node.Text, _ *node.Element) Op {
			return Op{Kind: DeleteText, Key: txt.Key(), Offset: 1, Length: 2}
		}},
		{"insert-node", func(tree *node.Tree, _ *node.Element, _ *node.Text, quote *node.Element) Op {
			return NewInsertNode(quote.Key(), 0, node.NewText("nested"))
		}},
		{"remove-node", func(_ *node.Tree, para *node.Element, txt *node.Text, _ *node.Element) Op {
			return NewRemoveNode(para.Key(), 0, txt.Key())
		}},
		{"set-attribute", func(_ *node.Tree, _ *node.Element, _ *node.Text, quote *node.Element) Op {
			return NewSetAttribute(quote.Key(), "cite", "x", true, "y", true)
		}},
		{"move-node", func(tree *node.Tree, para *node.Element, _ *node.Text, quote *node.Element) Op {
			return NewMoveNode(para.Key(), tree.Root().Key(), 0, quote.Key(), 0)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tree, para, txt, quote := build(t)
			before := dump(tree)

			o := tc.op(tree, para, txt, quote)
			if err := Apply(tree, &o); err != nil {
				t.Fatalf("apply: %v", err)
			}
			inv := o.Invert()
			if err := Apply(tree, &inv); err != nil {
				t.Fatalf("apply inverse: %v", err)
			}
			if got := dump(tree); got != before {
				t.Errorf("round trip mismatch:\n before %s\n after  %s", before, got)
			}
			if err := tree.Validate(); err != nil {
				t.Errorf("validate: %v", err)
			}
		})
	}
}

func TestRemoveNodeKeyMismatch(t *testing.T) {
	tree, para, _ := buildDoc(t)

	o := NewRemoveNode(para.Key(), 0, node.Key(1<<60))
	err := Apply(tree, &o)
	if !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("got %v, want ErrKeyMismatch", err)
	}
}

func TestApplyAllRollsBackOnFailure(t *testing.T) {
	tree, _, txt := buildDoc(t)
	before := dump(tree)

	ops := List{
		NewInsertText(txt.Key(), 0, "ab"),
		NewInsertText(txt.Key(), 1, "cd"),
		NewInsertText(txt.Key(), 500, "boom"),
	}
	if err := ApplyAll(tree, ops); err == nil {
		t.Fatal("batch succeeded, want error")
	}
	if got := dump(tree); got != before {
		t.Errorf("batch not rolled back:\n before %s\n after  %s", before, got)
	}
}

func TestListInvertOrder(t *testing.T) {
	tree, _, txt := buildDoc(t)
	before := dump(tree)

	ops := List{
		NewInsertText(txt.Key(), 5, "!"),
		NewInsertText(txt.Key(), 6, "?"),
	}
	if err := ApplyAll(tree, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if txt.Text() != "hello!?" {
		t.Fatalf("text = %q, want %q", txt.Text(), "hello!?")
	}

	inv := ops.Invert()
	if err := ApplyAll(tree, inv); err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if got := dump(tree); got != before {
		t.Errorf("inverse batch mismatch:\n before %s\n after  %s", before, got)
	}
}

func TestListKeys(t *testing.T) {
	tree, para, txt := buildDoc(t)

	ops := List{
		NewInsertText(txt.Key(), 0, "x"),
		NewRemoveNode(para.Key(), 0, txt.Key()),
	}
	keys := ops.Keys()
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 distinct", keys)
	}
	if keys[0] != txt.Key() || keys[1] != para.Key() {
		t.Errorf("keys = %v, want [%d %d]", keys, txt.Key(), para.Key())
	}
	_ = tree
}
