package luaplugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/render"
)

const calloutScript = `
function render(node, children)
	local body = table.concat(children)
	local kind = node.attributes.kind or "note"
	return '<aside class="' .. kind .. '">' .. body .. '</aside>'
end
`

func TestLoadAndRender(t *testing.T) {
	p, err := Load("callout", calloutScript)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	if p.Type() != "callout" {
		t.Fatalf("Type = %q, want callout", p.Type())
	}

	tree := node.NewTree()
	elem := tree.CreateElement("callout", map[string]string{"kind": "warning"})
	got, err := p.Render(elem, []string{"be ", "careful"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<aside class="warning">be careful</aside>`
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderDefaultAttribute(t *testing.T) {
	p, err := Load("callout", calloutScript)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	tree := node.NewTree()
	elem := tree.CreateElement("callout", nil)
	got, err := p.Render(elem, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != `<aside class="note"></aside>` {
		t.Fatalf("Render = %q", got)
	}
}

func TestLoadRejectsMissingRender(t *testing.T) {
	_, err := Load("callout", `local x = 1`)
	if !errors.Is(err, ErrNoRenderFunc) {
		t.Fatalf("Load error = %v, want ErrNoRenderFunc", err)
	}
}

func TestLoadRejectsSyntaxError(t *testing.T) {
	if _, err := Load("callout", `function render(`); err == nil {
		t.Fatal("Load accepted invalid Lua")
	}
}

func TestRenderNonStringReturn(t *testing.T) {
	p, err := Load("bad", `function render(node, children) return 42 end`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	tree := node.NewTree()
	if _, err := p.Render(tree.CreateElement("bad", nil), nil); !errors.Is(err, ErrBadReturn) {
		t.Fatalf("Render error = %v, want ErrBadReturn", err)
	}
}

func TestRenderLuaErrorSurfacesAsError(t *testing.T) {
	p, err := Load("boom", `function render(node, children) error("kaput") end`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	tree := node.NewTree()
	_, err = p.Render(tree.CreateElement("boom", nil), nil)
	if err == nil || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("Render error = %v, want lua error containing kaput", err)
	}
}

func TestSandboxBlocksUnsafeLibraries(t *testing.T) {
	scripts := map[string]string{
		"os":       `function render(n, c) return os.getenv("HOME") end`,
		"io":       `function render(n, c) return io.open("/etc/passwd") end`,
		"loadfile": `function render(n, c) return loadfile("x.lua")() end`,
	}
	tree := node.NewTree()

	for name, src := range scripts {
		t.Run(name, func(t *testing.T) {
			p, err := Load("widget", src)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			defer p.Close()

			if _, err := p.Render(tree.CreateElement("widget", nil), nil); err == nil {
				t.Fatalf("%s access succeeded inside sandbox", name)
			}
		})
	}
}

func TestRenderAfterClose(t *testing.T) {
	p, err := Load("callout", calloutScript)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p.Close()
	p.Close() // idempotent

	tree := node.NewTree()
	if _, err := p.Render(tree.CreateElement("callout", nil), nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Render error = %v, want ErrClosed", err)
	}
}

func TestPluginSatisfiesRendererContract(t *testing.T) {
	p, err := Load("callout", calloutScript)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer p.Close()

	reg := render.NewRegistry()
	if err := reg.RegisterAll(render.Builtins()...); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("register lua plugin: %v", err)
	}

	tree := node.NewTree()
	callout := tree.CreateElement("callout", map[string]string{"kind": "tip"})
	if err := tree.InsertNode(tree.Root().Key(), 0, callout); err != nil {
		t.Fatalf("insert callout: %v", err)
	}
	body := tree.CreateText("read the docs")
	if err := tree.InsertNode(callout.Key(), 0, body); err != nil {
		t.Fatalf("insert body: %v", err)
	}

	r := render.NewRenderer(reg.Snapshot(nil))
	got := r.RenderTree(tree)
	want := `<div><aside class="tip">read the docs</aside></div>`
	if got != want {
		t.Fatalf("RenderTree = %q, want %q", got, want)
	}
}
