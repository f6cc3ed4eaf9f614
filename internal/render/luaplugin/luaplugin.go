// Package luaplugin loads render plugins written in Lua. A plugin
// script defines a global render(node, children) function that
// receives the element as a table and the rendered children as an
// array, and returns the markup string.
package luaplugin

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/inkwell/internal/engine/node"
)

// Errors returned by plugin loading and execution.
var (
	// ErrNoRenderFunc is returned when the script defines no global
	// render function.
	ErrNoRenderFunc = errors.New("lua plugin defines no render function")

	// ErrBadReturn is returned when render returns a non-string.
	ErrBadReturn = errors.New("lua render returned non-string")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("lua plugin is closed")
)

// Plugin is a render.Plugin backed by a sandboxed Lua state.
//
// gopher-lua's LState is not goroutine-safe, so every call into the
// state is serialized behind a mutex.
type Plugin struct {
	mu       sync.Mutex
	state    *lua.LState
	elemType string
	render   *lua.LFunction
	closed   bool
}

// Load compiles source into a fresh sandboxed state and binds its
// render function to the given element type.
func Load(elemType, source string) (*Plugin, error) {
	if elemType == "" {
		return nil, errors.New("empty element type")
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openSafeLibs(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("open lua libs: %w", err)
	}
	stripUnsafeGlobals(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("load lua plugin %q: %w", elemType, err)
	}

	fn, ok := L.GetGlobal("render").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoRenderFunc, elemType)
	}

	return &Plugin{state: L, elemType: elemType, render: fn}, nil
}

// Type returns the element type this plugin handles.
func (p *Plugin) Type() string { return p.elemType }

// Render invokes the Lua render function. Lua errors and panics from
// the VM surface as Go errors, never as panics in the renderer.
func (p *Plugin) Render(elem *node.Element, children []string) (out string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", ErrClosed
	}

	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = fmt.Errorf("lua render panic: %w", v)
			default:
				err = fmt.Errorf("lua render panic: %v", v)
			}
		}
	}()

	L := p.state
	L.Push(p.render)
	L.Push(elementToTable(L, elem))
	L.Push(stringsToTable(L, children))
	if err := L.PCall(2, 1, nil); err != nil {
		return "", fmt.Errorf("lua render %q: %w", p.elemType, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	str, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %s", ErrBadReturn, p.elemType, ret.Type())
	}
	return string(str), nil
}

// Close releases the Lua state. The plugin is unusable afterwards.
func (p *Plugin) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.state.Close()
}

// openSafeLibs opens only the libraries a render function needs:
// base, table, and string. os, io, and debug never load.
func openSafeLibs(L *lua.LState) error {
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return err
		}
	}
	return nil
}

// stripUnsafeGlobals removes base-library entries that would let a
// script load arbitrary code.
func stripUnsafeGlobals(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// elementToTable builds the node table passed to render: type, the
// attribute map, and the child count.
func elementToTable(L *lua.LState, elem *node.Element) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LString(elem.Type()))

	attrs := L.NewTable()
	for name, value := range elem.Attrs() {
		attrs.RawSetString(name, lua.LString(value))
	}
	t.RawSetString("attributes", attrs)
	t.RawSetString("childCount", lua.LNumber(elem.ChildCount()))
	return t
}

func stringsToTable(L *lua.LState, ss []string) *lua.LTable {
	t := L.NewTable()
	for _, s := range ss {
		t.Append(lua.LString(s))
	}
	return t
}
