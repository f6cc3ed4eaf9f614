// Package main is a headless driver for the inkwell engine: it loads
// a document and configuration, optionally replays a scripted edit,
// and prints the rendered markup or the serialized document.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dshills/inkwell/internal/config"
	"github.com/dshills/inkwell/internal/editor"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/op"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/input"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		docPath     string
		emitJSON    bool
		appendText  string
		showVersion bool
		verbose     bool
	)
	flag.StringVar(&configPath, "config", "", "path to configuration file (.toml, .yaml)")
	flag.StringVar(&configPath, "c", "", "path to configuration file (shorthand)")
	flag.StringVar(&docPath, "doc", "", "path to a document in interchange JSON")
	flag.BoolVar(&emitJSON, "json", false, "print the document as JSON instead of markup")
	flag.StringVar(&appendText, "append", "", "append text to the end of the document before printing (- reads stdin)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.BoolVar(&verbose, "v", false, "log render diagnostics to stderr")
	flag.Parse()

	if showVersion {
		fmt.Printf("inkwell %s (%s)\n", version, commit)
		return 0
	}

	log := zerolog.Nop()
	if verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		return 1
	}

	opts := []editor.Option{
		editor.WithConfig(cfg),
		editor.WithLogger(log),
	}
	if docPath != "" {
		data, err := os.ReadFile(docPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read document: %v\n", err)
			return 1
		}
		opts = append(opts, editor.WithDocument(data))
	}

	ed, err := editor.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: initialize editor: %v\n", err)
		return 1
	}
	defer ed.Destroy()

	if appendText == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read stdin: %v\n", err)
			return 1
		}
		appendText = string(data)
	}
	if appendText != "" {
		if err := appendToDocument(ed, appendText); err != nil {
			fmt.Fprintf(os.Stderr, "Error: append text: %v\n", err)
			return 1
		}
	}

	if emitJSON {
		data, err := ed.Document()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: serialize document: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Println(ed.Render())
	return 0
}

// appendToDocument places a caret at the end of the last text node
// and routes the text through the input path. An empty document gets
// a paragraph to type into.
func appendToDocument(ed *editor.Editor, text string) error {
	target := lastText(ed.Tree())
	if target == nil {
		t := ed.Tree()
		p := node.NewElement("paragraph", nil)
		seed := node.NewText("")
		if err := p.Append(seed); err != nil {
			return err
		}
		ops := op.List{op.NewInsertNode(t.Root().Key(), t.Root().ChildCount(), p)}
		if err := ed.Apply(ops); err != nil {
			return err
		}
		target = seed
	}

	ed.SelectCollapsed(selection.Position{Key: target.Key(), Offset: target.Length()})
	return ed.HandleSignal(input.TextInput(text))
}

func lastText(t *node.Tree) *node.Text {
	var last *node.Text
	t.Walk(func(n node.Node) bool {
		if text, ok := n.(*node.Text); ok {
			last = text
		}
		return true
	})
	return last
}
