// Command ast_debug prints the syntax tree of Java files together with the
// nodes the indexer captures from them.
package main

import (
	"fmt"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/java-callgraph/internal/lang"
	"github.com/DeusData/java-callgraph/internal/parser"
)

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", indent)
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	field := ""
	if p := node.Parent(); p != nil {
		for i := uint(0); i < p.ChildCount(); i++ {
			if c := p.Child(i); c != nil && c.Id() == node.Id() {
				if name := p.FieldNameForChild(uint32(i)); name != "" {
					field = name + ": "
				}
				break
			}
		}
	}
	pos := node.StartPosition()
	fmt.Printf("%s%s%s [%d:%d] %q\n", prefix, field, node.Kind(), pos.Row, pos.Column, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ast_debug <file.java>...")
		os.Exit(2)
	}
	p, err := parser.New(lang.Java, 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parser:", err)
		os.Exit(1)
	}
	defer p.Close()
	spec := lang.ForLanguage(lang.Java)

	for _, path := range os.Args[1:] {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		tree, err := p.Parse(source)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		fmt.Printf("=== %s AST ===\n", path)
		printAST(tree.RootNode(), source, 0)

		fmt.Printf("\n=== %s CAPTURES ===\n", path)
		for _, c := range parser.Captures(tree.RootNode(), spec) {
			pos := c.Node.StartPosition()
			fmt.Printf("%-14s [%d:%d] %s\n", c.Tag, pos.Row, pos.Column, firstLine(parser.NodeText(c.Node, source)))
		}
		tree.Close()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
