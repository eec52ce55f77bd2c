package parser

import (
	"errors"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/DeusData/java-callgraph/internal/lang"
)

// ErrClosed is returned by Parse after Close.
var ErrClosed = errors.New("parser closed")

func grammar(l lang.Language) (*tree_sitter.Language, error) {
	switch l {
	case lang.Java:
		return tree_sitter.NewLanguage(tree_sitter_java.Language()), nil
	}
	return nil, fmt.Errorf("unsupported language: %s", l)
}

// Parser hands out tree-sitter parsers for one language. Each indexing run
// owns its own Parser; nothing is shared between runs.
type Parser struct {
	language lang.Language
	tsLang   *tree_sitter.Language
	free     chan *tree_sitter.Parser
}

// New creates a Parser that keeps up to size idle tree-sitter parsers.
func New(l lang.Language, size int) (*Parser, error) {
	tsLang, err := grammar(l)
	if err != nil {
		return nil, err
	}
	if size < 1 {
		size = 1
	}
	return &Parser{
		language: l,
		tsLang:   tsLang,
		free:     make(chan *tree_sitter.Parser, size),
	}, nil
}

// Language returns the language this Parser parses.
func (p *Parser) Language() lang.Language {
	return p.language
}

func (p *Parser) get() (*tree_sitter.Parser, error) {
	select {
	case tp, ok := <-p.free:
		if !ok {
			return nil, ErrClosed
		}
		return tp, nil
	default:
	}
	tp := tree_sitter.NewParser()
	if err := tp.SetLanguage(p.tsLang); err != nil {
		tp.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	return tp, nil
}

func (p *Parser) put(tp *tree_sitter.Parser) {
	select {
	case p.free <- tp:
	default:
		tp.Close()
	}
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done. Safe for concurrent use.
func (p *Parser) Parse(source []byte) (*tree_sitter.Tree, error) {
	tp, err := p.get()
	if err != nil {
		return nil, err
	}
	tree := tp.Parse(source, nil)
	p.put(tp)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", p.language)
	}
	return tree, nil
}

// Close releases all idle tree-sitter parsers. Parse must not be called
// concurrently with or after Close.
func (p *Parser) Close() {
	close(p.free)
	for tp := range p.free {
		tp.Close()
	}
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// Capture is a node tagged while walking a tree with a LanguageSpec.
type Capture struct {
	Node *tree_sitter.Node
	Tag  lang.Tag
}

// Captures walks node in document order and tags every node whose kind has
// a role in spec, together with the role's named children (name, body,
// callee). Package declarations are not descended into.
func Captures(node *tree_sitter.Node, spec *lang.LanguageSpec) []Capture {
	var caps []Capture
	emit := func(n *tree_sitter.Node, tag lang.Tag) {
		if n != nil {
			caps = append(caps, Capture{Node: n, Tag: tag})
		}
	}
	Walk(node, func(n *tree_sitter.Node) bool {
		switch spec.RoleOf(n.Kind()) {
		case lang.RolePackage:
			emit(n, lang.TagPackage)
			emit(packageNameNode(n, spec), lang.TagPackageName)
			return false
		case lang.RoleClass:
			emit(n, lang.TagClass)
			emit(n.ChildByFieldName(spec.NameField), lang.TagClassName)
		case lang.RoleFunction:
			emit(n, lang.TagFunction)
			emit(n.ChildByFieldName(spec.NameField), lang.TagFunctionName)
			emit(n.ChildByFieldName(spec.BodyField), lang.TagFunctionBody)
		case lang.RoleCall:
			emit(n, lang.TagCall)
			emit(n.ChildByFieldName(spec.CalleeField), lang.TagCallee)
		}
		return true
	})
	return caps
}

func packageNameNode(n *tree_sitter.Node, spec *lang.LanguageSpec) *tree_sitter.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child != nil && spec.IsPackageName(child.Kind()) {
			return child
		}
	}
	return nil
}
