// Package indexer turns the Java sources of a project into function records.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/discover"
	"github.com/DeusData/java-callgraph/internal/fqn"
	"github.com/DeusData/java-callgraph/internal/lang"
	"github.com/DeusData/java-callgraph/internal/parser"
)

// ParseError reports a file that could not be read or parsed. The file is
// skipped; indexing continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures an indexing run.
type Options struct {
	// Semantic records call sites for later resolution instead of adding
	// unresolved targets directly.
	Semantic bool
	// Workers bounds the parse fan-out. Zero means runtime.NumCPU().
	Workers int
	// Discover is passed through to file discovery.
	Discover *discover.Options
}

// Indexer owns the parsers used for one project.
type Indexer struct {
	opts   Options
	spec   *lang.LanguageSpec
	parser *parser.Parser
}

// New creates an Indexer for Java sources.
func New(opts Options) (*Indexer, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	spec := lang.ForLanguage(lang.Java)
	if spec == nil {
		return nil, fmt.Errorf("no language spec for %s", lang.Java)
	}
	p, err := parser.New(lang.Java, opts.Workers)
	if err != nil {
		return nil, err
	}
	return &Indexer{opts: opts, spec: spec, parser: p}, nil
}

// Close releases the Indexer's parsers.
func (ix *Indexer) Close() {
	ix.parser.Close()
}

// Index discovers and indexes every Java file under root with a fresh
// Indexer.
func Index(ctx context.Context, root string, opts Options) (callgraph.Records, error) {
	ix, err := New(opts)
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	return ix.Index(ctx, root)
}

type fileResult struct {
	records []*callgraph.FunctionRecord
	err     error
}

// Index discovers the Java files under root and extracts one record per
// method or constructor declaration. Files are parsed in parallel but merged
// in discovery order, so when two declarations share an fqn the later one
// wins deterministically.
func (ix *Indexer) Index(ctx context.Context, root string) (callgraph.Records, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	t := time.Now()
	files, err := discover.Discover(ctx, root, ix.opts.Discover)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("index.discovered", "root", root, "files", len(files))

	// Stage 1: parallel parse, no shared state
	results := make([]fileResult, len(files))
	numWorkers := ix.opts.Workers
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(numWorkers, 1))
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			recs, err := ix.indexFile(f)
			results[i] = fileResult{records: recs, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 2: sequential merge in discovery order
	records := callgraph.Records{}
	skipped := 0
	for i, r := range results {
		if r.err != nil {
			skipped++
			slog.Warn("index.file.err", "path", files[i].RelPath, "err", r.err)
			continue
		}
		for _, rec := range r.records {
			if prev := records.Put(rec); prev != nil {
				slog.Warn("index.duplicate_fqn", "fqn", rec.FQN,
					"file", rec.FilePath, "line", rec.StartLine,
					"previous_file", prev.FilePath, "previous_line", prev.StartLine)
			}
		}
	}

	slog.Info("index.done", "files", len(files), "skipped", skipped,
		"functions", len(records), "pending_sites", records.PendingCount(),
		"elapsed", time.Since(t))
	return records, nil
}

func (ix *Indexer) indexFile(f discover.FileInfo) ([]*callgraph.FunctionRecord, error) {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &ParseError{Path: f.RelPath, Err: err}
	}
	source = stripBOM(source)

	tree, err := ix.parser.Parse(source)
	if err != nil {
		return nil, &ParseError{Path: f.RelPath, Err: err}
	}
	defer tree.Close()

	return extract(tree.RootNode(), source, f, ix.spec, ix.opts.Semantic), nil
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

type classSpan struct {
	start, end uint
	name       string
}

// extract builds the records of one parsed file.
func extract(root *tree_sitter.Node, source []byte, f discover.FileInfo, spec *lang.LanguageSpec, semantic bool) []*callgraph.FunctionRecord {
	var (
		pkg      string
		packages int
		classes  []classSpan
		funcs    []*tree_sitter.Node
	)
	for _, c := range parser.Captures(root, spec) {
		switch c.Tag {
		case lang.TagPackage:
			packages++
		case lang.TagPackageName:
			// only the first package declaration counts
			if packages == 1 {
				pkg = parser.NodeText(c.Node, source)
			}
		case lang.TagClass:
			name := c.Node.ChildByFieldName(spec.NameField)
			if name == nil {
				continue
			}
			classes = append(classes, classSpan{
				start: c.Node.StartByte(),
				end:   c.Node.EndByte(),
				name:  parser.NodeText(name, source),
			})
		case lang.TagFunction:
			funcs = append(funcs, c.Node)
		}
	}

	out := make([]*callgraph.FunctionRecord, 0, len(funcs))
	for _, fn := range funcs {
		nameNode := fn.ChildByFieldName(spec.NameField)
		if nameNode == nil {
			continue
		}
		stack := classStack(fn.StartByte(), classes)
		rec := callgraph.NewFunctionRecord(
			fqn.Compute(pkg, stack, f.RelPath, parser.NodeText(nameNode, source)),
			f.RelPath,
			int(nameNode.StartPosition().Row),
			int(fn.EndPosition().Row),
		)
		if body := fn.ChildByFieldName(spec.BodyField); body != nil {
			collectCalls(rec, body, source, f.Path, spec, semantic)
		}
		out = append(out, rec)
	}
	return out
}

// classStack returns the names of all classes whose byte range contains
// offset, outermost first. Classes are in document order, so an enclosing
// class always precedes the classes nested in it.
func classStack(offset uint, classes []classSpan) []string {
	var stack []string
	for _, c := range classes {
		if c.start <= offset && offset <= c.end {
			stack = append(stack, c.name)
		}
	}
	return stack
}

// collectCalls records every method invocation under body. Invocations
// inside anonymous or local classes declared in the body count as calls
// of the enclosing declaration too.
func collectCalls(rec *callgraph.FunctionRecord, body *tree_sitter.Node, source []byte, absPath string, spec *lang.LanguageSpec, semantic bool) {
	for _, c := range parser.Captures(body, spec) {
		if c.Tag != lang.TagCallee {
			continue
		}
		simple := parser.NodeText(c.Node, source)
		if !semantic {
			rec.AddCall(callgraph.UnresolvedTarget(simple))
			continue
		}
		pos := c.Node.StartPosition()
		rec.PendingSites = append(rec.PendingSites, callgraph.CallSite{
			TargetSimpleName: simple,
			File:             absPath,
			Line:             int(pos.Row),
			Column:           int(pos.Column),
		})
	}
}
