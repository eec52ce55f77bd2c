package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/discover"
	"github.com/DeusData/java-callgraph/internal/indexer"
	"github.com/DeusData/java-callgraph/internal/resolve"
)

// ErrInvalidRoot is returned when the project root is not an accessible
// directory. Nothing is indexed or written in that case.
var ErrInvalidRoot = errors.New("invalid project root")

// Options configures a pipeline run.
type Options struct {
	// Semantic enables the resolution pass. Resolver must be set.
	Semantic bool
	Resolver *resolve.Resolver
	// Workers bounds the parse fan-out inside indexing.
	Workers  int
	Discover *discover.Options
}

// Result is the outcome of one project's run.
type Result struct {
	Project   string
	Root      string
	Graph     *callgraph.Graph
	Roots     []string // functions nothing calls, sorted
	Functions int
	// Resolution is nil unless the semantic pass ran.
	Resolution *resolve.Stats
	Elapsed    time.Duration
}

// Pipeline extracts the call graph of one project: index, then resolve
// (semantic mode only, after the whole project is indexed), then build.
// A Pipeline owns its records and resolution session; nothing is shared
// with other pipelines.
type Pipeline struct {
	ctx         context.Context
	RepoPath    string
	ProjectName string
	opts        Options
}

// New creates a new Pipeline.
func New(ctx context.Context, repoPath string, opts Options) *Pipeline {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	return &Pipeline{
		ctx:         ctx,
		RepoPath:    repoPath,
		ProjectName: ProjectNameFromPath(repoPath),
		opts:        opts,
	}
}

// Run is shorthand for New(ctx, root, opts).Run().
func Run(ctx context.Context, root string, opts Options) (*Result, error) {
	return New(ctx, root, opts).Run()
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

func (p *Pipeline) checkRoot() error {
	info, err := os.Stat(p.RepoPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRoot, p.RepoPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, p.RepoPath)
	}
	return nil
}

// Run executes the passes in order and returns the graph.
func (p *Pipeline) Run() (*Result, error) {
	start := time.Now()
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath, "semantic", p.opts.Semantic)

	if err := p.checkRoot(); err != nil {
		return nil, err
	}
	if p.opts.Semantic && p.opts.Resolver == nil {
		return nil, errors.New("semantic mode requires a resolver")
	}
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}

	t := time.Now()
	records, err := indexer.Index(p.ctx, p.RepoPath, indexer.Options{
		Semantic: p.opts.Semantic,
		Workers:  p.opts.Workers,
		Discover: p.opts.Discover,
	})
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	slog.Info("pass.timing", "pass", "index", "elapsed", time.Since(t))

	res := &Result{
		Project:   p.ProjectName,
		Root:      p.RepoPath,
		Functions: len(records),
	}

	if p.opts.Semantic {
		t = time.Now()
		stats, err := p.opts.Resolver.Resolve(p.ctx, p.RepoPath, records)
		if err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}
		res.Resolution = &stats
		slog.Info("pass.timing", "pass", "resolve", "elapsed", time.Since(t))
	}

	t = time.Now()
	res.Graph = callgraph.Build(records)
	res.Roots = res.Graph.Roots()
	slog.Info("pass.timing", "pass", "build", "elapsed", time.Since(t))

	res.Elapsed = time.Since(start)
	slog.Info("pipeline.done", "project", p.ProjectName,
		"nodes", res.Graph.NodeCount(), "edges", res.Graph.EdgeCount(),
		"roots", len(res.Roots), "elapsed", res.Elapsed)
	return res, nil
}
