package scheduler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/java-callgraph/internal/pipeline"
)

// ErrDuplicateRoot is the error of a root listed more than once. Only the
// first occurrence runs.
var ErrDuplicateRoot = errors.New("project root listed more than once")

// ProjectFunc extracts the graph of one project.
type ProjectFunc func(ctx context.Context, root string) (*pipeline.Result, error)

// Pipelines returns a ProjectFunc running pipeline.Run with opts.
func Pipelines(opts pipeline.Options) ProjectFunc {
	return func(ctx context.Context, root string) (*pipeline.Result, error) {
		return pipeline.Run(ctx, root, opts)
	}
}

// Sink receives each project's result as soon as its graph is ready.
// Write is called concurrently for different projects.
type Sink interface {
	Write(ctx context.Context, res *pipeline.Result) error
}

// Result is the outcome of one project.
type Result struct {
	Root    string
	Project *pipeline.Result // nil if the pipeline failed
	Err     error            // pipeline or output failure
}

// OK reports whether the project was extracted and written.
func (r Result) OK() bool {
	return r.Err == nil
}

// Scheduler runs one pipeline per project root on a shared Pool.
type Scheduler struct {
	pool *Pool
	run  ProjectFunc
	sink Sink
}

// New creates a Scheduler. The pool bounds how many projects run at once.
func New(pool *Pool, run ProjectFunc, sink Sink) *Scheduler {
	return &Scheduler{pool: pool, run: run, sink: sink}
}

// Run processes roots and returns one Result per root, in input order.
// Projects are admitted in input order as workers free up. A failing
// project never affects the others. Cancelling ctx stops admitting new
// projects; projects already running finish normally. A root repeated
// later in the list fails with ErrDuplicateRoot instead of running twice.
func (s *Scheduler) Run(ctx context.Context, roots []string) []Result {
	start := time.Now()
	slog.Info("scheduler.start", "projects", len(roots), "workers", s.pool.Size())

	results := make([]Result, len(roots))
	runCtx := context.WithoutCancel(ctx)
	seen := make(map[string]int, len(roots))

	var g errgroup.Group
	for i, root := range roots {
		results[i].Root = root
		key := rootKey(root)
		if first, dup := seen[key]; dup {
			results[i].Err = fmt.Errorf("%w: %s (same as #%d)", ErrDuplicateRoot, root, first+1)
			slog.Warn("scheduler.project.err", "root", root, "stage", "admit", "err", results[i].Err)
			continue
		}
		seen[key] = i
		if err := ctx.Err(); err != nil {
			results[i].Err = fmt.Errorf("not started: %w", err)
			continue
		}
		if err := s.pool.Acquire(ctx); err != nil {
			results[i].Err = fmt.Errorf("not started: %w", err)
			continue
		}
		g.Go(func() error {
			defer s.pool.Release()
			results[i] = s.runProject(runCtx, root)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	slog.Info("scheduler.done", "projects", len(roots), "failed", failed, "elapsed", time.Since(start))
	return results
}

func (s *Scheduler) runProject(ctx context.Context, root string) (r Result) {
	r.Root = root
	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("panic: %v", p)
			slog.Error("scheduler.project.panic", "root", root, "panic", p, "stack", string(debug.Stack()))
		}
	}()

	slog.Info("scheduler.project.start", "root", root, "busy", s.pool.InUse())
	res, err := s.run(ctx, root)
	if err != nil {
		slog.Warn("scheduler.project.err", "root", root, "stage", "pipeline", "err", err)
		r.Err = err
		return r
	}
	r.Project = res

	if s.sink != nil {
		if err := s.sink.Write(ctx, res); err != nil {
			slog.Warn("scheduler.project.err", "root", root, "stage", "output", "err", err)
			r.Err = err
			return r
		}
	}
	slog.Info("scheduler.project.done", "root", root,
		"nodes", res.Graph.NodeCount(), "edges", res.Graph.EdgeCount(), "elapsed", res.Elapsed)
	return r
}

// rootKey identifies a project root independently of how it was spelled.
func rootKey(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// ReadProjectList reads one project root per line. Blank lines and lines
// starting with # are skipped.
func ReadProjectList(r io.Reader) ([]string, error) {
	var roots []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roots = append(roots, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read project list: %w", err)
	}
	return roots, nil
}

// LoadProjectList reads a project list file.
func LoadProjectList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProjectList(f)
}
