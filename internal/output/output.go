// Package output writes finished project graphs to their destinations.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/scheduler"
)

// OutputError reports a failure to write one project's graph.
type OutputError struct {
	Project string
	Path    string
	Err     error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("write %s to %s: %v", e.Project, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// DirSink writes call_graph.json and call_graph.dot into a directory.
type DirSink struct {
	Dir string
	// PerProject places each project in Dir/<base name of its root>. Roots
	// sharing a base name get distinct directories, see Assign.
	PerProject bool

	mu     sync.Mutex
	dirs   map[string]string // absolute root -> directory
	owners map[string]string // directory -> absolute root
}

// Assign reserves the output directories of roots in order, so that the
// first root with a given base name keeps it regardless of which project
// finishes first. Later roots with the same base name get the base name
// plus a hash of their path.
func (s *DirSink) Assign(roots []string) {
	for _, root := range roots {
		s.ProjectDir(root)
	}
}

// ProjectDir returns the directory a project's files go to. Two distinct
// roots never share a directory in per-project mode.
func (s *DirSink) ProjectDir(root string) string {
	if !s.PerProject {
		return s.Dir
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dir, ok := s.dirs[root]; ok {
		return dir
	}
	if s.dirs == nil {
		s.dirs = make(map[string]string)
		s.owners = make(map[string]string)
	}

	base := filepath.Base(root)
	sum := fmt.Sprintf("%016x", xxh3.HashString(root))
	dir := filepath.Join(s.Dir, base)
	for _, candidate := range []string{base + "-" + sum[:8], base + "-" + sum} {
		if _, taken := s.owners[dir]; !taken {
			break
		}
		dir = filepath.Join(s.Dir, candidate)
	}
	s.dirs[root] = dir
	s.owners[dir] = root
	return dir
}

// Write implements scheduler.Sink.
func (s *DirSink) Write(_ context.Context, res *pipeline.Result) error {
	dir := s.ProjectDir(res.Root)
	if err := WriteGraph(dir, res.Graph); err != nil {
		return &OutputError{Project: res.Project, Path: dir, Err: err}
	}
	return nil
}

// WriteGraph writes both graph files into dir, creating it if missing.
// Each file is replaced atomically; a failed write leaves the previous
// file, if any, in place.
func WriteGraph(dir string, g *callgraph.Graph) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, callgraph.JSONFileName), g, callgraph.EncodeJSON); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, callgraph.DOTFileName), g, callgraph.EncodeDOT)
}

func writeFile(path string, g *callgraph.Graph, encode func(w io.Writer, g *callgraph.Graph) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	done := false
	defer func() {
		if !done {
			os.Remove(tmpPath)
		}
	}()

	if err := encode(tmp, g); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	done = true
	return nil
}

// MultiSink writes to every sink in order. All sinks are tried; the
// errors of the failing ones are joined.
type MultiSink []scheduler.Sink

// Write implements scheduler.Sink.
func (m MultiSink) Write(ctx context.Context, res *pipeline.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
