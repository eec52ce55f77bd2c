package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/lsp"
	"github.com/DeusData/java-callgraph/internal/resolve"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func setupTestRepo(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(dir, "src", "app", "Main.java"), `package app;

public class Main {
    public static void main(String[] args) {
        new Service().process();
        System.out.println("done");
    }
}
`)
	writeFile(t, filepath.Join(dir, "src", "app", "Service.java"), `package app;

class Service {
    void process() {
        step(3);
    }

    int step(int n) {
        return n == 0 ? 0 : step(n - 1);
    }
}
`)
	return dir
}

func TestPipelineRunSyntactic(t *testing.T) {
	dir := setupTestRepo(t)

	res, err := Run(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	g := res.Graph

	for _, id := range []string{"app.Main.main", "app.Service.process", "app.Service.step"} {
		n, ok := g.Node(id)
		if !ok || n.Implicit {
			t.Errorf("missing declared node %s", id)
		}
	}
	for _, e := range [][2]string{
		{"app.Main.main", "process"},
		{"app.Main.main", "println"},
		{"app.Service.process", "step"},
		{"app.Service.step", "step"},
	} {
		if !g.HasEdge(e[0], e[1]) {
			t.Errorf("missing edge %s -> %s", e[0], e[1])
		}
	}
	if g.EdgeCount() != 4 {
		t.Errorf("edges = %v", g.Edges())
	}

	want := []string{"app.Main.main", "app.Service.process", "app.Service.step"}
	if len(res.Roots) != len(want) {
		t.Fatalf("roots = %v", res.Roots)
	}
	for i := range want {
		if res.Roots[i] != want[i] {
			t.Errorf("roots = %v, want %v", res.Roots, want)
		}
	}
	if res.Functions != 3 || res.Resolution != nil {
		t.Errorf("result = %+v", res)
	}
	if res.Project != ProjectNameFromPath(dir) {
		t.Errorf("project = %q", res.Project)
	}
}

func TestPipelineDeterministic(t *testing.T) {
	dir := setupTestRepo(t)
	a, err := Run(context.Background(), dir, Options{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), dir, Options{Workers: 8})
	if err != nil {
		t.Fatal(err)
	}
	if a.Graph.Fingerprint() != b.Graph.Fingerprint() {
		t.Error("graph differs between runs")
	}
}

func TestPipelineInvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")

	for _, root := range []string{filepath.Join(dir, "missing"), file} {
		_, err := Run(context.Background(), root, Options{})
		if !errors.Is(err, ErrInvalidRoot) {
			t.Errorf("Run(%s) err = %v, want ErrInvalidRoot", root, err)
		}
	}
}

func TestPipelineCancelled(t *testing.T) {
	dir := setupTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, dir, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPipelineSemanticNeedsResolver(t *testing.T) {
	if _, err := Run(context.Background(), t.TempDir(), Options{Semantic: true}); err == nil {
		t.Error("expected error without a resolver")
	}
}

// definitionSession resolves every call to one fixed location.
type definitionSession struct {
	target lsp.Location
	err    error
}

func (s *definitionSession) Start(context.Context) error    { return s.err }
func (s *definitionSession) Shutdown(context.Context) error { return nil }
func (s *definitionSession) Definition(context.Context, string, int, int) ([]lsp.Location, error) {
	return []lsp.Location{s.target}, nil
}

func TestPipelineSemantic(t *testing.T) {
	dir := setupTestRepo(t)
	// line 7 of Service.java (0-based) is inside step
	session := &definitionSession{target: lsp.Location{
		URI:   lsp.PathToURI(filepath.Join(dir, "src", "app", "Service.java")),
		Range: lsp.Range{Start: lsp.Position{Line: 7, Character: 8}},
	}}
	r := resolve.New(func(string) resolve.Session { return session }, resolve.Options{})

	res, err := Run(context.Background(), dir, Options{Semantic: true, Resolver: r})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Resolution == nil || res.Resolution.Sites != 4 || res.Resolution.Resolved != 4 {
		t.Fatalf("resolution = %+v", res.Resolution)
	}
	edges := res.Graph.Edges()
	for _, e := range edges {
		if e.To != callgraph.ResolvedTarget("app.Service.step") {
			t.Errorf("edge %v not resolved to step", e)
		}
	}
	if len(edges) != 3 {
		t.Errorf("edges = %v", edges)
	}
}

func TestPipelineSemanticStartFailure(t *testing.T) {
	dir := setupTestRepo(t)
	session := &definitionSession{err: lsp.ErrServerNotInstalled}
	r := resolve.New(func(string) resolve.Session { return session }, resolve.Options{})

	_, err := Run(context.Background(), dir, Options{Semantic: true, Resolver: r})
	if !errors.Is(err, lsp.ErrServerNotInstalled) {
		t.Errorf("err = %v", err)
	}
}

func TestProjectNameFromPath(t *testing.T) {
	tests := map[string]string{
		"/home/u/proj": "home-u-proj",
		"/":            "root",
		"/a/b/../c":    "a-c",
	}
	for in, want := range tests {
		if got := ProjectNameFromPath(in); got != want {
			t.Errorf("ProjectNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
