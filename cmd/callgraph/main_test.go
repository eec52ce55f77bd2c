package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/store"
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

// javaProject creates a project with one class whose main calls helper.
func javaProject(t *testing.T, parent, name string) string {
	t.Helper()
	root := filepath.Join(parent, name)
	writeFile(t, filepath.Join(root, "src", "Main.java"), `package `+name+`;

class Main {
    public static void main(String[] args) {
        helper();
    }

    static void helper() {}
}
`)
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// keep a stray .cgrconfig in the package dir from leaking in
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func readGraph(t *testing.T, dir string) *callgraph.Graph {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, callgraph.JSONFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := callgraph.DecodeJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "callgraph "+version {
		t.Errorf("--version = %q", out)
	}
}

func TestExtract(t *testing.T) {
	root := javaProject(t, t.TempDir(), "demo")
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "extract", root, "--output", outDir)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	g := readGraph(t, outDir)
	if !g.HasEdge("demo.Main.main", "helper") {
		t.Errorf("edges = %v", g.Edges())
	}
	if _, err := os.Stat(filepath.Join(outDir, callgraph.DOTFileName)); err != nil {
		t.Errorf("dot missing: %v", err)
	}
	if !strings.Contains(out, "Root functions (2):\n  demo.Main.helper\n  demo.Main.main\n") {
		t.Errorf("stdout = %q", out)
	}
}

func TestExtractWithStore(t *testing.T) {
	root := javaProject(t, t.TempDir(), "demo")
	db := filepath.Join(t.TempDir(), "graphs.db")

	if _, err := run(t, "extract", root, "-o", t.TempDir(), "--db", db); err != nil {
		t.Fatalf("extract: %v", err)
	}

	st, err := store.OpenPath(db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	projects, err := st.ListProjects()
	if err != nil || len(projects) != 1 || projects[0].Nodes != 3 {
		t.Errorf("projects = %+v, %v", projects, err)
	}
}

func TestExtractInvalidRoot(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	if _, err := run(t, "extract", filepath.Join(t.TempDir(), "missing"), "--output", outDir); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("output written for an invalid root: %v", err)
	}
}

func TestExtractUsesConfig(t *testing.T) {
	root := javaProject(t, t.TempDir(), "demo")
	outDir := filepath.Join(t.TempDir(), "from-config")
	cfg := filepath.Join(t.TempDir(), "cg.yaml")
	writeFile(t, cfg, "output: "+outDir+"\n")

	if _, err := run(t, "extract", root, "--config", cfg); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, callgraph.JSONFileName)); err != nil {
		t.Errorf("config output dir not used: %v", err)
	}
}

func TestExtractMulti(t *testing.T) {
	src := t.TempDir()
	alpha := javaProject(t, src, "alpha")
	beta := javaProject(t, src, "beta")
	missing := filepath.Join(src, "gamma")
	list := filepath.Join(t.TempDir(), "projects.txt")
	writeFile(t, list, "# projects\n"+alpha+"\n"+missing+"\n\n"+beta+"\n")
	outDir := t.TempDir()

	out, err := run(t, "extract-multi", list, "--output", outDir, "--max-workers", "2")
	if !errors.Is(err, errProjectsFailed) {
		t.Fatalf("err = %v, want errProjectsFailed", err)
	}

	for _, name := range []string{"alpha", "beta"} {
		g := readGraph(t, filepath.Join(outDir, name))
		if !g.HasEdge(name+".Main.main", "helper") {
			t.Errorf("%s edges = %v", name, g.Edges())
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "gamma")); !os.IsNotExist(err) {
		t.Error("failed project wrote output")
	}
	if !strings.Contains(out, "FAIL "+missing) || !strings.Contains(out, "3 projects, 1 failed") {
		t.Errorf("stdout = %q", out)
	}
}

func TestExtractMultiAllOK(t *testing.T) {
	src := t.TempDir()
	list := filepath.Join(t.TempDir(), "projects.txt")
	writeFile(t, list, javaProject(t, src, "alpha")+"\n")

	if _, err := run(t, "extract-multi", list, "-o", t.TempDir()); err != nil {
		t.Errorf("extract-multi: %v", err)
	}
}

func TestExtractMultiSameBaseName(t *testing.T) {
	src := t.TempDir()
	first := filepath.Join(src, "teamA", "app")
	second := filepath.Join(src, "teamB", "app")
	for root, pkg := range map[string]string{first: "alpha", second: "beta"} {
		writeFile(t, filepath.Join(root, "Main.java"), "package "+pkg+";\nclass Main { void main() { helper(); } }\n")
	}
	list := filepath.Join(t.TempDir(), "projects.txt")
	writeFile(t, list, first+"\n"+second+"\n"+first+"\n")
	outDir := t.TempDir()

	out, err := run(t, "extract-multi", list, "-o", outDir, "-j", "3")
	if !errors.Is(err, errProjectsFailed) {
		t.Fatalf("err = %v, want errProjectsFailed", err)
	}
	if !strings.Contains(out, "3 projects, 1 failed") || !strings.Contains(out, "listed more than once") {
		t.Errorf("stdout = %q", out)
	}

	g := readGraph(t, filepath.Join(outDir, "app"))
	if _, ok := g.Node("alpha.Main.main"); !ok || g.NodeCount() != 2 {
		t.Errorf("app nodes = %v", g.Nodes())
	}
	others, err := filepath.Glob(filepath.Join(outDir, "app-*"))
	if err != nil || len(others) != 1 {
		t.Fatalf("suffixed dirs = %v, %v", others, err)
	}
	g = readGraph(t, others[0])
	if _, ok := g.Node("beta.Main.main"); !ok || g.NodeCount() != 2 {
		t.Errorf("%s nodes = %v", others[0], g.Nodes())
	}
}
