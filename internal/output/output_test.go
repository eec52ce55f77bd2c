package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/store"
)

func result(root string) *pipeline.Result {
	g := callgraph.New()
	g.AddNode("app.Main.main", "src/app/Main.java", 2, 5)
	g.AddNode("app.Main.run", "src/app/Main.java", 7, 9)
	g.AddEdge("app.Main.main", callgraph.ResolvedTarget("app.Main.run"))
	g.AddEdge("app.Main.run", callgraph.UnresolvedTarget("println"))
	return &pipeline.Result{Project: pipeline.ProjectNameFromPath(root), Root: root, Graph: g}
}

func readGraph(t *testing.T, dir string) *callgraph.Graph {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, callgraph.JSONFileName))
	require.NoError(t, err)
	defer f.Close()
	g, err := callgraph.DecodeJSON(f)
	require.NoError(t, err)
	return g
}

func TestDirSinkSingle(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	res := result("/src/app")

	require.NoError(t, (&DirSink{Dir: out}).Write(context.Background(), res))

	assert.Equal(t, res.Graph.Fingerprint(), readGraph(t, out).Fingerprint())
	dot, err := os.ReadFile(filepath.Join(out, callgraph.DOTFileName))
	require.NoError(t, err)
	assert.Contains(t, string(dot), `"app.Main.main" -> "app.Main.run";`)
}

func TestDirSinkPerProject(t *testing.T) {
	out := t.TempDir()
	sink := &DirSink{Dir: out, PerProject: true}

	for _, root := range []string{"/src/alpha", "/work/beta/"} {
		require.NoError(t, sink.Write(context.Background(), result(root)))
	}
	// an existing directory is fine
	require.NoError(t, sink.Write(context.Background(), result("/src/alpha")))

	for _, name := range []string{"alpha", "beta"} {
		_, err := os.Stat(filepath.Join(out, name, callgraph.JSONFileName))
		assert.NoError(t, err, name)
		_, err = os.Stat(filepath.Join(out, name, callgraph.DOTFileName))
		assert.NoError(t, err, name)
	}
}

func TestDirSinkSameBaseName(t *testing.T) {
	out := t.TempDir()
	sink := &DirSink{Dir: out, PerProject: true}
	sink.Assign([]string{"/teamA/app", "/teamB/app"})

	graphs := map[string]*pipeline.Result{"/teamA/app": result("/teamA/app"), "/teamB/app": result("/teamB/app")}
	graphs["/teamB/app"].Graph.AddNode("app.Other.run", "src/app/Other.java", 0, 3)

	// the later root finishes first; the directory reservation still holds
	var wg sync.WaitGroup
	for _, root := range []string{"/teamB/app", "/teamA/app"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Write(context.Background(), graphs[root]))
		}()
	}
	wg.Wait()

	first := sink.ProjectDir("/teamA/app")
	second := sink.ProjectDir("/teamB/app")
	assert.Equal(t, filepath.Join(out, "app"), first)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(filepath.Base(second), "app-"), second)
	assert.Equal(t, second, sink.ProjectDir("/teamB/./app"), "same root, same directory")

	assert.Equal(t, graphs["/teamA/app"].Graph.Fingerprint(), readGraph(t, first).Fingerprint())
	assert.Equal(t, graphs["/teamB/app"].Graph.Fingerprint(), readGraph(t, second).Fingerprint())
}

func TestWriteFileFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, callgraph.JSONFileName)
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	boom := errors.New("encoder broke")
	err := writeFile(path, callgraph.New(), func(w io.Writer, _ *callgraph.Graph) error {
		_, _ = io.WriteString(w, `{"nodes":[`)
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestDirSinkFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := (&DirSink{Dir: filepath.Join(blocker, "out")}).Write(context.Background(), result("/src/app"))

	var oe *OutputError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "src-app", oe.Project)
	assert.Contains(t, oe.Error(), "src-app")
}

func TestStoreSink(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	res := result("/src/app")
	require.NoError(t, (&StoreSink{Store: s}).Write(context.Background(), res))

	g, err := s.LoadGraph(res.Project)
	require.NoError(t, err)
	assert.Equal(t, res.Graph.Fingerprint(), g.Fingerprint())

	p, err := s.GetProject(res.Project)
	require.NoError(t, err)
	assert.Equal(t, "/src/app", p.RootPath)
	assert.False(t, p.Semantic)
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *pipeline.Result) error { return f.err }

func TestMultiSink(t *testing.T) {
	out := t.TempDir()
	boom := errors.New("boom")
	m := MultiSink{failingSink{boom}, &DirSink{Dir: out}}

	err := m.Write(context.Background(), result("/src/app"))

	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(filepath.Join(out, callgraph.JSONFileName))
	assert.NoError(t, statErr, "later sinks still run")
	assert.NoError(t, MultiSink{}.Write(context.Background(), result("/src/app")))
}

type cypherCall struct {
	cypher string
	params map[string]any
}

func TestNeo4jSinkLoad(t *testing.T) {
	var calls []cypherCall
	s := &Neo4jSink{uri: "neo4j://test", run: func(_ context.Context, cypher string, params map[string]any) error {
		calls = append(calls, cypherCall{cypher, params})
		return nil
	}}

	require.NoError(t, s.Write(context.Background(), result("/src/app")))

	require.Len(t, calls, 3)
	assert.Equal(t, cypherClearProject, calls[0].cypher)
	assert.Equal(t, "src-app", calls[0].params["project"])

	methods := calls[1].params["batch"].([]map[string]any)
	require.Len(t, methods, 3)
	assert.Equal(t, "app.Main.main", methods[0]["fqn"])
	assert.Equal(t, "main", methods[0]["name"])
	assert.Equal(t, true, methods[2]["implicit"], "println is implicit")

	rels := calls[2].params["batch"].([]map[string]any)
	require.Len(t, rels, 2)
	assert.Equal(t, map[string]any{"caller": "app.Main.main", "callee": "app.Main.run", "resolved": true}, rels[0])
	assert.Equal(t, false, rels[1]["resolved"])
}

func TestNeo4jSinkFailure(t *testing.T) {
	s := &Neo4jSink{uri: "neo4j://test", run: func(_ context.Context, cypher string, _ map[string]any) error {
		if strings.Contains(cypher, "CALLS") {
			return errors.New("constraint violated")
		}
		return nil
	}}

	err := s.Write(context.Background(), result("/src/app"))

	var oe *OutputError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "neo4j://test", oe.Path)
	assert.Contains(t, err.Error(), "load calls")
}

func TestChunk(t *testing.T) {
	rows := make([]map[string]any, 1201)
	batches := chunk(rows, 500)
	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 201)
	assert.Empty(t, chunk(nil, 500))
}
