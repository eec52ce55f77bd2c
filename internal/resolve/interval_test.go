package resolve

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DeusData/java-callgraph/internal/callgraph"
)

func recs(rs ...*callgraph.FunctionRecord) callgraph.Records {
	out := callgraph.Records{}
	for _, r := range rs {
		out.Put(r)
	}
	return out
}

func TestIntervalIndexInnermostWins(t *testing.T) {
	root := "/proj"
	x := NewIntervalIndex(root, recs(
		callgraph.NewFunctionRecord("p.A.outer", "p/A.java", 2, 30),
		callgraph.NewFunctionRecord("p.A.Local.inner", "p/A.java", 5, 10),
		callgraph.NewFunctionRecord("p.A.Local.deeper", "p/A.java", 6, 8),
		callgraph.NewFunctionRecord("p.A.other", "p/A.java", 32, 40),
		callgraph.NewFunctionRecord("p.B.b", "p/B.java", 0, 3),
	))
	file := filepath.Join(root, "p", "A.java")

	tests := []struct {
		line int
		want string
		ok   bool
	}{
		{0, "", false},
		{2, "p.A.outer", true},
		{4, "p.A.outer", true},
		{5, "p.A.Local.inner", true},
		{7, "p.A.Local.deeper", true},
		{8, "p.A.Local.deeper", true},
		{9, "p.A.Local.inner", true},
		{11, "p.A.outer", true},
		{30, "p.A.outer", true},
		{31, "", false},
		{35, "p.A.other", true},
		{41, "", false},
	}
	for _, tt := range tests {
		got, ok := x.Lookup(file, tt.line)
		assert.Equal(t, tt.ok, ok, "line %d", tt.line)
		assert.Equal(t, tt.want, got, "line %d", tt.line)
	}

	got, ok := x.Lookup(filepath.Join(root, "p", "B.java"), 1)
	assert.True(t, ok)
	assert.Equal(t, "p.B.b", got)

	_, ok = x.Lookup(filepath.Join(root, "p", "C.java"), 1)
	assert.False(t, ok)
	assert.Equal(t, 2, x.Files())
}

func TestIntervalIndexIdenticalRanges(t *testing.T) {
	// two one-line methods on the same line
	x := NewIntervalIndex("/r", recs(
		callgraph.NewFunctionRecord("A.b", "A.java", 3, 3),
		callgraph.NewFunctionRecord("A.ab", "A.java", 3, 3),
		callgraph.NewFunctionRecord("A.a", "A.java", 3, 3),
	))
	got, ok := x.Lookup(filepath.Join("/r", "A.java"), 3)
	assert.True(t, ok)
	assert.Equal(t, "A.ab", got, "longest fqn wins among identical ranges")
}

func TestIntervalIndexSiblingsAfterNested(t *testing.T) {
	x := NewIntervalIndex("/r", recs(
		callgraph.NewFunctionRecord("A.first", "A.java", 1, 20),
		callgraph.NewFunctionRecord("A.Inner.x", "A.java", 3, 5),
		callgraph.NewFunctionRecord("A.Inner.y", "A.java", 7, 9),
		callgraph.NewFunctionRecord("A.second", "A.java", 22, 25),
	))
	f := filepath.Join("/r", "A.java")
	for line, want := range map[int]string{6: "A.first", 8: "A.Inner.y", 10: "A.first", 23: "A.second"} {
		got, ok := x.Lookup(f, line)
		assert.True(t, ok, "line %d", line)
		assert.Equal(t, want, got, "line %d", line)
	}
	_, ok := x.Lookup(f, 21)
	assert.False(t, ok)
}
