package callgraph

import (
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Node is a graph vertex. Declared nodes carry the location of their
// declaration; implicit nodes exist only as the far end of an edge.
type Node struct {
	ID       string
	File     string
	Start    int
	End      int
	Implicit bool
}

// Edge is a directed call from a declared function to a target.
type Edge struct {
	From string
	To   Target
}

// Graph is a simple directed call graph. Cycles and dangling targets are
// allowed; adding an existing edge is a no-op.
type Graph struct {
	nodes    map[string]*Node
	edges    map[Edge]struct{}
	inDegree map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[Edge]struct{}),
		inDegree: make(map[string]int),
	}
}

// Build creates one declared node per record and one edge per call target.
func Build(records Records) *Graph {
	g := New()
	for _, r := range records {
		g.AddNode(r.FQN, r.FilePath, r.StartLine, r.EndLine)
	}
	for _, r := range records {
		for t := range r.Calls {
			g.AddEdge(r.FQN, t)
		}
	}
	return g
}

// AddNode adds or updates a declared node.
func (g *Graph) AddNode(id, file string, start, end int) {
	g.nodes[id] = &Node{ID: id, File: file, Start: start, End: end}
}

func (g *Graph) ensureNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &Node{ID: id, Implicit: true}
	}
}

// AddEdge adds the edge from -> to, creating implicit nodes as needed.
func (g *Graph) AddEdge(from string, to Target) {
	e := Edge{From: from, To: to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.ensureNode(from)
	g.ensureNode(to.Name)
	g.edges[e] = struct{}{}
	g.inDegree[to.Name]++
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// HasEdge reports whether an edge from -> to exists, regardless of the
// target's kind.
func (g *Graph) HasEdge(from, to string) bool {
	_, r := g.edges[Edge{From: from, To: ResolvedTarget(to)}]
	_, u := g.edges[Edge{From: from, To: UnresolvedTarget(to)}]
	return r || u
}

// NodeCount returns the number of nodes, implicit ones included.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by caller, then target.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return lessTarget(out[i].To, out[j].To)
	})
	return out
}

// Roots returns the ids of nodes nothing calls, sorted. These are the
// candidate entry points of the project.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if g.inDegree[id] == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Fingerprint hashes the node and edge sets. Graphs with equal sets have
// equal fingerprints regardless of insertion order.
func (g *Graph) Fingerprint() uint64 {
	h := xxh3.New()
	for _, n := range g.Nodes() {
		_, _ = h.WriteString("n\x00" + n.ID + "\x00")
		if !n.Implicit {
			_, _ = h.WriteString(n.File + "\x00" + strconv.Itoa(n.Start) + "\x00" + strconv.Itoa(n.End) + "\x00")
		}
	}
	for _, e := range g.Edges() {
		_, _ = h.WriteString("e\x00" + e.From + "\x00" + e.To.Name + "\x00" + e.To.Kind.String() + "\x00")
	}
	return h.Sum64()
}
