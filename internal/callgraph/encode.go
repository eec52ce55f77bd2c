package callgraph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Artifact file names written for each project.
const (
	JSONFileName = "call_graph.json"
	DOTFileName  = "call_graph.dot"
)

type jsonNode struct {
	ID    string  `json:"id"`
	File  *string `json:"file,omitempty"`
	Start *int    `json:"start,omitempty"`
	End   *int    `json:"end,omitempty"`
}

type jsonEdge struct {
	U string `json:"u"`
	V string `json:"v"`
}

type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

// EncodeJSON writes g as {"nodes":[...],"edges":[...]}. Implicit nodes are
// written with their id only.
func EncodeJSON(w io.Writer, g *Graph) error {
	doc := jsonGraph{
		Nodes: make([]jsonNode, 0, g.NodeCount()),
		Edges: make([]jsonEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		jn := jsonNode{ID: n.ID}
		if !n.Implicit {
			file, start, end := n.File, n.Start, n.End
			jn.File, jn.Start, jn.End = &file, &start, &end
		}
		doc.Nodes = append(doc.Nodes, jn)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, jsonEdge{U: e.From, V: e.To.Name})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// DecodeJSON reads a graph written by EncodeJSON. A target is resolved when
// it names a declared node.
func DecodeJSON(r io.Reader) (*Graph, error) {
	var doc jsonGraph
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode call graph: %w", err)
	}
	g := New()
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("decode call graph: node without id")
		}
		if n.File == nil && n.Start == nil && n.End == nil {
			g.ensureNode(n.ID)
			continue
		}
		var file string
		var start, end int
		if n.File != nil {
			file = *n.File
		}
		if n.Start != nil {
			start = *n.Start
		}
		if n.End != nil {
			end = *n.End
		}
		g.AddNode(n.ID, file, start, end)
	}
	for _, e := range doc.Edges {
		t := UnresolvedTarget(e.V)
		if n, ok := g.nodes[e.V]; ok && !n.Implicit {
			t = ResolvedTarget(e.V)
		}
		g.AddEdge(e.U, t)
	}
	return g, nil
}

// EncodeDOT writes g in Graphviz DOT form with the same node and edge sets
// as EncodeJSON.
func EncodeDOT(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("strict digraph {\n")
	for _, n := range g.Nodes() {
		bw.WriteString("\t" + dotID(n.ID))
		if !n.Implicit {
			fmt.Fprintf(bw, " [end=%d, file=%s, start=%d]", n.End, dotID(n.File), n.Start)
		}
		bw.WriteString(";\n")
	}
	for _, e := range g.Edges() {
		bw.WriteString("\t" + dotID(e.From) + " -> " + dotID(e.To.Name) + ";\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")

// dotID quotes s as a DOT string identifier.
func dotID(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
