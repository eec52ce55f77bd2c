package store

import (
	"fmt"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/fqn"
)

// SaveGraph replaces the stored graph of a project with g, in one
// transaction.
func (s *Store) SaveGraph(p *Project, g *callgraph.Graph) error {
	p.Fingerprint = fmt.Sprintf("%016x", g.Fingerprint())
	p.Nodes = g.NodeCount()
	p.Edges = g.EdgeCount()
	p.IndexedAt = Now()

	return s.WithTransaction(func(tx *Store) error {
		if err := tx.DeleteProject(p.Name); err != nil {
			return fmt.Errorf("clear project: %w", err)
		}
		if err := tx.UpsertProject(p); err != nil {
			return err
		}

		graphNodes := g.Nodes()
		nodes := make([]*Node, len(graphNodes))
		for i, n := range graphNodes {
			nodes[i] = &Node{
				Project:       p.Name,
				Name:          fqn.SimpleName(n.ID),
				QualifiedName: n.ID,
				FilePath:      n.File,
				StartLine:     n.Start,
				EndLine:       n.End,
				Implicit:      n.Implicit,
			}
		}
		if err := tx.InsertNodeBatch(nodes); err != nil {
			return err
		}

		ids, err := tx.NodeIDs(p.Name)
		if err != nil {
			return err
		}
		graphEdges := g.Edges()
		edges := make([]*Edge, len(graphEdges))
		for i, e := range graphEdges {
			edges[i] = &Edge{
				Project:  p.Name,
				SourceID: ids[e.From],
				TargetID: ids[e.To.Name],
				Resolved: e.To.IsResolved(),
			}
		}
		return tx.InsertEdgeBatch(edges)
	})
}

// LoadGraph rebuilds the stored graph of a project.
func (s *Store) LoadGraph(project string) (*callgraph.Graph, error) {
	if _, err := s.GetProject(project); err != nil {
		return nil, err
	}
	nodes, err := s.AllNodes(project)
	if err != nil {
		return nil, err
	}
	calls, err := s.AllCalls(project)
	if err != nil {
		return nil, err
	}

	g := callgraph.New()
	for _, n := range nodes {
		if !n.Implicit {
			g.AddNode(n.QualifiedName, n.FilePath, n.StartLine, n.EndLine)
		}
	}
	for _, c := range calls {
		g.AddEdge(c.Caller, c.Target())
	}
	return g, nil
}

// Target returns the graph target of the call.
func (c Call) Target() callgraph.Target {
	if c.Resolved {
		return callgraph.ResolvedTarget(c.Callee)
	}
	return callgraph.UnresolvedTarget(c.Callee)
}
