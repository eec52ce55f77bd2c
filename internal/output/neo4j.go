package output

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/fqn"
	"github.com/DeusData/java-callgraph/internal/pipeline"
)

// neo4jBatchSize bounds the rows sent in one UNWIND statement.
const neo4jBatchSize = 500

var neo4jIndexes = []string{
	"CREATE INDEX java_method_fqn IF NOT EXISTS FOR (n:JavaMethod) ON (n.project, n.fqn)",
}

const (
	cypherClearProject = `MATCH (n:JavaMethod {project: $project}) DETACH DELETE n`

	cypherMergeMethods = `UNWIND $batch AS row
		MERGE (n:JavaMethod {project: $project, fqn: row.fqn})
		SET n.name = row.name, n.file = row.file, n.start = row.start,
		    n.end = row.end, n.implicit = row.implicit`

	cypherMergeCalls = `UNWIND $batch AS row
		MATCH (a:JavaMethod {project: $project, fqn: row.caller})
		MATCH (b:JavaMethod {project: $project, fqn: row.callee})
		MERGE (a)-[r:CALLS {resolved: row.resolved}]->(b)`
)

// runFunc executes one Cypher statement.
type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jSink loads graphs into Neo4j as (:JavaMethod)-[:CALLS]->(:JavaMethod),
// replacing the earlier graph of the same project.
type Neo4jSink struct {
	driver neo4j.DriverWithContext
	uri    string
	run    runFunc
}

// NewNeo4jSink connects to Neo4j and ensures the indexes exist.
func NewNeo4jSink(ctx context.Context, uri, user, password string) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j %s: %w", uri, err)
	}
	s := &Neo4jSink{driver: driver, uri: uri}
	s.run = func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer)
		return err
	}
	for _, q := range neo4jIndexes {
		if err := s.run(ctx, q, nil); err != nil {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("create neo4j index: %w", err)
		}
	}
	return s, nil
}

// Close releases the driver.
func (s *Neo4jSink) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// Write implements scheduler.Sink.
func (s *Neo4jSink) Write(ctx context.Context, res *pipeline.Result) error {
	if err := s.load(ctx, res.Project, res.Graph); err != nil {
		return &OutputError{Project: res.Project, Path: s.uri, Err: err}
	}
	return nil
}

func (s *Neo4jSink) load(ctx context.Context, project string, g *callgraph.Graph) error {
	if err := s.run(ctx, cypherClearProject, map[string]any{"project": project}); err != nil {
		return fmt.Errorf("clear project: %w", err)
	}
	for _, batch := range chunk(methodRows(g), neo4jBatchSize) {
		if err := s.run(ctx, cypherMergeMethods, map[string]any{"project": project, "batch": batch}); err != nil {
			return fmt.Errorf("load methods: %w", err)
		}
	}
	for _, batch := range chunk(callRows(g), neo4jBatchSize) {
		if err := s.run(ctx, cypherMergeCalls, map[string]any{"project": project, "batch": batch}); err != nil {
			return fmt.Errorf("load calls: %w", err)
		}
	}
	return nil
}

func methodRows(g *callgraph.Graph) []map[string]any {
	nodes := g.Nodes()
	rows := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, map[string]any{
			"fqn": n.ID, "name": fqn.SimpleName(n.ID), "file": n.File,
			"start": n.Start, "end": n.End, "implicit": n.Implicit,
		})
	}
	return rows
}

func callRows(g *callgraph.Graph) []map[string]any {
	edges := g.Edges()
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"caller": e.From, "callee": e.To.Name, "resolved": e.To.IsResolved(),
		})
	}
	return rows
}

func chunk(rows []map[string]any, size int) [][]map[string]any {
	var out [][]map[string]any
	for len(rows) > 0 {
		n := min(size, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}
