package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// edgesBatchSize is the max rows per batch INSERT for edges (4 cols × 200 = 800 vars < 999).
const edgesBatchSize = 200

// InsertEdgeBatch inserts edges in batched multi-row INSERTs. Duplicates
// are ignored.
func (s *Store) InsertEdgeBatch(edges []*Edge) error {
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := min(i+edgesBatchSize, len(edges))
		if err := s.insertEdgeChunk(edges[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertEdgeChunk(batch []*Edge) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (project, source_id, target_id, resolved) VALUES `)

	args := make([]any, 0, len(batch)*4)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?)")
		args = append(args, e.Project, e.SourceID, e.TargetID, boolInt(e.Resolved))
	}
	sb.WriteString(` ON CONFLICT(source_id, target_id, resolved) DO NOTHING`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert edge batch: %w", err)
	}
	return nil
}

// CountEdges returns the number of edges in a project.
func (s *Store) CountEdges(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE project=?", project).Scan(&count)
	return count, err
}

// Call is one stored edge with both ends named.
type Call struct {
	Caller   string
	Callee   string
	Resolved bool
}

const callSelect = `
	SELECT src.qualified_name, dst.qualified_name, e.resolved
	FROM edges e
	JOIN nodes src ON src.id = e.source_id
	JOIN nodes dst ON dst.id = e.target_id`

// Callees returns the calls made by the function with the given qualified
// name, sorted by callee.
func (s *Store) Callees(project, qualifiedName string) ([]Call, error) {
	rows, err := s.q.Query(callSelect+`
	WHERE e.project=? AND src.qualified_name=?
	ORDER BY dst.qualified_name, e.resolved`, project, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("callees: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// Callers returns the calls reaching the node with the given qualified
// name, sorted by caller.
func (s *Store) Callers(project, qualifiedName string) ([]Call, error) {
	rows, err := s.q.Query(callSelect+`
	WHERE e.project=? AND dst.qualified_name=?
	ORDER BY src.qualified_name, e.resolved`, project, qualifiedName)
	if err != nil {
		return nil, fmt.Errorf("callers: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// AllCalls returns every edge of a project sorted by caller then callee.
func (s *Store) AllCalls(project string) ([]Call, error) {
	rows, err := s.q.Query(callSelect+`
	WHERE e.project=?
	ORDER BY src.qualified_name, dst.qualified_name, e.resolved`, project)
	if err != nil {
		return nil, fmt.Errorf("all calls: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	var result []Call
	for rows.Next() {
		var c Call
		var resolved int
		if err := rows.Scan(&c.Caller, &c.Callee, &resolved); err != nil {
			return nil, err
		}
		c.Resolved = resolved != 0
		result = append(result, c)
	}
	return result, rows.Err()
}
