package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNodeNotFound is returned when a qualified name is not in a project.
var ErrNodeNotFound = errors.New("node not found")

const nodeColumns = "id, project, name, qualified_name, file_path, start_line, end_line, implicit"

// nodesBatchSize is the max rows per batch INSERT for nodes (7 cols × 140 = 980 vars < 999).
const nodesBatchSize = 140

// InsertNodeBatch inserts nodes in batched multi-row INSERTs. A node whose
// qualified name already exists in the project replaces the old row's data.
func (s *Store) InsertNodeBatch(nodes []*Node) error {
	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := min(i+nodesBatchSize, len(nodes))
		if err := s.insertNodeChunk(nodes[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertNodeChunk(batch []*Node) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (project, name, qualified_name, file_path, start_line, end_line, implicit) VALUES `)

	args := make([]any, 0, len(batch)*7)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?)")
		args = append(args, n.Project, n.Name, n.QualifiedName, n.FilePath, n.StartLine, n.EndLine, boolInt(n.Implicit))
	}
	sb.WriteString(` ON CONFLICT(project, qualified_name) DO UPDATE SET
		name=excluded.name, file_path=excluded.file_path, start_line=excluded.start_line,
		end_line=excluded.end_line, implicit=excluded.implicit`)

	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert node batch: %w", err)
	}
	return nil
}

// NodeIDs returns qualified_name → id for every node of a project.
func (s *Store) NodeIDs(project string) (map[string]int64, error) {
	rows, err := s.q.Query("SELECT qualified_name, id FROM nodes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("node ids: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]int64)
	for rows.Next() {
		var qn string
		var id int64
		if err := rows.Scan(&qn, &id); err != nil {
			return nil, err
		}
		ids[qn] = id
	}
	return ids, rows.Err()
}

// FindNodeByQN finds a node by project and qualified name.
func (s *Store) FindNodeByQN(project, qualifiedName string) (*Node, error) {
	row := s.q.QueryRow("SELECT "+nodeColumns+" FROM nodes WHERE project=? AND qualified_name=?", project, qualifiedName)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, qualifiedName)
	}
	return n, err
}

// FindNodesByName finds nodes by project and simple method name, sorted by
// qualified name.
func (s *Store) FindNodesByName(project, name string) ([]*Node, error) {
	rows, err := s.q.Query("SELECT "+nodeColumns+" FROM nodes WHERE project=? AND name=? ORDER BY qualified_name", project, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByFile finds the declared nodes of one file, in line order.
func (s *Store) FindNodesByFile(project, filePath string) ([]*Node, error) {
	rows, err := s.q.Query("SELECT "+nodeColumns+" FROM nodes WHERE project=? AND file_path=? AND implicit=0 ORDER BY start_line, qualified_name",
		project, filePath)
	if err != nil {
		return nil, fmt.Errorf("find by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// AllNodes returns every node of a project sorted by qualified name.
func (s *Store) AllNodes(project string) ([]*Node, error) {
	rows, err := s.q.Query("SELECT "+nodeColumns+" FROM nodes WHERE project=? ORDER BY qualified_name", project)
	if err != nil {
		return nil, fmt.Errorf("all nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a project.
func (s *Store) CountNodes(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM nodes WHERE project=?", project).Scan(&count)
	return count, err
}

func scanNode(sc scanner) (*Node, error) {
	var n Node
	var implicit int
	if err := sc.Scan(&n.ID, &n.Project, &n.Name, &n.QualifiedName, &n.FilePath, &n.StartLine, &n.EndLine, &implicit); err != nil {
		return nil, err
	}
	n.Implicit = implicit != 0
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
