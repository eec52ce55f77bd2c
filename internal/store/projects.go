package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrProjectNotFound is returned when no graph is stored under a name.
var ErrProjectNotFound = errors.New("project not found")

// Project is the summary row of a stored graph.
type Project struct {
	Name        string
	IndexedAt   string
	RootPath    string
	Semantic    bool
	Fingerprint string
	Nodes       int
	Edges       int
}

const projectColumns = "name, indexed_at, root_path, semantic, fingerprint, node_count, edge_count"

// UpsertProject creates or updates a project record. An empty IndexedAt is
// set to Now().
func (s *Store) UpsertProject(p *Project) error {
	if p.IndexedAt == "" {
		p.IndexedAt = Now()
	}
	_, err := s.q.Exec(`
		INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path,
			semantic=excluded.semantic, fingerprint=excluded.fingerprint,
			node_count=excluded.node_count, edge_count=excluded.edge_count`,
		p.Name, p.IndexedAt, p.RootPath, boolInt(p.Semantic), p.Fingerprint, p.Nodes, p.Edges)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject returns a project by name.
func (s *Store) GetProject(name string) (*Project, error) {
	row := s.q.QueryRow("SELECT "+projectColumns+" FROM projects WHERE name=?", name)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return p, err
}

// ListProjects returns all stored projects sorted by name.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query("SELECT " + projectColumns + " FROM projects ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(name string) error {
	_, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(sc scanner) (*Project, error) {
	var p Project
	var semantic int
	if err := sc.Scan(&p.Name, &p.IndexedAt, &p.RootPath, &semantic, &p.Fingerprint, &p.Nodes, &p.Edges); err != nil {
		return nil, err
	}
	p.Semantic = semantic != 0
	return &p, nil
}
