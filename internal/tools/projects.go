package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/java-callgraph/internal/store"
)

type projectInfo struct {
	Name        string `json:"name"`
	RootPath    string `json:"root_path"`
	IndexedAt   string `json:"indexed_at"`
	Semantic    bool   `json:"semantic"`
	Fingerprint string `json:"fingerprint"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
}

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listProjects(), nil
}

func (s *Server) listProjects() *mcp.CallToolResult {
	projects, err := s.store.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err))
	}
	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		result = append(result, projectInfo{
			Name:        p.Name,
			RootPath:    p.RootPath,
			IndexedAt:   p.IndexedAt,
			Semantic:    p.Semantic,
			Fingerprint: p.Fingerprint,
			Nodes:       p.Nodes,
			Edges:       p.Edges,
		})
	}
	return jsonResult(result)
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.deleteProject(args), nil
}

func (s *Server) deleteProject(args map[string]any) *mcp.CallToolResult {
	name := getStringArg(args, "project_name")
	if name == "" {
		return errResult("project_name is required")
	}
	if _, err := s.store.GetProject(name); errors.Is(err, store.ErrProjectNotFound) {
		return errResult(fmt.Sprintf("project not found: %s", name))
	} else if err != nil {
		return errResult(err.Error())
	}
	if err := s.store.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err))
	}
	return jsonResult(map[string]any{
		"deleted": name,
		"status":  "ok",
	})
}
