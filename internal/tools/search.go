package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/java-callgraph/internal/store"
)

type functionInfo struct {
	Project       string `json:"project"`
	QualifiedName string `json:"qualified_name"`
	FilePath      string `json:"file_path,omitempty"`
	StartLine     int    `json:"start_line,omitempty"`
	EndLine       int    `json:"end_line,omitempty"`
	Implicit      bool   `json:"implicit"`
}

type searchedProject struct {
	Project string `json:"project"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

func (s *Server) handleSearchFunctions(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.searchFunctions(args), nil
}

// searchFunctions finds nodes by simple method name across projects, or
// the declared functions of one file in line order.
func (s *Server) searchFunctions(args map[string]any) *mcp.CallToolResult {
	name := getStringArg(args, "name")
	file := getStringArg(args, "file")
	project := getStringArg(args, "project")
	switch {
	case name == "" && file == "":
		return errResult("name or file is required")
	case name != "" && file != "":
		return errResult("pass either name or file, not both")
	case file != "" && project == "":
		return errResult("project is required with file")
	}

	projects := []string{project}
	if project == "" {
		all, err := s.store.ListProjects()
		if err != nil {
			return errResult(fmt.Sprintf("list projects: %v", err))
		}
		projects = projects[:0]
		for _, p := range all {
			projects = append(projects, p.Name)
		}
	} else if _, err := s.store.GetProject(project); err != nil {
		return errResult(err.Error())
	}

	matches := []functionInfo{}
	searched := make([]searchedProject, 0, len(projects))
	for _, p := range projects {
		var nodes []*store.Node
		var err error
		if file != "" {
			nodes, err = s.store.FindNodesByFile(p, filepath.ToSlash(file))
		} else {
			nodes, err = s.store.FindNodesByName(p, name)
		}
		if err != nil {
			return errResult(err.Error())
		}
		for _, n := range nodes {
			matches = append(matches, toFunctionInfo(n))
		}

		info := searchedProject{Project: p}
		if info.Nodes, err = s.store.CountNodes(p); err != nil {
			return errResult(err.Error())
		}
		if info.Edges, err = s.store.CountEdges(p); err != nil {
			return errResult(err.Error())
		}
		searched = append(searched, info)
	}

	return jsonResult(map[string]any{
		"matches":  matches,
		"searched": searched,
	})
}

func toFunctionInfo(n *store.Node) functionInfo {
	info := functionInfo{Project: n.Project, QualifiedName: n.QualifiedName, Implicit: n.Implicit}
	if !n.Implicit {
		// stored lines are 0-based
		info.FilePath = n.FilePath
		info.StartLine = n.StartLine + 1
		info.EndLine = n.EndLine + 1
	}
	return info
}
