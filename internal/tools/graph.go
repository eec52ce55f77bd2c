package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/java-callgraph/internal/store"
)

type callInfo struct {
	Caller   string `json:"caller"`
	Callee   string `json:"callee"`
	Resolved bool   `json:"resolved"`
}

func toCallInfo(calls []store.Call) []callInfo {
	out := make([]callInfo, len(calls))
	for i, c := range calls {
		out[i] = callInfo{Caller: c.Caller, Callee: c.Callee, Resolved: c.Resolved}
	}
	return out
}

func (s *Server) handleGetCallees(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.neighbours(args, store.Outbound), nil
}

func (s *Server) handleGetCallers(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.neighbours(args, store.Inbound), nil
}

func (s *Server) neighbours(args map[string]any, dir store.Direction) *mcp.CallToolResult {
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required")
	}
	node, project, err := s.findNode(getStringArg(args, "project"), qn)
	if err != nil {
		return errResult(err.Error())
	}

	var calls []store.Call
	if dir == store.Inbound {
		calls, err = s.store.Callers(project, node.QualifiedName)
	} else {
		calls, err = s.store.Callees(project, node.QualifiedName)
	}
	if err != nil {
		return errResult(err.Error())
	}
	return jsonResult(map[string]any{
		"project":        project,
		"qualified_name": node.QualifiedName,
		"implicit":       node.Implicit,
		"calls":          toCallInfo(calls),
	})
}

func (s *Server) handleTraceCallPath(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.traceCallPath(args), nil
}

func (s *Server) traceCallPath(args map[string]any) *mcp.CallToolResult {
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required")
	}
	depth := min(max(getIntArg(args, "depth", 3), 1), 5)

	dir := store.Direction(getStringArg(args, "direction"))
	switch dir {
	case "":
		dir = store.Outbound
	case store.Outbound, store.Inbound:
	default:
		return errResult(fmt.Sprintf("invalid direction %q", dir))
	}

	_, project, err := s.findNode(getStringArg(args, "project"), qn)
	if err != nil {
		return errResult(err.Error())
	}
	res, err := s.store.BFS(project, qn, dir, depth, 0)
	if err != nil {
		return errResult(fmt.Sprintf("bfs err: %v", err))
	}

	type hop struct {
		QualifiedName string `json:"qualified_name"`
		Hop           int    `json:"hop"`
	}
	visited := make([]hop, len(res.Visited))
	for i, v := range res.Visited {
		visited[i] = hop{QualifiedName: v.QualifiedName, Hop: v.Hop}
	}
	return jsonResult(map[string]any{
		"project":   project,
		"root":      res.Root,
		"direction": string(dir),
		"visited":   visited,
		"calls":     toCallInfo(res.Calls),
	})
}

func (s *Server) handleGetCodeSnippet(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.codeSnippet(args), nil
}

func (s *Server) codeSnippet(args map[string]any) *mcp.CallToolResult {
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required")
	}
	node, project, err := s.findNode(getStringArg(args, "project"), qn)
	if err != nil {
		return errResult(err.Error())
	}
	if node.Implicit {
		return errResult(fmt.Sprintf("%s is not declared in %s", qn, project))
	}
	proj, err := s.store.GetProject(project)
	if err != nil {
		return errResult(err.Error())
	}

	absPath := filepath.Join(proj.RootPath, filepath.FromSlash(node.FilePath))
	// stored lines are 0-based
	source, err := readLines(absPath, node.StartLine+1, node.EndLine+1)
	if err != nil {
		return errResult(fmt.Sprintf("read file: %v", err))
	}
	return jsonResult(map[string]any{
		"project":        project,
		"qualified_name": node.QualifiedName,
		"file_path":      absPath,
		"start_line":     node.StartLine + 1,
		"end_line":       node.EndLine + 1,
		"source":         source,
	})
}

// readLines reads lines [startLine, endLine] (1-based) from a file,
// returning them with line numbers.
func readLines(path string, startLine, endLine int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > endLine {
			break
		}
		if lineNum >= startLine {
			fmt.Fprintf(&sb, "%4d | %s\n", lineNum, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no lines found in range %d-%d (file has %d lines)", startLine, endLine, lineNum)
	}
	return sb.String(), nil
}
