// Package tools exposes call-graph extraction and queries as MCP tools.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store
	opts  pipeline.Options

	indexMu sync.Mutex // one extraction at a time
}

// NewServer creates a new MCP server with all tools registered. opts
// configures extractions started through extract_call_graph.
func NewServer(s *store.Store, opts pipeline.Options, version string) *Server {
	srv := &Server{
		store: s,
		opts:  opts,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "java-callgraph",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "extract_call_graph",
		Description: "Extract the static call graph of a Java project and store it for querying. Optionally writes call_graph.json and call_graph.dot to an output directory. Semantic mode resolves calls through the configured language server.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_path": {
					"type": "string",
					"description": "Absolute path to the project root"
				},
				"semantic": {
					"type": "boolean",
					"description": "Resolve call targets through the language server (default: server setting)"
				},
				"output_dir": {
					"type": "string",
					"description": "Directory to write call_graph.json and call_graph.dot into (optional)"
				}
			},
			"required": ["project_path"]
		}`),
	}, s.handleExtract)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all stored projects with root path, indexed_at timestamp, mode, fingerprint and node/edge counts.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete a stored project and its graph. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {"type": "string", "description": "Name of the project to delete"}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_functions",
		Description: "Find functions by simple method name, or list the functions declared in one file. Use it to get the qualified name for get_callers, get_callees and trace_call_path.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Simple method name, e.g. 'run'"},
				"file": {"type": "string", "description": "Project-relative file path, e.g. 'src/com/acme/Main.java' (requires project)"},
				"project": {"type": "string", "description": "Project name (optional for name search; all projects are searched)"}
			}
		}`),
	}, s.handleSearchFunctions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_callees",
		Description: "List the calls made by a function. Resolved callees are fully qualified; unresolved ones are simple method names.",
		InputSchema: qualifiedNameSchema,
	}, s.handleGetCallees)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_callers",
		Description: "List the functions calling a node. Pass a fully qualified name for resolved calls or a simple method name for unresolved ones.",
		InputSchema: qualifiedNameSchema,
	}, s.handleGetCallers)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_call_path",
		Description: "Trace call paths from or to a function using BFS traversal. Returns hop-by-hop nodes and the traversed calls.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {"type": "string", "description": "Start node, e.g. 'com.acme.Main.run'"},
				"project": {"type": "string", "description": "Project name (optional if the name is unique across projects)"},
				"depth": {"type": "integer", "description": "Maximum BFS depth (1-5, default 3)"},
				"direction": {
					"type": "string",
					"description": "'outbound' (what it calls) or 'inbound' (what calls it)",
					"enum": ["outbound", "inbound"]
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleTraceCallPath)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_code_snippet",
		Description: "Return the source of a declared function by qualified name, with line numbers.",
		InputSchema: qualifiedNameSchema,
	}, s.handleGetCodeSnippet)
}

var qualifiedNameSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"qualified_name": {"type": "string", "description": "Node name, e.g. 'com.acme.Main.run'"},
		"project": {"type": "string", "description": "Project name (optional if the name is unique across projects)"}
	},
	"required": ["qualified_name"]
}`)

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	f, ok := args[key].(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

// getBoolArg extracts a boolean argument, reporting whether it was set.
func getBoolArg(args map[string]any, key string) (val, ok bool) {
	val, ok = args[key].(bool)
	return val, ok
}

// findNode looks a qualified name up in project, or in every project when
// project is empty. The name must be unique across the searched projects.
func (s *Server) findNode(project, qn string) (*store.Node, string, error) {
	if project != "" {
		n, err := s.store.FindNodeByQN(project, qn)
		return n, project, err
	}
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, "", fmt.Errorf("list projects: %w", err)
	}
	var found *store.Node
	var foundIn []string
	for _, p := range projects {
		n, err := s.store.FindNodeByQN(p.Name, qn)
		if errors.Is(err, store.ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		found = n
		foundIn = append(foundIn, p.Name)
	}
	switch len(foundIn) {
	case 0:
		return nil, "", fmt.Errorf("%w: %s", store.ErrNodeNotFound, qn)
	case 1:
		return found, foundIn[0], nil
	default:
		return nil, "", fmt.Errorf("%s exists in several projects %v; pass project", qn, foundIn)
	}
}
