package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/java-callgraph/internal/output"
	"github.com/DeusData/java-callgraph/internal/pipeline"
)

func (s *Server) handleExtract(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return s.extract(ctx, args), nil
}

func (s *Server) extract(ctx context.Context, args map[string]any) *mcp.CallToolResult {
	root := getStringArg(args, "project_path")
	if root == "" {
		return errResult("project_path is required")
	}
	opts := s.opts
	if semantic, ok := getBoolArg(args, "semantic"); ok {
		opts.Semantic = semantic
	}
	if opts.Semantic && opts.Resolver == nil {
		return errResult("semantic mode is not configured on this server")
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	res, err := pipeline.Run(ctx, root, opts)
	if err != nil {
		return errResult(fmt.Sprintf("extraction failed: %v", err))
	}

	sinks := output.MultiSink{&output.StoreSink{Store: s.store}}
	outDir := getStringArg(args, "output_dir")
	if outDir != "" {
		sinks = append(sinks, &output.DirSink{Dir: outDir})
	}
	if err := sinks.Write(ctx, res); err != nil {
		return errResult(err.Error())
	}

	result := map[string]any{
		"project":   res.Project,
		"root_path": res.Root,
		"functions": res.Functions,
		"nodes":     res.Graph.NodeCount(),
		"edges":     res.Graph.EdgeCount(),
		"roots":     res.Roots,
		"elapsed":   res.Elapsed.String(),
	}
	if res.Resolution != nil {
		result["resolution"] = map[string]int{
			"sites":    res.Resolution.Sites,
			"resolved": res.Resolution.Resolved,
			"missed":   res.Resolution.Missed,
			"failed":   res.Resolution.Failed,
		}
	}
	if outDir != "" {
		result["output_dir"] = outDir
	}
	return jsonResult(result)
}
