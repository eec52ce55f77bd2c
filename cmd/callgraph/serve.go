package main

import (
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/java-callgraph/internal/resolve"
	"github.com/DeusData/java-callgraph/internal/store"
	"github.com/DeusData/java-callgraph/internal/tools"
)

func serveCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve extraction and graph queries over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.settings(cmd)
			if err != nil {
				return err
			}
			var st *store.Store
			if cfg.SQLite.Path != "" {
				st, err = store.OpenPath(cfg.SQLite.Path)
			} else {
				st, err = store.Open()
			}
			if err != nil {
				return fmt.Errorf("store open: %w", err)
			}
			defer st.Close()

			slog.Info("serve.start", "db", st.Path(), "semantic", cfg.Semantic)
			opts := pipelineOptions(cfg, cfg.Workers())
			// callers may ask for semantic extraction per request
			opts.Resolver = resolve.New(resolve.LSPSessions(cfg.LanguageServer()), cfg.ResolveOptions())
			srv := tools.NewServer(st, opts, version)
			if err := srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
}
