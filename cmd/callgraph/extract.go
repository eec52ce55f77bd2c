package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/scheduler"
)

func extractCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <project>",
		Short: "Extract the call graph of one project",
		Long: `Extract the call graph of one project into <output>/call_graph.json and
<output>/call_graph.dot, then print the root functions (functions nothing calls).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.settings(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			res, err := pipeline.Run(ctx, args[0], pipelineOptions(cfg, cfg.Workers()))
			if err != nil {
				return err
			}

			sinks, closeSinks, err := openSinks(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer closeSinks()
			if err := sinks.Write(ctx, res); err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res, cfg.Output)
			return nil
		},
	}
}

func printResult(w io.Writer, res *pipeline.Result, dir string) {
	fmt.Fprintf(w, "%s: %d functions, %d nodes, %d edges -> %s\n",
		res.Root, res.Functions, res.Graph.NodeCount(), res.Graph.EdgeCount(), dir)
	if r := res.Resolution; r != nil {
		fmt.Fprintf(w, "resolution: %d sites, %d resolved, %d missed, %d failed\n",
			r.Sites, r.Resolved, r.Missed, r.Failed)
	}
	fmt.Fprintf(w, "Root functions (%d):\n", len(res.Roots))
	for _, fqn := range res.Roots {
		fmt.Fprintf(w, "  %s\n", fqn)
	}
}

func extractMultiCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract-multi <projects-file>",
		Short: "Extract the call graphs of many projects in parallel",
		Long: `Extract the call graph of every project listed in <projects-file> (one root
per line, # comments allowed). Each project is written to
<output>/<base name of its root> as soon as it finishes; a root whose base name
is already taken by an earlier root gets a hash suffix. A failing project does
not affect the others; the command exits non-zero if any project failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.settings(cmd)
			if err != nil {
				return err
			}
			roots, err := scheduler.LoadProjectList(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sinks, closeSinks, err := openSinks(ctx, cfg, roots)
			if err != nil {
				return err
			}
			defer closeSinks()

			// each pipeline parses its files sequentially; the pool is the
			// only fan-out
			run := scheduler.Pipelines(pipelineOptions(cfg, 1))
			results := scheduler.New(scheduler.NewPool(cfg.Workers()), run, sinks).Run(ctx, roots)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if !r.OK() {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", r.Root, r.Err)
					continue
				}
				fmt.Fprintf(out, "ok   %s: %d nodes, %d edges\n",
					r.Root, r.Project.Graph.NodeCount(), r.Project.Graph.EdgeCount())
			}
			fmt.Fprintf(out, "%d projects, %d failed\n", len(results), failed)
			if failed > 0 {
				slog.Warn("extract_multi.failed", "failed", failed, "projects", len(results))
				return errProjectsFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&f.maxWorkers, "max-workers", "j", 0, "projects processed at once (default: number of CPUs)")
	return cmd
}
