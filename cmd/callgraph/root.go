package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DeusData/java-callgraph/internal/config"
	"github.com/DeusData/java-callgraph/internal/output"
	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/resolve"
	"github.com/DeusData/java-callgraph/internal/store"
)

// errProjectsFailed is returned by extract-multi when at least one project
// failed. The failures are already reported.
var errProjectsFailed = errors.New("one or more projects failed")

type rootFlags struct {
	configPath string
	output     string
	semantic   bool
	maxWorkers int
	db         string
	neo4jURI   string
	neo4jUser  string
	neo4jPass  string
	verbose    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "callgraph",
		Short:         "Extract static call graphs from Java projects",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(stderr, f.verbose)
		},
	}
	root.SetVersionTemplate("callgraph {{.Version}}\n")
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file (default ./"+config.FileName+" if present)")
	pf.StringVarP(&f.output, "output", "o", "", "output directory (default "+config.DefaultOutput+")")
	pf.BoolVar(&f.semantic, "semantic", false, "resolve calls through the Java language server")
	pf.StringVar(&f.db, "db", "", "also store graphs in this SQLite database")
	pf.StringVar(&f.neo4jURI, "neo4j-uri", "", "also load graphs into Neo4j at this URI")
	pf.StringVar(&f.neo4jUser, "neo4j-user", "", "Neo4j user")
	pf.StringVar(&f.neo4jPass, "neo4j-pass", "", "Neo4j password")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(extractCmd(f), extractMultiCmd(f), serveCmd(f))
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// settings loads the config file and applies the flags the user set.
func (f *rootFlags) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("semantic") {
		cfg.Semantic = f.semantic
	}
	if flags.Changed("max-workers") {
		cfg.MaxWorkers = f.maxWorkers
	}
	if flags.Changed("db") {
		cfg.SQLite.Path = f.db
	}
	if flags.Changed("neo4j-uri") {
		cfg.Neo4j.URI = f.neo4jURI
	}
	if flags.Changed("neo4j-user") {
		cfg.Neo4j.User = f.neo4jUser
	}
	if flags.Changed("neo4j-pass") {
		cfg.Neo4j.Password = f.neo4jPass
	}
	return cfg, cfg.Validate()
}

// pipelineOptions builds the per-project options. parseWorkers bounds the
// file fan-out inside each pipeline.
func pipelineOptions(cfg *config.Config, parseWorkers int) pipeline.Options {
	opts := pipeline.Options{
		Semantic: cfg.Semantic,
		Workers:  parseWorkers,
		Discover: cfg.DiscoverOptions(),
	}
	if cfg.Semantic {
		opts.Resolver = resolve.New(resolve.LSPSessions(cfg.LanguageServer()), cfg.ResolveOptions())
	}
	return opts
}

// openSinks returns the output directory sink plus the optional store and
// Neo4j sinks. With projectRoots set, each project gets its own directory
// under the output directory, reserved in list order. The returned func
// releases the sinks.
func openSinks(ctx context.Context, cfg *config.Config, projectRoots []string) (output.MultiSink, func(), error) {
	dir := &output.DirSink{Dir: cfg.Output, PerProject: projectRoots != nil}
	dir.Assign(projectRoots)
	sinks := output.MultiSink{dir}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.SQLite.Path != "" {
		st, err := store.OpenPath(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		closers = append(closers, func() { st.Close() })
		sinks = append(sinks, &output.StoreSink{Store: st})
	}
	if cfg.Neo4j.URI != "" {
		n, err := output.NewNeo4jSink(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = n.Close(context.WithoutCancel(ctx)) })
		sinks = append(sinks, n)
	}
	return sinks, closeAll, nil
}
