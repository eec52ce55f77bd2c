package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DeusData/java-callgraph/internal/resolve"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callgraph.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Semantic || cfg.Output != DefaultOutput || cfg.Workers() < 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LSP.Command != "jdtls" || cfg.LSP.RequestTimeout != resolve.DefaultRequestTimeout {
		t.Errorf("lsp defaults: %+v", cfg.LSP)
	}
	if cfg.DiscoverOptions() != nil {
		t.Error("no ignore patterns by default")
	}
	opts := cfg.ResolveOptions()
	if opts.RequestTimeout != resolve.DefaultRequestTimeout || opts.StartTimeout != resolve.DefaultStartTimeout {
		t.Errorf("resolve options = %+v, want the resolver defaults", opts)
	}
}

func TestLoadWorkingDirFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("semantic: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Semantic {
		t.Error("expected semantic from .cgrconfig")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
semantic: true
max_workers: 3
output: /tmp/graphs
ignore:
  - generated
  - "*Test.java"
lsp:
  command: /opt/jdtls/bin/jdtls
  args: ["-data", "/tmp/ws"]
  request_timeout: 30s
  start_timeout: 5m
  initialization_options:
    settings:
      java:
        autobuild:
          enabled: false
sqlite:
  path: /tmp/graphs.db
neo4j:
  uri: neo4j://localhost:7687
  user: neo4j
  password: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Semantic || cfg.Workers() != 3 || cfg.Output != "/tmp/graphs" {
		t.Errorf("top-level: %+v", cfg)
	}
	if opts := cfg.DiscoverOptions(); opts == nil || len(opts.Ignore) != 2 {
		t.Errorf("discover options: %+v", opts)
	}

	lc := cfg.LanguageServer()
	if lc.Command != "/opt/jdtls/bin/jdtls" || len(lc.Args) != 2 || lc.InitializationOptions == nil {
		t.Errorf("language server: %+v", lc)
	}
	ro := cfg.ResolveOptions()
	if ro.RequestTimeout != 30*time.Second || ro.StartTimeout != 5*time.Minute {
		t.Errorf("resolve options: %+v", ro)
	}
	if cfg.SQLite.Path != "/tmp/graphs.db" || cfg.Neo4j.URI != "neo4j://localhost:7687" || cfg.Neo4j.Password != "secret" {
		t.Errorf("sinks: %+v %+v", cfg.SQLite, cfg.Neo4j)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "lsp:\n  request_timeout: 1s\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LSP.RequestTimeout != time.Second {
		t.Errorf("request_timeout = %v", cfg.LSP.RequestTimeout)
	}
	if cfg.LSP.StartTimeout != resolve.DefaultStartTimeout || cfg.LSP.Command != "jdtls" {
		t.Errorf("defaults lost: %+v", cfg.LSP)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":     "not: [valid: yaml",
		"negative workers": "max_workers: -2\n",
		"bad duration":     "lsp:\n  request_timeout: soon\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || cfg.Output != DefaultOutput {
		t.Errorf("missing file: %+v, %v", cfg, err)
	}
}
